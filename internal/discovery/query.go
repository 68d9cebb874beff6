package discovery

import (
	"fmt"
	"strings"
)

// Fact is one fact=value constraint of a node query.
type Fact struct {
	Name  string
	Value string
}

// ParseQuery turns command line arguments of the form fact=value (several may
// be joined with commas) into an ordered list of constraints.
func ParseQuery(args []string) ([]Fact, error) {
	var out []Fact
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			name, value, ok := strings.Cut(part, "=")
			name = strings.TrimSpace(name)
			if !ok || name == "" {
				return nil, fmt.Errorf("invalid fact query %q: expected fact=value", part)
			}
			out = append(out, Fact{Name: name, Value: strings.TrimSpace(value)})
		}
	}
	return out, nil
}

func (f Fact) String() string {
	return f.Name + "=" + f.Value
}

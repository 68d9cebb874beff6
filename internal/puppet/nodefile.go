package puppet

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// NodeFile is the subset of a cached Puppet::Node YAML document this tool
// reads. The Ruby object tag at the top of the document is ignored.
type NodeFile struct {
	Name        string          `yaml:"name"`
	Environment NodeEnvironment `yaml:"environment"`
	Parameters  map[string]any  `yaml:"parameters"`
}

// Parameter returns a scalar parameter rendered as a string. Structured
// values (hashes, arrays) are reported as absent.
func (n *NodeFile) Parameter(key string) (string, bool) {
	v, ok := n.Parameters[key]
	if !ok || v == nil {
		return "", false
	}
	switch v.(type) {
	case map[string]any, []any:
		return "", false
	}
	return fmt.Sprint(v), true
}

// CertName is the node's clientcert parameter, falling back to its name.
func (n *NodeFile) CertName() string {
	if cert, ok := n.Parameter("clientcert"); ok && cert != "" {
		return cert
	}
	return n.Name
}

// NodeEnvironment accepts both a plain environment name and the serialized
// Puppet::Node::Environment object with a name field.
type NodeEnvironment string

func (e *NodeEnvironment) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*e = NodeEnvironment(strings.TrimSpace(value.Value))
		return nil
	case yaml.MappingNode:
		var obj struct {
			Name string `yaml:"name"`
		}
		if err := value.Decode(&obj); err != nil {
			return err
		}
		*e = NodeEnvironment(strings.TrimSpace(obj.Name))
		return nil
	default:
		return fmt.Errorf("environment: unexpected yaml kind %d", value.Kind)
	}
}

// NodeDir is where the Puppet server caches node objects under yamldir.
func NodeDir(yamlDir string) string {
	return filepath.Join(yamlDir, "node")
}

func NodeFilePath(yamlDir, node string) string {
	return filepath.Join(NodeDir(yamlDir), node+".yaml")
}

func ReadNodeFile(path string) (*NodeFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseNodeFile(raw)
}

func ParseNodeFile(raw []byte) (*NodeFile, error) {
	var nf NodeFile
	if err := yaml.Unmarshal(raw, &nf); err != nil {
		return nil, fmt.Errorf("parse node yaml: %w", err)
	}
	if nf.Parameters == nil {
		nf.Parameters = map[string]any{}
	}
	return &nf, nil
}

// ListNodeFiles returns the cached node files under yamlDir in name order.
func ListNodeFiles(yamlDir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(NodeDir(yamlDir), "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

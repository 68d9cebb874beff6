package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []Fact
		wantErr bool
	}{
		{name: "none", args: nil, want: nil},
		{name: "single", args: []string{"kernel=Linux"}, want: []Fact{{"kernel", "Linux"}}},
		{
			name: "comma joined and separate",
			args: []string{"kernel=Linux,osfamily=RedHat", " role = web "},
			want: []Fact{{"kernel", "Linux"}, {"osfamily", "RedHat"}, {"role", "web"}},
		},
		{name: "empty value", args: []string{"role="}, want: []Fact{{"role", ""}}},
		{name: "value with equals", args: []string{"motd=a=b"}, want: []Fact{{"motd", "a=b"}}},
		{name: "missing equals", args: []string{"kernel"}, wantErr: true},
		{name: "missing name", args: []string{"=Linux"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuery(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPuppetDBQuery(t *testing.T) {
	q, err := PuppetDBQuery([]Fact{{"kernel", "Linux"}, {"role", "web"}})
	require.NoError(t, err)
	assert.JSONEq(t, `["and",["=",["node","active"],true],["=",["fact","kernel"],"Linux"],["=",["fact","role"],"web"]]`, q)
}

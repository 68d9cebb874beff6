package seed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"catalogpull/internal/fetcher"
	"catalogpull/internal/puppet"
)

const DefaultEnvironment = "production"

// EnvironmentResolver finds the environment a node was last classified into
// by reading the server's YAML node cache. Lookups are cached per node.
type EnvironmentResolver struct {
	yamlDir  string
	fallback string
	loader   *fetcher.Loader[string]
}

// NewEnvironmentResolver returns a resolver over yamlDir. With an empty
// yamlDir every node resolves to fallback.
func NewEnvironmentResolver(yamlDir, fallback string) *EnvironmentResolver {
	if fallback == "" {
		fallback = DefaultEnvironment
	}
	r := &EnvironmentResolver{yamlDir: yamlDir, fallback: fallback}
	r.loader = fetcher.NewLoader(r.lookup)
	return r
}

func (r *EnvironmentResolver) Resolve(ctx context.Context, node string) (string, error) {
	if r.yamlDir == "" {
		return r.fallback, nil
	}
	return r.loader.Get(ctx, node)
}

func (r *EnvironmentResolver) lookup(_ context.Context, node string) (string, error) {
	path := puppet.NodeFilePath(r.yamlDir, node)
	nf, err := puppet.ReadNodeFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return r.fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if cert := nf.CertName(); cert != node {
		return "", fmt.Errorf("node file %s belongs to %q, not %q", path, cert, node)
	}
	if nf.Environment == "" {
		return r.fallback, nil
	}
	return string(nf.Environment), nil
}

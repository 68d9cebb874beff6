package seed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"catalogpull/internal/fetcher"
	"catalogpull/internal/puppet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalogServer struct {
	mu       sync.Mutex
	requests []*http.Request
	handler  http.HandlerFunc
}

func newCatalogServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *catalogServer) {
	t.Helper()
	cs := &catalogServer{handler: h}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.mu.Lock()
		cs.requests = append(cs.requests, r.Clone(context.Background()))
		cs.mu.Unlock()
		cs.handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, cs
}

func (cs *catalogServer) last() *http.Request {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.requests) == 0 {
		return nil
	}
	return cs.requests[len(cs.requests)-1]
}

func serverSpec(srv *httptest.Server, env string) string {
	spec := srv.URL
	if env != "" {
		spec += "/" + env
	}
	return spec
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	hc, err := puppet.NewClient(puppet.WithTransport(http.DefaultTransport))
	require.NoError(t, err)
	c, err := New(hc, opts...)
	require.NoError(t, err)
	return c
}

func TestSeed_CompiledCatalogIsSaved(t *testing.T) {
	srv, cs := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"web01","version":1700000000,"resources":[]}`)
	})
	c := newTestClient(t)
	label := filepath.Join(t.TempDir(), "new")

	out, err := c.Seed(context.Background(), label, "web01", serverSpec(srv, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"web01"}, out.CompiledNodes)
	assert.Empty(t, out.FailedNodes)

	req := cs.last()
	require.NotNil(t, req)
	assert.Equal(t, "/puppet/v3/catalog/web01", req.URL.Path)
	assert.Equal(t, DefaultEnvironment, req.URL.Query().Get("environment"))

	saved, err := os.ReadFile(filepath.Join(label, "web01.json"))
	require.NoError(t, err)
	assert.Contains(t, string(saved), `"name":"web01"`)
}

func TestSeed_PinnedEnvironment(t *testing.T) {
	srv, cs := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})
	c := newTestClient(t)

	_, err := c.Seed(context.Background(), t.TempDir(), "web01", serverSpec(srv, "canary"))
	require.NoError(t, err)
	assert.Equal(t, "canary", cs.last().URL.Query().Get("environment"))
}

func TestSeed_EnvironmentFromNodeCache(t *testing.T) {
	yamlDir := t.TempDir()
	require.NoError(t, os.MkdirAll(puppet.NodeDir(yamlDir), 0o755))
	writeNode := func(name, cert, env string) {
		doc := fmt.Sprintf("--- !ruby/object:Puppet::Node\nname: %s\nparameters:\n  clientcert: %s\nenvironment: %s\n", name, cert, env)
		require.NoError(t, os.WriteFile(puppet.NodeFilePath(yamlDir, name), []byte(doc), 0o644))
	}
	writeNode("web01", "web01", "staging")
	writeNode("web02", "imposter", "staging")

	srv, cs := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})
	c := newTestClient(t, WithEnvironmentResolver(NewEnvironmentResolver(yamlDir, "")))

	_, err := c.Seed(context.Background(), t.TempDir(), "web01", serverSpec(srv, ""))
	require.NoError(t, err)
	assert.Equal(t, "staging", cs.last().URL.Query().Get("environment"))

	_, err = c.Seed(context.Background(), t.TempDir(), "web03", serverSpec(srv, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultEnvironment, cs.last().URL.Query().Get("environment"), "uncached nodes fall back")

	out, err := c.Seed(context.Background(), t.TempDir(), "web02", serverSpec(srv, ""))
	require.NoError(t, err)
	assert.Contains(t, out.FailedNodes["web02"], "imposter")
}

func TestSeed_ServerErrorBecomesFailure(t *testing.T) {
	msg := "Server Error: Evaluation Error: Error while evaluating a Function Call, Could not find class ::nope at /etc/puppetlabs/code/environments/production/manifests/site.pp:3:1 on node web01"
	srv, _ := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, `{"message":%q,"issue_kind":"RUNTIME_ERROR"}`, msg)
	})
	c := newTestClient(t)
	label := filepath.Join(t.TempDir(), "new")

	out, err := c.Seed(context.Background(), label, "web01", serverSpec(srv, ""))
	require.NoError(t, err)
	assert.Empty(t, out.CompiledNodes)
	assert.Equal(t, map[string]string{"web01": msg}, out.FailedNodes)

	_, statErr := os.Stat(filepath.Join(label, "web01.json"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "failed catalogs are not saved")
}

func TestSeed_InvalidJSONBecomesFailure(t *testing.T) {
	srv, _ := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>proxy error</html>`)
	})
	c := newTestClient(t)
	spec := serverSpec(srv, "")

	out, err := c.Seed(context.Background(), t.TempDir(), "web01", spec)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.FailedNodes["web01"], "Received invalid data from "+spec+" for web01: "), out.FailedNodes["web01"])
}

func TestSeed_TransportErrorBecomesFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	spec := serverSpec(srv, "")
	srv.Close()

	c := newTestClient(t)
	out, err := c.Seed(context.Background(), t.TempDir(), "web01", spec)
	require.NoError(t, err)
	want := fmt.Sprintf("Failed to retrieve catalog for web01 from %s in environment production: ", spec)
	assert.True(t, strings.HasPrefix(out.FailedNodes["web01"], want), out.FailedNodes["web01"])
}

func TestSeed_RetryAfterStartsCooldown(t *testing.T) {
	srv, _ := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "The server is temporarily unable to service your request")
	})
	cd := fetcher.NewCooldown()
	c := newTestClient(t, WithCooldown(cd))
	spec := serverSpec(srv, "")

	start := time.Now()
	out, err := c.Seed(context.Background(), t.TempDir(), "web01", spec)
	require.NoError(t, err)
	assert.Equal(t, "The server is temporarily unable to service your request", out.FailedNodes["web01"])

	parsed, err := puppet.ParseServer(spec)
	require.NoError(t, err)
	assert.True(t, cd.Until(parsed.String()).After(start.Add(100*time.Second)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Seed(ctx, t.TempDir(), "web02", spec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrServerUnavailable))
}

func TestSeed_SaveFailureIsNotFatal(t *testing.T) {
	srv, _ := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})
	c := newTestClient(t)

	notADir := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(notADir, nil, 0o644))

	out, err := c.Seed(context.Background(), notADir, "web01", serverSpec(srv, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"web01"}, out.CompiledNodes)
}

func TestSeed_RejectsBadArguments(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		name                string
		label, node, server string
	}{
		{"empty label", "", "web01", "puppet"},
		{"empty node", "/tmp/x", "", "puppet"},
		{"node with slash", "/tmp/x", "../etc", "puppet"},
		{"bad server", "/tmp/x", "web01", "puppet/a/b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Seed(ctx, tt.label, tt.node, tt.server)
			require.Error(t, err)
		})
	}
}

func TestSeed_CanceledContextIsAnError(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Seed(ctx, t.TempDir(), "web01", "puppet.example.com")
	require.ErrorIs(t, err, context.Canceled)
}

func TestNew_RequiresHTTPClient(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

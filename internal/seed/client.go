// Package seed retrieves compiled catalogs from a Puppet server and stores
// them on disk, reporting each node as compiled or failed.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"catalogpull/internal/fetcher"
	"catalogpull/internal/pull"
	"catalogpull/internal/puppet"
)

var ErrServerUnavailable = errors.New("server unavailable")

type Client struct {
	http     *puppet.Client
	envs     *EnvironmentResolver
	cooldown *fetcher.Cooldown
	logger   *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithEnvironmentResolver(r *EnvironmentResolver) Option {
	return func(c *Client) {
		if r != nil {
			c.envs = r
		}
	}
}

func WithCooldown(cd *fetcher.Cooldown) Option {
	return func(c *Client) {
		if cd != nil {
			c.cooldown = cd
		}
	}
}

func New(httpClient *puppet.Client, opts ...Option) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("seed: http client is nil")
	}
	c := &Client{
		http:     httpClient,
		envs:     NewEnvironmentResolver("", DefaultEnvironment),
		cooldown: fetcher.NewCooldown(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

var _ pull.SeedClient = (*Client)(nil)

// Seed compiles node on server and writes the catalog to <label>/<node>.json.
// Anything the server or the network reports about the node is a failed
// outcome; an error is returned only for unusable arguments or a done ctx.
func (c *Client) Seed(ctx context.Context, label, node, server string) (pull.SeedOutcome, error) {
	if ctx == nil {
		return pull.SeedOutcome{}, errors.New("seed: ctx is nil")
	}
	if strings.TrimSpace(label) == "" {
		return pull.SeedOutcome{}, errors.New("seed: label is required")
	}
	if strings.TrimSpace(node) == "" || strings.ContainsAny(node, `/\`) {
		return pull.SeedOutcome{}, fmt.Errorf("seed: invalid node name %q", node)
	}
	srv, err := puppet.ParseServer(server)
	if err != nil {
		return pull.SeedOutcome{}, fmt.Errorf("seed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return pull.SeedOutcome{}, err
	}

	env := srv.Environment
	if env == "" {
		env, err = c.envs.Resolve(ctx, node)
		if err != nil {
			return pull.FailedOutcome(node, fmt.Sprintf("Could not determine environment for %s: %v", node, err)), nil
		}
	}

	if err := c.cooldown.Wait(ctx, srv.String()); err != nil {
		return pull.SeedOutcome{}, fmt.Errorf("%w: %s: %v", ErrServerUnavailable, server, err)
	}

	u := srv.URL("/puppet/v3/catalog/"+url.PathEscape(node), url.Values{"environment": {env}})
	body, err := c.http.Get(ctx, u)
	if err != nil {
		if ctx.Err() != nil {
			return pull.SeedOutcome{}, ctx.Err()
		}
		var er *puppet.ErrorResponse
		if errors.As(err, &er) {
			return c.serverFailure(srv, node, er), nil
		}
		return pull.FailedOutcome(node, fmt.Sprintf("Failed to retrieve catalog for %s from %s in environment %s: %v", node, server, env, err)), nil
	}

	var catalog map[string]json.RawMessage
	if err := json.Unmarshal(body, &catalog); err != nil {
		return pull.FailedOutcome(node, fmt.Sprintf("Received invalid data from %s for %s: %v", server, node, err)), nil
	}

	if err := save(label, node, body); err != nil {
		c.logger.Error("failed to save catalog", "node", node, "dir", label, "error", err)
	}
	return pull.CompiledOutcome(node), nil
}

func (c *Client) serverFailure(srv puppet.Server, node string, er *puppet.ErrorResponse) pull.SeedOutcome {
	if er.StatusCode == http.StatusServiceUnavailable && c.cooldown.Extend(srv.String(), er.RetryAfter) {
		c.logger.Warn("server asked to back off", "server", srv.String(), "retry_after", er.RetryAfter)
	}
	msg := er.Message
	if msg == "" {
		msg = er.Error()
	}
	return pull.FailedOutcome(node, msg)
}

func save(dir, node string, catalog []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, node+".json"), catalog, 0o644)
}

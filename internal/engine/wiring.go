package engine

import (
	"fmt"
	"log/slog"

	"catalogpull/internal/config"
	"catalogpull/internal/discovery"
	"catalogpull/internal/fetcher"
	"catalogpull/internal/puppet"
	"catalogpull/internal/seed"
)

type collaborators struct {
	finder *discovery.Finder
	seeder *seed.Client
}

// buildCollaborators creates one Puppet HTTP client shared by discovery and
// seeding, so both use the same certificate and connection pool.
func buildCollaborators(cfg *config.Config, logger *slog.Logger) (*collaborators, error) {
	httpClient, err := puppet.NewClient(
		puppet.WithTLSFiles(cfg.TLS.Cert, cfg.TLS.Key, cfg.TLS.CA),
		puppet.WithTimeout(cfg.Runtime.RequestTimeout),
		puppet.WithVerbose(cfg.Runtime.Verbose, logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create puppet client: %w", err)
	}

	finder, err := discovery.NewFinder(httpClient,
		discovery.WithPuppetDBURL(cfg.Discovery.PuppetDBURL),
		discovery.WithYAMLDir(cfg.Discovery.YAMLDir),
		discovery.WithEnvironment(cfg.Discovery.Environment),
		discovery.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	seeder, err := seed.New(httpClient,
		seed.WithLogger(logger),
		seed.WithEnvironmentResolver(seed.NewEnvironmentResolver(cfg.Discovery.YAMLDir, cfg.Discovery.Environment)),
		seed.WithCooldown(fetcher.NewCooldown()),
	)
	if err != nil {
		return nil, err
	}

	return &collaborators{finder: finder, seeder: seeder}, nil
}

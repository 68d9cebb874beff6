package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"catalogpull/internal/config"
	gh "catalogpull/internal/github"
	"catalogpull/internal/output"
	"catalogpull/internal/pull"
)

// Publisher files a run report somewhere people will see it.
type Publisher interface {
	CreateIssue(ctx context.Context, target string, issue gh.Issue) (string, error)
}

func newGitHubPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gh.Client, error) {
	host := gh.DefaultHost
	if cfg.Publish.GitHubBaseURL != "" {
		u, err := url.Parse(cfg.Publish.GitHubBaseURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid github api url %q", cfg.Publish.GitHubBaseURL)
		}
		host = u.Hostname()
	}

	token, source, err := gh.ResolveAuthToken(ctx, "", host)
	if err != nil {
		return nil, fmt.Errorf("resolve github token: %w", err)
	}
	if token == "" {
		return nil, fmt.Errorf("--publish-issue needs a GitHub token (set GITHUB_TOKEN or run `gh auth login -h %s`)", host)
	}
	logger.Debug("github token resolved", "source", string(source), "host", host)

	var opts []gh.Option
	opts = append(opts, gh.WithVerbose(cfg.Runtime.Verbose, logger))
	if cfg.Publish.GitHubBaseURL != "" {
		opts = append(opts, gh.WithBaseURL(cfg.Publish.GitHubBaseURL))
	}
	return gh.NewClient(ctx, token, opts...)
}

func issueTitle(cfg *config.Config, rep *pull.Report) string {
	return fmt.Sprintf("Catalog pull: %d of %d nodes fail to compile on %s",
		rep.FailedNodesTotal, rep.TotalNodes, strings.TrimSpace(cfg.Servers.New))
}

// publish never changes the exit code; a failed publish is logged.
func (e *Engine) publish(ctx context.Context, cfg *config.Config, rep *pull.Report, meta output.RunMeta, logger *slog.Logger) {
	issue := gh.Issue{
		Title:  issueTitle(cfg, rep),
		Body:   output.RenderMarkdown(rep, meta),
		Labels: cfg.Publish.Labels,
	}
	link, err := e.Publisher.CreateIssue(ctx, cfg.Publish.Issue, issue)
	if err != nil {
		logger.Error("cannot publish report", "repo", cfg.Publish.Issue, "error", err)
		return
	}
	logger.Info("report published", "url", link)
}

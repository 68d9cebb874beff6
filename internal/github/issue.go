package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v81/github"
)

// ParseRepo splits "owner/repo".
func ParseRepo(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q: expected OWNER/REPO", s)
	}
	return owner, repo, nil
}

// Issue is what a run publishes.
type Issue struct {
	Title  string
	Body   string
	Labels []string
}

// CreateIssue opens an issue in target (OWNER/REPO) and returns its URL.
func (c *Client) CreateIssue(ctx context.Context, target string, issue Issue) (string, error) {
	if c == nil || c.Client == nil {
		return "", fmt.Errorf("create issue: nil GitHub client (use NewClient)")
	}
	owner, repo, err := ParseRepo(target)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(issue.Title) == "" {
		return "", fmt.Errorf("create issue: title is required")
	}

	req := &github.IssueRequest{
		Title: github.Ptr(issue.Title),
		Body:  github.Ptr(issue.Body),
	}
	if len(issue.Labels) > 0 {
		labels := append([]string(nil), issue.Labels...)
		req.Labels = &labels
	}

	created, _, err := c.Client.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		return "", fmt.Errorf("create issue in %s/%s: %w", owner, repo, err)
	}
	return created.GetHTMLURL(), nil
}

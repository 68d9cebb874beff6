// Package github files run reports as GitHub issues.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v81/github"
	"golang.org/x/oauth2"
)

type Client struct {
	Client *github.Client
	HTTP   *http.Client
}

type options struct {
	verbose bool
	logger  *slog.Logger
	baseURL string
}

type Option func(*options)

// WithVerbose logs one line per GitHub API request and response. Logs go to
// the logger, never to stdout, so structured console output stays clean.
func WithVerbose(enabled bool, logger *slog.Logger) Option {
	return func(o *options) {
		o.verbose = enabled
		o.logger = logger
	}
}

// WithBaseURL points the client at a GitHub Enterprise Server API root.
func WithBaseURL(raw string) Option {
	return func(o *options) {
		o.baseURL = raw
	}
}

type loggingRoundTripper struct {
	base   http.RoundTripper
	logger *slog.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.logger.Debug("github api request", "method", req.Method, "url", req.URL.String())
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.logger.Debug("github api error", "after", dur, "error", err)
	} else {
		t.logger.Debug("github api response", "status", resp.StatusCode, "after", dur)
	}
	return resp, err
}

func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("github client: ctx is nil")
	}

	o := &options{}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	transport := http.DefaultTransport
	if o.verbose {
		transport = &loggingRoundTripper{base: transport, logger: o.logger}
	}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	tc := &http.Client{Transport: transport}

	gc := github.NewClient(tc)
	if o.baseURL != "" {
		u, err := url.Parse(strings.TrimRight(o.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("github client: invalid base url %q: %w", o.baseURL, err)
		}
		gc.BaseURL = u
		gc.UploadURL = u
	}

	return &Client{
		Client: gc,
		HTTP:   tc,
	}, nil
}

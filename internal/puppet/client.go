// Package puppet is a small HTTPS client for the Puppet Server and PuppetDB
// APIs, authenticated with the agent's certificate.
package puppet

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const maxErrorBody = 64 << 10

type Client struct {
	HTTP *http.Client
}

type options struct {
	logger    *slog.Logger
	verbose   bool
	certFile  string
	keyFile   string
	caFile    string
	timeout   time.Duration
	transport http.RoundTripper
}

type Option func(*options)

// WithVerbose logs every request and response at debug level.
func WithVerbose(enabled bool, logger *slog.Logger) Option {
	return func(o *options) {
		o.verbose = enabled
		o.logger = logger
	}
}

// WithTLSFiles configures the client certificate, key and CA bundle. Empty
// values are ignored.
func WithTLSFiles(certFile, keyFile, caFile string) Option {
	return func(o *options) {
		o.certFile = certFile
		o.keyFile = keyFile
		o.caFile = caFile
	}
}

// WithTimeout bounds each request. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithTransport replaces the base transport (TLS files are then ignored).
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// loggingRoundTripper emits one line per request and response (including
// latency) when verbose logging is enabled.
type loggingRoundTripper struct {
	base   http.RoundTripper
	logger *slog.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.logger.Debug("puppet api request", "method", req.Method, "url", req.URL.String())
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.logger.Debug("puppet api error", "url", req.URL.String(), "after", dur, "error", err)
	} else {
		t.logger.Debug("puppet api response", "url", req.URL.String(), "status", resp.StatusCode, "after", dur)
	}
	return resp, err
}

func NewClient(opts ...Option) (*Client, error) {
	o := &options{}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	if o.verbose && o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	transport := o.transport
	if transport == nil {
		tlsCfg, err := loadTLSConfig(o.certFile, o.keyFile, o.caFile)
		if err != nil {
			return nil, err
		}
		base := http.DefaultTransport.(*http.Transport).Clone()
		base.TLSClientConfig = tlsCfg
		transport = base
	}
	if o.verbose {
		transport = &loggingRoundTripper{base: transport, logger: o.logger}
	}

	return &Client{HTTP: &http.Client{Transport: transport, Timeout: o.timeout}}, nil
}

func loadTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if (certFile == "") != (keyFile == "") {
		return nil, errors.New("puppet client: certificate and key must be provided together")
	}
	if certFile != "" {
		pair, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("puppet client: load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}
	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("puppet client: read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("puppet client: no certificates found in %s", caFile)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// ErrorResponse is returned for any non-2xx answer.
type ErrorResponse struct {
	Method     string
	URL        string
	StatusCode int
	// Message is the "message" field of a JSON error body, or the trimmed body.
	Message    string
	RetryAfter time.Duration
}

func (e *ErrorResponse) Error() string {
	status := fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, status)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, status, e.Message)
}

// Get performs a GET and returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, u *url.URL) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("puppet client: ctx is nil")
	}
	if c == nil || c.HTTP == nil {
		return nil, errors.New("puppet client: http client is nil")
	}
	if u == nil {
		return nil, errors.New("puppet client: url is nil")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ErrorResponse{
			Method:     req.Method,
			URL:        u.String(),
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return io.ReadAll(resp.Body)
}

// GetJSON performs a GET and decodes a 2xx JSON body into out.
func (c *Client) GetJSON(ctx context.Context, u *url.URL, out any) error {
	body, err := c.Get(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", u.String(), err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var v struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &v); err == nil && v.Message != "" {
		return v.Message
	}
	return strings.TrimSpace(string(body))
}

func retryAfter(v string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

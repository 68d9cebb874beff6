package puppet

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

const DefaultPort = "8140"

// Server identifies a Puppet server and, optionally, the environment every
// catalog request to it should be pinned to.
type Server struct {
	Scheme      string
	Host        string
	Port        string
	Environment string
}

// ParseServer accepts "host", "host:port", "host/environment",
// "host:port/environment", or the same behind an http:// or https:// scheme.
func ParseServer(spec string) (Server, error) {
	raw := strings.TrimSpace(spec)
	if raw == "" {
		return Server{}, fmt.Errorf("empty server")
	}

	scheme := "https"
	if i := strings.Index(raw, "://"); i >= 0 {
		u, err := url.Parse(raw)
		if err != nil {
			return Server{}, fmt.Errorf("invalid server %q: %w", spec, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return Server{}, fmt.Errorf("invalid server %q: unsupported scheme %q", spec, u.Scheme)
		}
		scheme = u.Scheme
		raw = u.Host + u.Path
	}

	hostPort, env, _ := strings.Cut(raw, "/")
	env = strings.Trim(env, "/")
	if strings.Contains(env, "/") {
		return Server{}, fmt.Errorf("invalid server %q: expected host[:port][/environment]", spec)
	}

	host, port := hostPort, DefaultPort
	if strings.Contains(hostPort, ":") {
		h, p, err := net.SplitHostPort(hostPort)
		if err != nil {
			return Server{}, fmt.Errorf("invalid server %q: %w", spec, err)
		}
		host, port = h, p
	}
	if host == "" || strings.ContainsAny(host, " \t") {
		return Server{}, fmt.Errorf("invalid server %q: missing host", spec)
	}

	return Server{Scheme: scheme, Host: host, Port: port, Environment: env}, nil
}

// URL builds an absolute URL on the server from an API path and query.
func (s Server) URL(path string, query url.Values) *url.URL {
	u := &url.URL{
		Scheme: s.Scheme,
		Host:   net.JoinHostPort(s.Host, s.Port),
		Path:   path,
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u
}

func (s Server) String() string {
	out := net.JoinHostPort(s.Host, s.Port)
	if s.Environment != "" {
		out += "/" + s.Environment
	}
	return out
}

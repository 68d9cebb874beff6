package engine

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"catalogpull/internal/pull"
	"catalogpull/internal/puppet"
)

// presentRunError turns a fatal run error into a single log message. Unless
// verbose, request URLs are dropped and common TLS and connection problems
// get a hint.
func presentRunError(err error, verbose bool) string {
	if err == nil {
		return "unknown error"
	}
	if verbose {
		return err.Error()
	}

	var er *puppet.ErrorResponse
	if errors.As(err, &er) {
		msg := strings.TrimSpace(er.Message)
		if msg == "" {
			msg = "request failed"
		}
		return fmt.Sprintf("Puppet API request failed (%d): %s", er.StatusCode, msg)
	}

	if errors.Is(err, pull.ErrNoNodesFound) {
		return err.Error()
	}

	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return "TLS certificate not trusted; pass the Puppet CA with --ssl-ca: " + scrubRequestFromErrorString(err.Error())
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return "TLS certificate does not match the server name: " + scrubRequestFromErrorString(err.Error())
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "cannot connect: " + opErr.Err.Error()
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return "request failed: " + urlErr.Err.Error()
	}

	return scrubRequestFromErrorString(err.Error())
}

func scrubRequestFromErrorString(s string) string {
	// net/http errors read:
	//   Get "https://puppet:8140/puppet/v3/...": x509: certificate signed by unknown authority
	// Drop the leading method and quoted URL.
	s = strings.TrimSpace(s)
	for _, m := range []string{"Get ", "GET "} {
		if !strings.Contains(s, m+"\"") {
			continue
		}
		i := strings.Index(s, m+"\"")
		rest := s[i+len(m)+1:]
		if j := strings.Index(rest, "\": "); j >= 0 {
			return strings.TrimSpace(s[:i] + rest[j+3:])
		}
	}
	return s
}

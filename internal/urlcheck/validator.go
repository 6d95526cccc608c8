// Package urlcheck validates user-supplied target URLs before any fetch is
// attempted. It is the SSRF guard for the divergence pipeline: only public
// http(s) targets pass.
package urlcheck

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Reason codes for rejected URLs.
const (
	ReasonEmpty         = "empty_url"
	ReasonUnparseable   = "unparseable"
	ReasonScheme        = "scheme_not_http"
	ReasonNoHost        = "missing_host"
	ReasonLoopback      = "loopback_address"
	ReasonLinkLocal     = "link_local_address"
	ReasonPrivateRange  = "private_address"
	ReasonUnspecified   = "unspecified_address"
)

// ValidationError reports why a target URL was rejected. It is fatal for
// the single check it belongs to and never aborts a batch.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid target %q: %s", e.URL, e.Reason)
}

// Result is the boundary-contract shape for callers that want a value
// instead of an error.
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// rfc1918 and friends; checked against any IP literal in the host.
var blockedNets = func() []*net.IPNet {
	cidrs := []string{
		"127.0.0.0/8",    // loopback
		"10.0.0.0/8",     // rfc1918
		"172.16.0.0/12",  // rfc1918
		"192.168.0.0/16", // rfc1918
		"169.254.0.0/16", // link-local (incl. cloud metadata endpoints)
		"::1/128",        // v6 loopback
		"fe80::/10",      // v6 link-local
		"fc00::/7",       // v6 unique-local
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, _ := net.ParseCIDR(c)
		nets = append(nets, n)
	}
	return nets
}()

// Validate rejects non-http(s) schemes, scheme-relative URLs, loopback,
// link-local, and RFC1918 targets. It returns nil for acceptable URLs and a
// *ValidationError otherwise. No DNS resolution is performed here; literal
// IPs and well-known local hostnames are enough to close the direct SSRF
// paths, and the crawler collaborator re-checks resolved addresses.
func Validate(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return &ValidationError{URL: raw, Reason: ReasonEmpty}
	}
	// url.Parse accepts scheme-relative ("//host/x") input; the empty
	// scheme falls out of the http(s) check below.
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{URL: raw, Reason: ReasonUnparseable}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{URL: raw, Reason: ReasonScheme}
	}
	host := u.Hostname()
	if host == "" {
		return &ValidationError{URL: raw, Reason: ReasonNoHost}
	}

	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") || lower == "localhost.localdomain" {
		return &ValidationError{URL: raw, Reason: ReasonLoopback}
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsUnspecified() {
			return &ValidationError{URL: raw, Reason: ReasonUnspecified}
		}
		for _, n := range blockedNets {
			if n.Contains(ip) {
				reason := ReasonPrivateRange
				switch {
				case ip.IsLoopback():
					reason = ReasonLoopback
				case ip.IsLinkLocalUnicast():
					reason = ReasonLinkLocal
				}
				return &ValidationError{URL: raw, Reason: reason}
			}
		}
	}
	return nil
}

// Check is the value-shaped variant of Validate for boundary callers.
func Check(raw string) Result {
	if err := Validate(raw); err != nil {
		ve := err.(*ValidationError)
		return Result{Valid: false, Reason: ve.Reason}
	}
	return Result{Valid: true}
}

// RegistrableDomain extracts the eTLD+1 for a validated URL's host, used to
// group ads under one landing domain ("shop.example.co.uk" → "example.co.uk").
// Falls back to the bare host when the public-suffix list has no answer
// (IP literals, unlisted TLDs).
func RegistrableDomain(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}
	reg, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, nil
	}
	return reg, nil
}

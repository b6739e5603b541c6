// Package urlcheck validates and canonicalizes inbound URLs before any
// network access happens. It is the sole SSRF defense in the pipeline.
package urlcheck

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/swingradar/festival-crawler/internal/festival"
)

// Config controls validator behavior.
type Config struct {
	// AllowedDomains, when non-empty, restricts scraping to these hosts and
	// their subdomains.
	AllowedDomains []string
	// LookupIP resolves hostnames so that DNS-based SSRF (a public name
	// pointing at a private address) is caught. Defaults to net.LookupIP.
	LookupIP func(host string) ([]net.IP, error)
}

// Validator rejects URLs that could reach internal network targets or smuggle
// script payloads.
type Validator struct {
	allowed  *domainAllowlist
	lookupIP func(host string) ([]net.IP, error)
}

// New builds a Validator.
func New(cfg Config) *Validator {
	lookup := cfg.LookupIP
	if lookup == nil {
		lookup = net.LookupIP
	}
	return &Validator{
		allowed:  newDomainAllowlist(cfg.AllowedDomains),
		lookupIP: lookup,
	}
}

var scriptPatterns = []string{
	"javascript:",
	"data:",
	"vbscript:",
	"<script",
	"onerror=",
	"onload=",
	"onclick=",
}

// Validate checks rawURL and returns its canonical form, or a SECURITY error
// naming the rejection reason.
func (v *Validator) Validate(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", festival.E(festival.CodeSecurity, "url is empty", nil)
	}

	lower := strings.ToLower(trimmed)
	for _, pattern := range scriptPatterns {
		if strings.Contains(lower, pattern) {
			return "", festival.E(festival.CodeSecurity, fmt.Sprintf("url contains forbidden pattern %q", pattern), nil)
		}
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", festival.E(festival.CodeSecurity, "url is not parsable", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", festival.E(festival.CodeSecurity, fmt.Sprintf("scheme %q is not allowed", u.Scheme), nil)
	}
	if u.User != nil {
		return "", festival.E(festival.CodeSecurity, "url must not embed credentials", nil)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", festival.E(festival.CodeSecurity, "url has no host", nil)
	}
	if err := v.checkPort(u); err != nil {
		return "", err
	}
	if err := v.checkHost(host); err != nil {
		return "", err
	}
	if !v.allowed.Allows(host) {
		return "", festival.E(festival.CodeSecurity, fmt.Sprintf("domain %q is not on the allow list", host), nil)
	}

	return canonicalize(u), nil
}

var allowedPorts = map[string]struct{}{
	"": {}, "80": {}, "443": {}, "8080": {}, "8443": {},
}

func (v *Validator) checkPort(u *url.URL) error {
	port := u.Port()
	if _, ok := allowedPorts[port]; !ok {
		return festival.E(festival.CodeSecurity, fmt.Sprintf("port %q is not allowed", port), nil)
	}
	return nil
}

func (v *Validator) checkHost(host string) error {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return festival.E(festival.CodeSecurity, fmt.Sprintf("host %q targets the local machine", host), nil)
	}

	if ip := net.ParseIP(host); ip != nil {
		return checkIP(ip, host)
	}

	// Hostname: resolve so that DNS rebinding toward internal ranges is caught
	// before the fetcher ever connects.
	ips, err := v.lookupIP(host)
	if err != nil {
		return festival.E(festival.CodeSecurity, fmt.Sprintf("host %q does not resolve", host), err)
	}
	for _, ip := range ips {
		if err := checkIP(ip, host); err != nil {
			return err
		}
	}
	return nil
}

func checkIP(ip net.IP, host string) error {
	switch {
	case ip.IsLoopback():
		return festival.E(festival.CodeSecurity, fmt.Sprintf("host %q resolves to a loopback address", host), nil)
	case ip.IsPrivate():
		return festival.E(festival.CodeSecurity, fmt.Sprintf("host %q resolves to a private address", host), nil)
	case ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast():
		return festival.E(festival.CodeSecurity, fmt.Sprintf("host %q resolves to a link-local address", host), nil)
	case ip.IsUnspecified():
		return festival.E(festival.CodeSecurity, fmt.Sprintf("host %q resolves to an unspecified address", host), nil)
	}
	return nil
}

// canonicalize standardizes the URL: lower-cased scheme/host, default ports
// stripped, fragment dropped, query parameters sorted.
func canonicalize(u *url.URL) string {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.RawQuery = u.Query().Encode()
	return u.String()
}

// domainAllowlist stores exact hosts; subdomains of an entry are allowed too.
type domainAllowlist struct {
	entries []string
}

func newDomainAllowlist(domains []string) *domainAllowlist {
	list := &domainAllowlist{}
	for _, raw := range domains {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		list.entries = append(list.entries, value)
	}
	if len(list.entries) == 0 {
		return nil
	}
	return list
}

// Allows reports whether host matches the allow list. A nil list allows all.
func (l *domainAllowlist) Allows(host string) bool {
	if l == nil {
		return true
	}
	host = strings.ToLower(host)
	for _, entry := range l.entries {
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}

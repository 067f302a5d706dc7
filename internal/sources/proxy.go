// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"net/url"
	"strings"

	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// ProxyRewriter maps publisher URLs through an institutional proxy
// (EZproxy-style host rewriting). It is configuration-gated: a zero
// value is disabled and rewrites nothing.
type ProxyRewriter struct {
	base *url.URL
}

// NewProxyRewriter parses the proxy base URL, e.g.
// "https://login.ezproxy.example.edu/login?url=". An empty string
// disables the rewriter.
func NewProxyRewriter(proxyURL string) (*ProxyRewriter, error) {
	if proxyURL == "" {
		return &ProxyRewriter{}, nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, err
	}
	return &ProxyRewriter{base: u}, nil
}

// Enabled reports whether a proxy is configured.
func (p *ProxyRewriter) Enabled() bool { return p != nil && p.base != nil }

// Rewrite wraps a target URL in the proxy's login redirect. Proxied
// candidates carry requires_auth so the downloader can order and report
// them honestly.
func (p *ProxyRewriter) Rewrite(target string) types.URLCandidate {
	proxied := p.base.String()
	if strings.Contains(proxied, "url=") {
		proxied += url.QueryEscape(target)
	} else {
		proxied = strings.TrimSuffix(proxied, "/") + "/" + target
	}
	return types.URLCandidate{
		URL:          proxied,
		Source:       "proxy",
		RequiresAuth: true,
		Confidence:   0.4,
	}
}

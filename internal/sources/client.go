// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources implements per-source HTTP clients for the bioscience
// APIs the pipeline queries: NCBI E-utilities, OpenAlex, Semantic Scholar,
// Europe PMC, Unpaywall, CORE, bioRxiv/medRxiv, arXiv, Crossref, and an
// optional institutional proxy. Every client owns a token-bucket rate
// limiter sized to its API's budget, retries transient failures in one
// place, and returns either a structured result or a categorized Error.
package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/omics-oracle/omics-oracle/internal/httputil"
	"github.com/omics-oracle/omics-oracle/pkg/types"
)

// client carries the shared plumbing every source client embeds: the
// HTTP connection pool, rate limiter, and request defaults.
type client struct {
	name      string
	http      *http.Client
	limiter   *httputil.RateLimiter
	userAgent string
	retries   int
}

func newClient(name string, rps float64, cfg types.ClientConfig, shared types.HTTPConfig) client {
	timeout := shared.Timeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.RateLimitRPS > 0 {
		rps = cfg.RateLimitRPS
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}
	ua := shared.UserAgent
	if ua == "" {
		ua = "omics-oracle/0.1"
	}
	return client{
		name:      name,
		http:      &http.Client{Timeout: timeout},
		limiter:   httputil.NewRateLimiter(rps),
		userAgent: ua,
		retries:   retries,
	}
}

// Name returns the source identifier used in logs, download history, and
// sources_used maps.
func (c *client) Name() string { return c.name }

// get performs a rate-limited, retried GET and returns the response on
// HTTP 2xx. Non-2xx statuses and transport failures come back as *Error.
func (c *client) get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, wrapTransport(c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Source: c.name, Category: CategoryMalformed, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.retries)
	if err != nil {
		return nil, wrapTransport(c.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, categorize(c.name, resp)
	}
	return resp, nil
}

// getJSON fetches url and decodes the JSON body into out.
func (c *client) getJSON(ctx context.Context, url string, header http.Header, out any) error {
	resp, err := c.get(ctx, url, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return malformed(c.name, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// getXML fetches url and decodes the XML body into out.
func (c *client) getXML(ctx context.Context, url string, header http.Header, out any) error {
	resp, err := c.get(ctx, url, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		return malformed(c.name, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

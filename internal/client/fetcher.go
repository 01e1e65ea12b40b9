package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"instruments/scraper/internal/config"
	"instruments/scraper/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// Page is the raw content of one fetched listing page. URL is where the content was served
// from after redirects, so relative links on the page resolve against it.
type Page struct {
	URL  string
	Body string
}

type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// FetchError reports a page that could not be retrieved. StatusCode is zero
// when no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves listing pages over HTTP. Failed requests are never retried.
// With a proxy supplier every request asks it for the next proxy, so a round-robin
// supplier spreads the crawl over all of its proxies.
type Fetcher struct {
	cfg           config.CrawlerConfig
	rl            ratelimit.Limiter
	proxySupplier proxy.ProxySupplier

	mu      sync.Mutex
	clients map[string]*resty.Client // keyed by proxy URL, "" for direct
}

func NewFetcher(cfg config.CrawlerConfig, proxySupplier proxy.ProxySupplier) *Fetcher {
	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	return &Fetcher{
		cfg:           cfg,
		rl:            rl,
		proxySupplier: proxySupplier,
		clients:       make(map[string]*resty.Client),
	}
}

// client returns the HTTP client for the next proxy, creating it on first use.
func (f *Fetcher) client() *resty.Client {
	proxyURL := ""
	if f.proxySupplier != nil {
		proxyURL = f.proxySupplier.Get()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[proxyURL]; ok {
		return client
	}

	client := resty.New().
		SetTimeout(time.Duration(f.cfg.Timeout)*time.Second).
		SetRetryCount(0).
		SetHeader("User-Agent", f.cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.5")
	if proxyURL != "" {
		client.SetProxy(proxyURL)
		log.Infof("🔗 Using proxy: %s", proxyURL)
	}

	f.clients[proxyURL] = client
	return client
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	f.rl.Take()

	resp, err := f.client().R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &FetchError{URL: url, Err: fmt.Errorf("request cancelled: %w", ctx.Err())}
		}
		return nil, &FetchError{URL: url, Err: err}
	}

	if resp.IsError() {
		return nil, &FetchError{
			URL:        url,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("unexpected status %s", resp.Status()),
		}
	}

	finalURL := url
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}

	log.Debugf("Fetched %s (%d bytes)", finalURL, len(resp.String()))
	return &Page{URL: finalURL, Body: resp.String()}, nil
}

func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for proxyURL, client := range f.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(f.clients, proxyURL)
	}
	return errors.Join(errs...)
}

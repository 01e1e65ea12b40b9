package proxy

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"
)

const maxConcurrentChecks = 16

// ProxySupplier hands out working proxies in round-robin order
type ProxySupplier interface {
	Get() string
}

type proxySupplier struct {
	mu      sync.Mutex
	proxies []string
	next    int
}

// NewProxySupplier checks every proxy against testURL and keeps the reachable ones in their
// configured order. Unreachable proxies are dropped with a log line, never reported as an error.
func NewProxySupplier(ctx context.Context, proxies []string, testURL string) ProxySupplier {
	if len(proxies) == 0 {
		return &proxySupplier{}
	}

	log.Infof("🔄 Checking %d proxies against %s", len(proxies), testURL)

	reachable := make([]bool, len(proxies))
	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentChecks)
	for i, proxyURL := range proxies {
		g.Go(func() error {
			reachable[i] = checkProxy(ctx, proxyURL, testURL)
			return nil
		})
	}
	_ = g.Wait()

	supplier := &proxySupplier{proxies: make([]string, 0, len(proxies))}
	for i, ok := range reachable {
		if !ok {
			log.Warnf("⚠️ Proxy %s is unreachable, skipping", proxies[i])
			continue
		}
		supplier.proxies = append(supplier.proxies, proxies[i])
	}

	log.Infof("✅ %d of %d proxies usable", len(supplier.proxies), len(proxies))
	return supplier
}

// Get returns the next proxy URL, or "" when none is available
func (p *proxySupplier) Get() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	proxyURL := p.proxies[p.next]
	p.next = (p.next + 1) % len(p.proxies)
	return proxyURL
}

func checkProxy(ctx context.Context, proxyURL, testURL string) bool {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0).
		SetProxy(proxyURL)
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		Get(testURL)
	if err != nil {
		log.Debugf("Proxy check via %s failed: %v", proxyURL, err)
		return false
	}
	if resp.IsError() {
		log.Debugf("Proxy check via %s returned %s", proxyURL, resp.Status())
		return false
	}
	return true
}

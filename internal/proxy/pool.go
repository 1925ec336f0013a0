// Package proxy rotates the browser through a list of proxy servers.
package proxy

import (
	"strings"
	"sync"
	"time"
)

// DefaultCooldown is how long a proxy that failed to start a browser is skipped.
const DefaultCooldown = 5 * time.Minute

// Pool hands out proxies round-robin, skipping ones that failed recently.
type Pool struct {
	proxies  []string
	index    int
	mu       sync.Mutex
	failed   map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
}

// NewPool creates a pool over proxies. Empty entries are dropped.
func NewPool(proxies []string) *Pool {
	kept := make([]string, 0, len(proxies))
	for _, p := range proxies {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return &Pool{
		proxies:  kept,
		failed:   make(map[string]time.Time),
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
}

// ParseList splits a comma-separated proxy setting into a pool.
func ParseList(s string) *Pool {
	return NewPool(strings.Split(s, ","))
}

// Len returns the number of configured proxies.
func (p *Pool) Len() int {
	return len(p.proxies)
}

// Next returns the next healthy proxy, or "" when the pool is empty.
// When every proxy failed recently the next one in turn is returned anyway.
func (p *Pool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	start := p.index
	for {
		proxy := p.proxies[p.index]
		p.index = (p.index + 1) % len(p.proxies)

		if failTime, ok := p.failed[proxy]; ok {
			if p.now().Sub(failTime) < p.cooldown {
				if p.index == start {
					return proxy
				}
				continue
			}
			delete(p.failed, proxy)
		}

		return proxy
	}
}

// MarkFailed marks a proxy as failed so it will be skipped for a while
func (p *Pool) MarkFailed(proxy string) {
	if proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[proxy] = p.now()
}

// MarkHealthy clears the failure status of a proxy
func (p *Pool) MarkHealthy(proxy string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failed, proxy)
}

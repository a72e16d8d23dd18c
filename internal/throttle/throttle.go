// Package throttle paces navigations per target host so that scenarios
// running in parallel do not burst requests at the same public website.
package throttle

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config defines the navigation pacing.
type Config struct {
	RPS             float64       // Navigations per second per host; <= 0 disables pacing
	Burst           int           // Burst size per host
	CleanupInterval time.Duration // How often to drop idle host limiters
}

// DefaultConfig is gentle enough for public sites while keeping the suite fast.
var DefaultConfig = Config{
	RPS:             2,
	Burst:           4,
	CleanupInterval: 10 * time.Minute,
}

type hostEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Throttle manages one limiter per host.
type Throttle struct {
	limiters map[string]*hostEntry
	mu       sync.Mutex
	config   Config

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a throttle and starts its idle-limiter cleanup loop.
func New(config Config) *Throttle {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig.CleanupInterval
	}
	th := &Throttle{
		limiters: make(map[string]*hostEntry),
		config:   config,
		stopCh:   make(chan struct{}),
	}

	th.wg.Add(1)
	go th.cleanupLoop()

	return th
}

// Wait blocks until a navigation to rawURL is allowed or ctx is done.
func (th *Throttle) Wait(ctx context.Context, rawURL string) error {
	host, err := HostOf(rawURL)
	if err != nil {
		return err
	}
	if err := th.limiter(host).Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("throttle %s: %w", host, ctxErr)
		}
		// The limiter refuses up front when the reservation would outlast ctx's deadline.
		return fmt.Errorf("throttle %s: %w: %v", host, context.DeadlineExceeded, err)
	}
	return nil
}

func (th *Throttle) allow(host string) bool {
	return th.limiter(strings.ToLower(host)).Allow()
}

func (th *Throttle) limiter(host string) *rate.Limiter {
	th.mu.Lock()
	defer th.mu.Unlock()

	if entry, ok := th.limiters[host]; ok {
		entry.lastUsed = time.Now()
		return entry.limiter
	}

	limit := rate.Inf
	burst := th.config.Burst
	if th.config.RPS > 0 {
		limit = rate.Limit(th.config.RPS)
	}
	if burst <= 0 {
		burst = 1
	}
	entry := &hostEntry{
		limiter:  rate.NewLimiter(limit, burst),
		lastUsed: time.Now(),
	}
	th.limiters[host] = entry
	return entry.limiter
}

// HostOf returns the lower-cased host of an absolute URL.
func HostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("throttle: parse %q: %w", rawURL, err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("throttle: %q has no host", rawURL)
	}
	return strings.ToLower(parsed.Hostname()), nil
}

// Cleanup drops limiters idle for longer than the cleanup interval.
func (th *Throttle) Cleanup() {
	th.mu.Lock()
	defer th.mu.Unlock()

	cutoff := time.Now().Add(-th.config.CleanupInterval)
	for host, entry := range th.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(th.limiters, host)
		}
	}
}

func (th *Throttle) cleanupLoop() {
	defer th.wg.Done()

	ticker := time.NewTicker(th.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			th.Cleanup()
		case <-th.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (th *Throttle) Stop() {
	th.stopOnce.Do(func() { close(th.stopCh) })
	th.wg.Wait()
}

// Len returns the number of tracked hosts.
func (th *Throttle) Len() int {
	th.mu.Lock()
	defer th.mu.Unlock()
	return len(th.limiters)
}

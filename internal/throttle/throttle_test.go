package throttle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// =============================================================================
// Generators
// =============================================================================

func hostGenerator() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		return rapid.StringMatching(`[a-z]{3,10}`).Draw(t, "label") + "." +
			rapid.SampledFrom([]string{"com", "dev", "net"}).Draw(t, "tld")
	})
}

// =============================================================================
// Property: navigations beyond burst are held back
// =============================================================================

func testThrottle_ExceedingBurstBlocked(t *rapid.T) {
	burst := rapid.IntRange(1, 10).Draw(t, "burst")
	th := New(Config{RPS: 0.001, Burst: burst, CleanupInterval: time.Hour})
	defer th.Stop()

	host := hostGenerator().Draw(t, "host")
	for i := 0; i < burst; i++ {
		if !th.allow(host) {
			t.Fatalf("navigation %d of burst %d should be allowed", i+1, burst)
		}
	}
	if th.allow(host) {
		t.Fatalf("navigation beyond burst %d should be blocked", burst)
	}
}

func TestThrottle_ExceedingBurstBlocked(t *testing.T) {
	rapid.Check(t, testThrottle_ExceedingBurstBlocked)
}

func FuzzThrottle_ExceedingBurstBlocked(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testThrottle_ExceedingBurstBlocked))
}

// =============================================================================
// Property: hosts are paced independently
// =============================================================================

func testThrottle_HostIndependence(t *rapid.T) {
	th := New(Config{RPS: 0.001, Burst: 2, CleanupInterval: time.Hour})
	defer th.Stop()

	host1 := hostGenerator().Draw(t, "host1")
	host2 := hostGenerator().Filter(func(s string) bool { return s != host1 }).Draw(t, "host2")

	th.allow(host1)
	th.allow(host1)
	if th.allow(host1) {
		t.Fatal("host1 should be blocked after exhausting burst")
	}
	if !th.allow(host2) {
		t.Fatal("host2 should be unaffected by host1's budget")
	}
}

func TestThrottle_HostIndependence(t *testing.T) {
	rapid.Check(t, testThrottle_HostIndependence)
}

// =============================================================================
// Wait semantics
// =============================================================================

func TestThrottle_WaitKeysByHost(t *testing.T) {
	th := New(Config{RPS: 0.001, Burst: 1, CleanupInterval: time.Hour})
	defer th.Stop()

	ctx := context.Background()
	if err := th.Wait(ctx, "https://www.naver.com/"); err != nil {
		t.Fatalf("first navigation should pass: %v", err)
	}
	// Different path, same host: shares the budget.
	if th.allow("WWW.NAVER.COM") {
		t.Fatal("host budget should be shared regardless of path or case")
	}
	if err := th.Wait(ctx, "https://blog.naver.com"); err != nil {
		t.Fatalf("other host should pass: %v", err)
	}
	if got := th.Len(); got != 2 {
		t.Fatalf("expected 2 tracked hosts, got %d", got)
	}
}

func TestThrottle_WaitHonorsContext(t *testing.T) {
	th := New(Config{RPS: 0.001, Burst: 1, CleanupInterval: time.Hour})
	defer th.Stop()

	if err := th.Wait(context.Background(), "https://playwright.dev"); err != nil {
		t.Fatalf("first navigation should pass: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := th.Wait(ctx, "https://playwright.dev/docs")
	if err == nil {
		t.Fatal("expected Wait to fail once the budget is spent and ctx expires")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("held navigation should report the deadline, got %v", err)
	}
}

func TestThrottle_WaitRejectsURLWithoutHost(t *testing.T) {
	th := New(DefaultConfig)
	defer th.Stop()

	for _, raw := range []string{"/portal", "www.naver.com", ""} {
		err := th.Wait(context.Background(), raw)
		if err == nil {
			t.Fatalf("Wait(%q) should fail", raw)
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			t.Fatalf("Wait(%q) reported a context error for a bad URL: %v", raw, err)
		}
	}
	if got := th.Len(); got != 0 {
		t.Fatalf("bad URLs should not create limiters, got %d", got)
	}
}

func TestThrottle_UnlimitedWhenRPSDisabled(t *testing.T) {
	th := New(Config{RPS: 0, Burst: 1})
	defer th.Stop()

	for i := 0; i < 100; i++ {
		if !th.allow("example.com") {
			t.Fatalf("navigation %d blocked with pacing disabled", i)
		}
	}
}

func TestHostOf_RejectsRelativeURLs(t *testing.T) {
	for _, raw := range []string{"", "/search", "naver.com", "://bad"} {
		if _, err := HostOf(raw); err == nil {
			t.Errorf("HostOf(%q) should fail", raw)
		}
	}
	host, err := HostOf(" https://Search.Naver.com:443/search.naver?query=x ")
	if err != nil {
		t.Fatalf("HostOf failed: %v", err)
	}
	if host != "search.naver.com" {
		t.Fatalf("HostOf = %q", host)
	}
}

// =============================================================================
// Cleanup
// =============================================================================

func TestThrottle_IdleHostsCleanedUp(t *testing.T) {
	th := New(Config{RPS: 10, Burst: 10, CleanupInterval: 10 * time.Millisecond})
	defer th.Stop()

	th.allow("a.com")
	th.allow("b.com")
	if th.Len() != 2 {
		t.Fatalf("expected 2 limiters, got %d", th.Len())
	}
	time.Sleep(15 * time.Millisecond)
	th.Cleanup()
	if th.Len() != 0 {
		t.Fatalf("expected idle limiters to be dropped, got %d", th.Len())
	}
}

func TestThrottle_ConcurrentAccessAndDoubleStop(t *testing.T) {
	th := New(Config{RPS: 1000, Burst: 2000, CleanupInterval: time.Hour})

	var wg sync.WaitGroup
	errCh := make(chan error, 20)
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for r := 0; r < 20; r++ {
				url := []string{"https://www.naver.com", "https://blog.naver.com", "https://playwright.dev"}[(g+r)%3]
				if err := th.Wait(context.Background(), url); err != nil {
					errCh <- err
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("unexpected wait error: %v", err)
	}
	if th.Len() != 3 {
		t.Fatalf("expected 3 hosts, got %d", th.Len())
	}
	th.Stop()
	th.Stop()
}

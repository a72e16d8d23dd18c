// Package browser runs the portal smoke cases in a real browser.
// All browser test files use SmokeEnv via SetupSmokeEnv(t).
package browser

import (
	"context"
	"sync"
	"testing"

	"github.com/kuitang/portal-smoke/internal/artifacts"
	"github.com/kuitang/portal-smoke/internal/config"
	"github.com/kuitang/portal-smoke/internal/driver"
	"github.com/kuitang/portal-smoke/internal/obs"
	"github.com/kuitang/portal-smoke/internal/scenario"
	"github.com/kuitang/portal-smoke/internal/throttle"
)

var smokeFixtureMu sync.Mutex
var smokeSharedFixture *SmokeEnv

// SmokeEnv is the environment shared by every browser test in the binary:
// one configuration, one run ID, one navigation throttle and one browser.
type SmokeEnv struct {
	Config    *config.Config
	RunID     string
	Throttle  *throttle.Throttle
	Artifacts artifacts.Store

	browser   *driver.Browser
	browserMu sync.Mutex
}

// SetupSmokeEnv returns the shared environment, creating it on first use.
func SetupSmokeEnv(t *testing.T) *SmokeEnv {
	t.Helper()

	smokeFixtureMu.Lock()
	defer smokeFixtureMu.Unlock()

	if smokeSharedFixture != nil {
		return smokeSharedFixture
	}

	obs.Init()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	store, err := artifacts.FromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to set up artifact storage: %v", err)
	}

	env := &SmokeEnv{
		Config:    cfg,
		RunID:     obs.NewRunID(),
		Throttle:  throttle.New(cfg.Throttle),
		Artifacts: store,
	}
	obs.Pkg("browser").Info("smoke run starting", "run_id", env.RunID, "config", cfg.Summary())
	smokeSharedFixture = env
	return env
}

// cleanupSmokeEnv closes the shared browser and stops the throttle. It is
// called once from TestMain after every test has finished.
func cleanupSmokeEnv() {
	smokeFixtureMu.Lock()
	defer smokeFixtureMu.Unlock()

	if smokeSharedFixture == nil {
		return
	}
	if smokeSharedFixture.browser != nil {
		_ = smokeSharedFixture.browser.Close()
	}
	smokeSharedFixture.Throttle.Stop()
	smokeSharedFixture = nil
}

// =============================================================================
// Browser lifecycle helpers
// =============================================================================

// InitBrowser launches the configured browser. Skips the test if Playwright
// or the browser is not available.
func (env *SmokeEnv) InitBrowser(t *testing.T) {
	t.Helper()

	env.browserMu.Lock()
	defer env.browserMu.Unlock()

	if env.browser != nil {
		return
	}

	browser, err := driver.Launch(env.Config)
	if err != nil {
		t.Skip("Playwright not available:", err)
	}
	env.browser = browser
}

// Context carries the run correlation for one case.
func (env *SmokeEnv) Context(caseName string) context.Context {
	ctx := obs.WithCorrelation(context.Background(), obs.Correlation{
		RunID:   env.RunID,
		Browser: env.Config.Browser,
	})
	return obs.WithCase(ctx, caseName)
}

// NewPage opens an isolated session whose page logs with ctx's correlation.
// The session is closed when the test ends.
func (env *SmokeEnv) NewPage(t *testing.T, ctx context.Context) *driver.Page {
	t.Helper()

	session, err := env.browser.NewSession()
	if err != nil {
		t.Fatalf("could not open browser session: %v", err)
	}
	t.Cleanup(func() {
		if err := session.Close(); err != nil {
			t.Logf("closing session: %v", err)
		}
	})
	return session.Page.WithContext(ctx)
}

// Runner returns a runner wired to the shared throttle and artifact store.
func (env *SmokeEnv) Runner() *scenario.Runner {
	return scenario.NewRunner(env.Config, env.Throttle, env.Artifacts)
}

// RunCase runs tc in a fresh session and returns its result.
func (env *SmokeEnv) RunCase(t *testing.T, runner *scenario.Runner, tc scenario.TestCase) scenario.Result {
	t.Helper()

	ctx := env.Context(tc.Name)
	page := env.NewPage(t, ctx)
	res := runner.Run(ctx, tc, page)

	for _, skipped := range res.Skipped {
		t.Logf("%s: optional step skipped: %s", tc.Name, skipped)
	}
	if res.Artifact != "" {
		t.Logf("%s: screenshot saved to %s", tc.Name, res.Artifact)
	}
	return res
}

// RequirePassed fails the test with the case's error code and message.
func RequirePassed(t *testing.T, res scenario.Result) {
	t.Helper()
	if !res.Passed() {
		t.Fatalf("%s failed after %d steps (%s): %v", res.Case, res.Completed, res.Code(), res.Err)
	}
}

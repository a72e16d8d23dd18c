// Package driver runs scenarios in a real browser. It owns the Playwright
// process and the browser, and hands out isolated sessions whose pages
// satisfy scenario.Page.
package driver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/portal-smoke/internal/config"
	"github.com/kuitang/portal-smoke/internal/obs"
)

// Browser is a launched browser engine shared by many sessions.
type Browser struct {
	pw             *playwright.Playwright
	browser        playwright.Browser
	name           string
	defaultTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Launch starts Playwright and the configured browser engine. With
// InstallBrowsers set it first downloads the driver and the browser.
func Launch(cfg *config.Config) (*Browser, error) {
	logger := obs.Pkg("driver")

	if cfg.InstallBrowsers {
		logger.Info("installing browser", "browser", cfg.Browser)
		if err := playwright.Install(&playwright.RunOptions{
			Browsers: []string{cfg.Browser},
		}); err != nil {
			return nil, fmt.Errorf("driver: install %s: %w", cfg.Browser, err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("driver: start playwright: %w", err)
	}

	var browserType playwright.BrowserType
	switch cfg.Browser {
	case config.BrowserFirefox:
		browserType = pw.Firefox
	case config.BrowserWebKit:
		browserType = pw.WebKit
	default:
		browserType = pw.Chromium
	}

	browser, err := browserType.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("driver: launch %s: %w", cfg.Browser, err)
	}

	logger.Info("browser launched",
		"browser", cfg.Browser,
		"version", browser.Version(),
		"headless", cfg.Headless,
	)
	return &Browser{
		pw:             pw,
		browser:        browser,
		name:           cfg.Browser,
		defaultTimeout: cfg.DefaultTimeout,
	}, nil
}

// Name returns the engine name (chromium, firefox or webkit).
func (b *Browser) Name() string {
	return b.name
}

// NewSession opens a fresh browser context with one page. Sessions share
// no cookies or storage.
func (b *Browser) NewSession() (*Session, error) {
	bctx, err := b.browser.NewContext()
	if err != nil {
		return nil, fmt.Errorf("driver: new context: %w", err)
	}
	if b.defaultTimeout > 0 {
		bctx.SetDefaultTimeout(milliseconds(b.defaultTimeout))
		bctx.SetDefaultNavigationTimeout(milliseconds(b.defaultTimeout))
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("driver: new page: %w", err)
	}
	return &Session{context: bctx, Page: NewPage(page)}, nil
}

// Close shuts the browser and the Playwright process down. It is safe to
// call more than once.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		var errs []error
		if b.browser != nil {
			errs = append(errs, b.browser.Close())
		}
		if b.pw != nil {
			errs = append(errs, b.pw.Stop())
		}
		b.closeErr = errors.Join(errs...)
	})
	return b.closeErr
}

// Session is one isolated browsing context.
type Session struct {
	context playwright.BrowserContext
	Page    *Page
}

// Close closes the page and its context.
func (s *Session) Close() error {
	if err := s.context.Close(); err != nil {
		return fmt.Errorf("driver: close context: %w", err)
	}
	return nil
}

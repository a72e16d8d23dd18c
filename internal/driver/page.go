package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/portal-smoke/internal/logutil"
	"github.com/kuitang/portal-smoke/internal/obs"
	"github.com/kuitang/portal-smoke/internal/scenario"
)

const contentPreviewChars = 500

// Page adapts a Playwright page to scenario.Page.
type Page struct {
	page   playwright.Page
	expect playwright.PlaywrightAssertions
	logger *slog.Logger
}

var _ scenario.Page = (*Page)(nil)

// NewPage wraps an existing Playwright page.
func NewPage(page playwright.Page) *Page {
	return &Page{
		page:   page,
		expect: playwright.NewPlaywrightAssertions(),
		logger: obs.Pkg("driver"),
	}
}

// WithContext returns a copy that logs with the correlation fields in ctx.
func (p *Page) WithContext(ctx context.Context) *Page {
	cp := *p
	cp.logger = obs.From(ctx).With("pkg", "driver")
	return &cp
}

// IsTimeout reports whether err is a Playwright timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, playwright.ErrTimeout)
}

// waitError marks Playwright timeouts with scenario.ErrWaitTimeout and
// passes every other error through.
func waitError(err error, what string) error {
	if err == nil {
		return nil
	}
	if IsTimeout(err) {
		return fmt.Errorf("%s: %w: %w", what, scenario.ErrWaitTimeout, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// assertionError treats every failed web-first assertion as an expired
// wait: the assertion retried until its budget ran out.
func assertionError(err error, what string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", what, scenario.ErrWaitTimeout, err)
}

// milliseconds converts a budget to Playwright's unit. Zero means "no
// timeout" to Playwright, so budgets never go below one millisecond.
func milliseconds(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	if ms < 1 {
		return 1
	}
	return ms
}

func waitUntilState(wait scenario.WaitCondition) *playwright.WaitUntilState {
	switch wait {
	case scenario.WaitCommit:
		return playwright.WaitUntilStateCommit
	case scenario.WaitDOMContentLoaded:
		return playwright.WaitUntilStateDomcontentloaded
	case scenario.WaitNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	default:
		return playwright.WaitUntilStateLoad
	}
}

func (p *Page) Navigate(url string, wait scenario.WaitCondition, timeout time.Duration) error {
	start := time.Now()
	resp, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntilState(wait),
		Timeout:   playwright.Float(milliseconds(timeout)),
	})
	if err != nil {
		p.logger.Warn("navigation failed", "url", url, "wait_until", wait, "error", err)
		return waitError(err, "goto "+url)
	}

	attrs := []any{
		"url", url,
		"final_url", p.page.URL(),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if resp != nil {
		attrs = append(attrs,
			"status", resp.Status(),
			"headers", logutil.FormatHeadersForLog(resp.Headers()),
		)
	}
	p.logger.Debug("navigated", attrs...)
	return nil
}

func (p *Page) Locate(selector scenario.Selector) scenario.Element {
	return &Element{page: p, selector: selector, locator: p.locator(selector)}
}

// locator builds first(alt0 or alt1 or ...).
func (p *Page) locator(selector scenario.Selector) playwright.Locator {
	if len(selector) == 0 {
		return p.page.Locator(":root").First()
	}
	loc := p.page.Locator(selector[0])
	for _, alt := range selector[1:] {
		loc = loc.Or(p.page.Locator(alt))
	}
	return loc.First()
}

func (p *Page) AssertTitle(pattern *regexp.Regexp, timeout time.Duration) error {
	err := p.expect.Page(p.page).ToHaveTitle(pattern, playwright.PageAssertionsToHaveTitleOptions{
		Timeout: playwright.Float(milliseconds(timeout)),
	})
	if err != nil {
		p.dumpState("title assertion failed")
	}
	return assertionError(err, fmt.Sprintf("title /%s/", pattern))
}

func (p *Page) AssertURL(pattern *regexp.Regexp, timeout time.Duration) error {
	err := p.expect.Page(p.page).ToHaveURL(pattern, playwright.PageAssertionsToHaveURLOptions{
		Timeout: playwright.Float(milliseconds(timeout)),
	})
	return assertionError(err, fmt.Sprintf("url /%s/", pattern))
}

func (p *Page) WaitForURL(pattern *regexp.Regexp, timeout time.Duration) error {
	err := p.page.WaitForURL(pattern, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(milliseconds(timeout)),
	})
	if err != nil {
		p.logger.Warn("url never matched", "pattern", pattern.String(), "url", p.page.URL(), "error", err)
	}
	return waitError(err, fmt.Sprintf("wait for url /%s/", pattern))
}

func (p *Page) Pause(d time.Duration) {
	p.page.WaitForTimeout(milliseconds(d))
}

func (p *Page) Screenshot() ([]byte, error) {
	shot, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return shot, nil
}

func (p *Page) URL() string {
	return p.page.URL()
}

// dumpState logs where the page is and what it shows.
func (p *Page) dumpState(reason string) {
	title, _ := p.page.Title()
	content, _ := p.page.Content()
	p.logger.Warn(reason,
		"url", p.page.URL(),
		"title", title,
		"content_preview", logutil.TruncateForLog(content, contentPreviewChars),
	)
}

// Element is a lazily resolved locator.
type Element struct {
	page     *Page
	selector scenario.Selector
	locator  playwright.Locator
}

var _ scenario.Element = (*Element)(nil)

func (e *Element) WaitVisible(timeout time.Duration) error {
	err := e.locator.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(milliseconds(timeout)),
	})
	return waitError(err, "wait for "+e.selector.String())
}

func (e *Element) AssertVisible(timeout time.Duration) error {
	err := e.page.expect.Locator(e.locator).ToBeVisible(playwright.LocatorAssertionsToBeVisibleOptions{
		Timeout: playwright.Float(milliseconds(timeout)),
	})
	if err != nil {
		e.page.dumpState("visibility assertion failed")
	}
	return assertionError(err, e.selector.String()+" visible")
}

func (e *Element) Fill(text string, timeout time.Duration) error {
	err := e.locator.Fill(text, playwright.LocatorFillOptions{
		Timeout: playwright.Float(milliseconds(timeout)),
	})
	return waitError(err, "fill "+e.selector.String())
}

func (e *Element) Press(key string, timeout time.Duration) error {
	err := e.locator.Press(key, playwright.LocatorPressOptions{
		Timeout: playwright.Float(milliseconds(timeout)),
	})
	return waitError(err, "press "+key+" on "+e.selector.String())
}

func (e *Element) Click(timeout time.Duration) error {
	err := e.locator.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(milliseconds(timeout)),
	})
	return waitError(err, "click "+e.selector.String())
}

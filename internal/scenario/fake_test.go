package scenario

import (
	"fmt"
	"regexp"
	"sync"
	"time"
)

var fakePNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// fakeSite is what the fake browser renders for one URL.
type fakeSite struct {
	title    string
	finalURL string   // URL after redirects; defaults to the requested URL
	visible  []string // selector alternatives that resolve to a visible element
	searchTo string   // URL that pressing Enter in an input leads to
}

type fakeCall struct {
	op      string
	target  string
	timeout time.Duration
}

// fakePage is a scripted browsing context. Misses return ErrWaitTimeout
// immediately unless slowMisses is set, in which case they consume their
// whole budget first, like a real browser would.
type fakePage struct {
	mu sync.Mutex

	sites      map[string]fakeSite
	slowMisses bool
	navErr     error
	clickErr   error
	shotErr    error

	url     string
	current fakeSite
	filled  string
	calls   []fakeCall
}

func newFakePage(sites map[string]fakeSite) *fakePage {
	return &fakePage{sites: sites, url: "about:blank"}
}

func healthySites() map[string]fakeSite {
	return map[string]fakeSite{
		"https://www.naver.com": {
			title:    "NAVER",
			finalURL: "https://www.naver.com/",
			visible:  []string{"body", "#query"},
			searchTo: "https://search.naver.com/search.naver",
		},
		"https://blog.naver.com": {
			title:    "Naver Blog",
			finalURL: "https://section.blog.naver.com/BlogHome.naver",
			visible:  []string{"body"},
		},
		"https://playwright.dev": {
			title:    "Fast and reliable end-to-end testing for modern web apps | Playwright",
			finalURL: "https://playwright.dev/",
			visible:  []string{"body", `button[aria-label="Search"]`},
		},
	}
}

func (p *fakePage) record(op, target string, timeout time.Duration) {
	p.calls = append(p.calls, fakeCall{op: op, target: target, timeout: timeout})
}

func (p *fakePage) miss(timeout time.Duration, what string) error {
	if p.slowMisses {
		time.Sleep(timeout)
	}
	return fmt.Errorf("%s after %s: %w", what, timeout, ErrWaitTimeout)
}

func (p *fakePage) ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	for i, c := range p.calls {
		out[i] = c.op
	}
	return out
}

func (p *fakePage) callsFor(op string) []fakeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []fakeCall
	for _, c := range p.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (p *fakePage) Navigate(url string, wait WaitCondition, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("navigate", url, timeout)
	if p.navErr != nil {
		return p.navErr
	}
	site, ok := p.sites[url]
	if !ok {
		return p.miss(timeout, "navigation to "+url+" never reached "+string(wait))
	}
	p.current = site
	p.url = url
	if site.finalURL != "" {
		p.url = site.finalURL
	}
	return nil
}

func (p *fakePage) Locate(selector Selector) Element {
	return &fakeElement{page: p, selector: selector}
}

func (p *fakePage) AssertTitle(pattern *regexp.Regexp, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("assert_title", pattern.String(), timeout)
	if !pattern.MatchString(p.current.title) {
		return p.miss(timeout, fmt.Sprintf("title %q", p.current.title))
	}
	return nil
}

func (p *fakePage) AssertURL(pattern *regexp.Regexp, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("assert_url", pattern.String(), timeout)
	if !pattern.MatchString(p.url) {
		return p.miss(timeout, "url "+p.url)
	}
	return nil
}

func (p *fakePage) WaitForURL(pattern *regexp.Regexp, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("wait_for_url", pattern.String(), timeout)
	if !pattern.MatchString(p.url) {
		return p.miss(timeout, "url "+p.url)
	}
	return nil
}

func (p *fakePage) Pause(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("pause", "", d)
}

func (p *fakePage) Screenshot() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("screenshot", "", 0)
	if p.shotErr != nil {
		return nil, p.shotErr
	}
	return fakePNG, nil
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

type fakeElement struct {
	page     *fakePage
	selector Selector
}

// visible reports whether any alternative resolves; callers hold the lock.
func (e *fakeElement) visible() bool {
	for _, alt := range e.selector {
		for _, v := range e.page.current.visible {
			if alt == v {
				return true
			}
		}
	}
	return false
}

func (e *fakeElement) check(op string, timeout time.Duration) error {
	e.page.record(op, e.selector.String(), timeout)
	if !e.visible() {
		return e.page.miss(timeout, e.selector.String()+" not visible")
	}
	return nil
}

func (e *fakeElement) WaitVisible(timeout time.Duration) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.check("wait_visible", timeout)
}

func (e *fakeElement) AssertVisible(timeout time.Duration) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.check("assert_visible", timeout)
}

func (e *fakeElement) Fill(text string, timeout time.Duration) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.check("fill", timeout); err != nil {
		return err
	}
	e.page.filled = text
	return nil
}

func (e *fakeElement) Press(key string, timeout time.Duration) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.check("press", timeout); err != nil {
		return err
	}
	if key == "Enter" && e.page.current.searchTo != "" {
		e.page.url = e.page.current.searchTo + "?query=" + e.page.filled
		e.page.current = fakeSite{title: e.page.filled + " : search", visible: []string{"body"}}
	}
	return nil
}

func (e *fakeElement) Click(timeout time.Duration) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.check("click", timeout); err != nil {
		return err
	}
	return e.page.clickErr
}

package scenario

import (
	"regexp"
	"time"

	"github.com/kuitang/portal-smoke/internal/config"
)

// CaseTimeout is the ceiling every case carries.
const CaseTimeout = 60 * time.Second

// Case names, as reported in results and logs.
const (
	NameHomepageLoad          = "HomepageLoad"
	NameSearchFlow            = "SearchFlow"
	NameBlogNavigation        = "BlogNavigation"
	NameExternalToolSmokeTest = "ExternalToolSmokeTest"
)

// Selectors the cases depend on.
var (
	SearchInput   = CSS("#query")
	PageBody      = CSS("body")
	SearchTrigger = AnyOf(`button[aria-label="Search"]`, `button:has-text("Search")`)
)

// SearchQuery is typed into the portal's search box.
const SearchQuery = "Playwright"

// TestCase is a named, ordered list of steps with an overall ceiling.
type TestCase struct {
	Name    string
	Steps   []Step
	Timeout time.Duration
}

// Targets are the sites the cases visit and the patterns they expect.
type Targets struct {
	PortalURL string
	BlogURL   string
	ToolURL   string

	PortalTitle    *regexp.Regexp
	SearchURL      *regexp.Regexp
	BlogURLPattern *regexp.Regexp
	ToolTitle      *regexp.Regexp
}

// DefaultTargets points at the public sites.
func DefaultTargets() Targets {
	return Targets{
		PortalURL:      config.DefaultPortalURL,
		BlogURL:        config.DefaultBlogURL,
		ToolURL:        config.DefaultToolURL,
		PortalTitle:    regexp.MustCompile(`(?i)NAVER`),
		SearchURL:      regexp.MustCompile(`search\.naver\.com`),
		BlogURLPattern: regexp.MustCompile(`blog\.naver\.com`),
		ToolTitle:      regexp.MustCompile(`(?i)Playwright`),
	}
}

// TargetsFromConfig overrides the default URLs with configured ones. The
// expected patterns stay the same.
func TargetsFromConfig(cfg *config.Config) Targets {
	t := DefaultTargets()
	if cfg == nil {
		return t
	}
	if cfg.PortalURL != "" {
		t.PortalURL = cfg.PortalURL
	}
	if cfg.BlogURL != "" {
		t.BlogURL = cfg.BlogURL
	}
	if cfg.ToolURL != "" {
		t.ToolURL = cfg.ToolURL
	}
	return t
}

// HomepageLoad checks that the portal root renders with its brand title.
func HomepageLoad(t Targets) TestCase {
	return TestCase{
		Name:    NameHomepageLoad,
		Timeout: CaseTimeout,
		Steps: []Step{
			Navigate{URL: t.PortalURL, WaitUntil: WaitDOMContentLoaded},
			AssertTitle{Pattern: t.PortalTitle, Timeout: 10 * time.Second},
			AssertVisible{Selector: PageBody},
		},
	}
}

// SearchFlow submits a query from the portal root and expects to land on
// the search results host.
func SearchFlow(t Targets) TestCase {
	return TestCase{
		Name:    NameSearchFlow,
		Timeout: CaseTimeout,
		Steps: []Step{
			Navigate{URL: t.PortalURL, WaitUntil: WaitDOMContentLoaded},
			RequireVisible{Selector: SearchInput, Timeout: 10 * time.Second},
			Fill{Selector: SearchInput, Text: SearchQuery},
			Submit{Selector: SearchInput, Key: "Enter"},
			WaitForURL{Pattern: t.SearchURL, Timeout: 15 * time.Second},
			AssertURL{Pattern: t.SearchURL},
		},
	}
}

// BlogNavigation opens the blog host directly.
func BlogNavigation(t Targets) TestCase {
	return TestCase{
		Name:    NameBlogNavigation,
		Timeout: CaseTimeout,
		Steps: []Step{
			Navigate{URL: t.BlogURL, WaitUntil: WaitDOMContentLoaded},
			AssertURL{Pattern: t.BlogURLPattern, Timeout: 15 * time.Second},
			AssertVisible{Selector: PageBody, Timeout: 10 * time.Second},
		},
	}
}

// ExternalToolSmokeTest loads the automation tool's site and pokes its
// search control when there is one.
func ExternalToolSmokeTest(t Targets) TestCase {
	return TestCase{
		Name:    NameExternalToolSmokeTest,
		Timeout: CaseTimeout,
		Steps: []Step{
			Navigate{URL: t.ToolURL, WaitUntil: WaitDOMContentLoaded},
			AssertTitle{Pattern: t.ToolTitle, Timeout: 10 * time.Second},
			AssertVisible{Selector: PageBody, Timeout: 10 * time.Second},
			ConditionalClick{Selector: SearchTrigger, Timeout: 5 * time.Second, Settle: time.Second},
		},
	}
}

// Suite returns every case in declared order.
func Suite(t Targets) []TestCase {
	return []TestCase{
		HomepageLoad(t),
		SearchFlow(t),
		BlogNavigation(t),
		ExternalToolSmokeTest(t),
	}
}

package scenario

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ErrWaitTimeout marks a bounded wait that expired. Page implementations
// wrap it so steps can tell "not yet" apart from hard failures.
var ErrWaitTimeout = errors.New("wait timed out")

// WaitCondition names the readiness signal a navigation waits for.
type WaitCondition string

const (
	WaitCommit           WaitCondition = "commit"
	WaitDOMContentLoaded WaitCondition = "domcontentloaded"
	WaitLoad             WaitCondition = "load"
	WaitNetworkIdle      WaitCondition = "networkidle"
)

// Selector lists alternative selector strings. An element handle resolves
// to the first element matching any alternative.
type Selector []string

// CSS returns a single-strategy selector.
func CSS(selector string) Selector {
	return Selector{selector}
}

// AnyOf returns a selector that tries each strategy.
func AnyOf(alternatives ...string) Selector {
	return Selector(alternatives)
}

func (s Selector) String() string {
	return strings.Join(s, " || ")
}

// Page is the browsing context a case runs in. It is owned by the caller;
// the runner never opens or closes it. Every wait takes an explicit,
// strictly positive budget.
type Page interface {
	Navigate(url string, wait WaitCondition, timeout time.Duration) error
	Locate(selector Selector) Element
	AssertTitle(pattern *regexp.Regexp, timeout time.Duration) error
	AssertURL(pattern *regexp.Regexp, timeout time.Duration) error
	WaitForURL(pattern *regexp.Regexp, timeout time.Duration) error
	Pause(d time.Duration)
	Screenshot() ([]byte, error)
	URL() string
}

// Element is a lazily resolved handle returned by Page.Locate.
type Element interface {
	WaitVisible(timeout time.Duration) error
	AssertVisible(timeout time.Duration) error
	Fill(text string, timeout time.Duration) error
	Press(key string, timeout time.Duration) error
	Click(timeout time.Duration) error
}

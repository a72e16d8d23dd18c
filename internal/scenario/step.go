package scenario

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/kuitang/portal-smoke/internal/errs"
)

// StepKind tags a Step variant.
type StepKind string

const (
	KindNavigate         StepKind = "navigate"
	KindFill             StepKind = "fill"
	KindSubmit           StepKind = "submit"
	KindAssertTitle      StepKind = "assert_title"
	KindAssertURL        StepKind = "assert_url"
	KindAssertVisible    StepKind = "assert_visible"
	KindRequireVisible   StepKind = "require_visible"
	KindWaitForURL       StepKind = "wait_for_url"
	KindConditionalClick StepKind = "conditional_click"
)

// Step is one action or assertion of a test case. The set of variants is
// closed: only the types in this file implement it.
type Step interface {
	Kind() StepKind
	Describe() string
	run(env *stepEnv) error
}

// untilCeiling asks for whatever is left of the case budget.
const untilCeiling = time.Duration(-1)

// stepEnv is what a step sees while it runs.
type stepEnv struct {
	ctx            context.Context
	page           Page
	deadline       time.Time
	defaultTimeout time.Duration
	throttle       Throttler

	clamped bool
	skipped []string
}

// budget resolves a declared timeout against the default and the case
// ceiling. A zero declaration means the runner default.
func (e *stepEnv) budget(declared time.Duration) time.Duration {
	d := declared
	if d == 0 {
		d = e.defaultTimeout
	}
	remaining := time.Until(e.deadline)
	if d == untilCeiling || d > remaining {
		e.clamped = true
		d = remaining
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// expired reports whether the case ceiling has passed.
func (e *stepEnv) expired() bool {
	return errors.Is(e.ctx.Err(), context.DeadlineExceeded) || !time.Now().Before(e.deadline)
}

func (e *stepEnv) skip(reason string) {
	e.skipped = append(e.skipped, reason)
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrWaitTimeout)
}

// Navigate loads URL and waits for the given readiness signal. A zero
// Timeout lets the navigation use the rest of the case budget.
type Navigate struct {
	URL       string
	WaitUntil WaitCondition
	Timeout   time.Duration
}

func (s Navigate) Kind() StepKind { return KindNavigate }

func (s Navigate) Describe() string {
	return fmt.Sprintf("navigate to %s (wait for %s)", s.URL, s.waitUntil())
}

func (s Navigate) waitUntil() WaitCondition {
	if s.WaitUntil == "" {
		return WaitLoad
	}
	return s.WaitUntil
}

func (s Navigate) run(env *stepEnv) error {
	if env.throttle != nil {
		throttleCtx, cancel := context.WithDeadline(env.ctx, env.deadline)
		err := env.throttle.Wait(throttleCtx, s.URL)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded):
			env.clamped = true
			return errs.Wrap(errs.NavigationTimeout, "navigation to "+s.URL+" was held back by the throttle", fmt.Errorf("%w: %w", ErrWaitTimeout, err))
		case errors.Is(err, context.Canceled):
			return errs.Wrap(errs.Internal, "navigation to "+s.URL+" cancelled while throttled", err)
		default:
			return errs.Wrap(errs.NavigationFailed, "navigation to "+s.URL+" failed", err)
		}
	}
	timeout := s.Timeout
	if timeout == 0 {
		timeout = untilCeiling
	}
	err := env.page.Navigate(s.URL, s.waitUntil(), env.budget(timeout))
	switch {
	case err == nil:
		return nil
	case isTimeout(err):
		return errs.Wrap(errs.NavigationTimeout, "navigation to "+s.URL+" did not reach "+string(s.waitUntil()), err)
	default:
		return errs.Wrap(errs.NavigationFailed, "navigation to "+s.URL+" failed", err)
	}
}

// Fill types text into the element.
type Fill struct {
	Selector Selector
	Text     string
}

func (s Fill) Kind() StepKind { return KindFill }

func (s Fill) Describe() string {
	return fmt.Sprintf("fill %s with %q", s.Selector, s.Text)
}

func (s Fill) run(env *stepEnv) error {
	err := env.page.Locate(s.Selector).Fill(s.Text, env.budget(0))
	return actionError(err, "fill "+s.Selector.String())
}

// Submit presses a key on the element; Enter when Key is empty. It never
// clicks a submit button, so it does not depend on button markup.
type Submit struct {
	Selector Selector
	Key      string
}

func (s Submit) Kind() StepKind { return KindSubmit }

func (s Submit) Describe() string {
	return fmt.Sprintf("press %s on %s", s.key(), s.Selector)
}

func (s Submit) key() string {
	if s.Key == "" {
		return "Enter"
	}
	return s.Key
}

func (s Submit) run(env *stepEnv) error {
	err := env.page.Locate(s.Selector).Press(s.key(), env.budget(0))
	return actionError(err, "press "+s.key()+" on "+s.Selector.String())
}

func actionError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case isTimeout(err):
		return errs.Wrap(errs.ElementNotFound, what+": element never became actionable", err)
	default:
		return errs.Wrap(errs.Internal, what+" failed", err)
	}
}

// AssertTitle expects the page title to match Pattern.
type AssertTitle struct {
	Pattern *regexp.Regexp
	Timeout time.Duration
}

func (s AssertTitle) Kind() StepKind { return KindAssertTitle }

func (s AssertTitle) Describe() string {
	return fmt.Sprintf("expect title to match /%s/", s.Pattern)
}

func (s AssertTitle) run(env *stepEnv) error {
	if err := env.page.AssertTitle(s.Pattern, env.budget(s.Timeout)); err != nil {
		return errs.Wrap(errs.AssertionTimeout, fmt.Sprintf("title did not match /%s/", s.Pattern), err)
	}
	return nil
}

// AssertURL expects the current URL to match Pattern.
type AssertURL struct {
	Pattern *regexp.Regexp
	Timeout time.Duration
}

func (s AssertURL) Kind() StepKind { return KindAssertURL }

func (s AssertURL) Describe() string {
	return fmt.Sprintf("expect URL to match /%s/", s.Pattern)
}

func (s AssertURL) run(env *stepEnv) error {
	if err := env.page.AssertURL(s.Pattern, env.budget(s.Timeout)); err != nil {
		return errs.Wrap(errs.AssertionTimeout, fmt.Sprintf("URL %s did not match /%s/", env.page.URL(), s.Pattern), err)
	}
	return nil
}

// AssertVisible expects the element to be visible.
type AssertVisible struct {
	Selector Selector
	Timeout  time.Duration
}

func (s AssertVisible) Kind() StepKind { return KindAssertVisible }

func (s AssertVisible) Describe() string {
	return fmt.Sprintf("expect %s to be visible", s.Selector)
}

func (s AssertVisible) run(env *stepEnv) error {
	if err := env.page.Locate(s.Selector).AssertVisible(env.budget(s.Timeout)); err != nil {
		return errs.Wrap(errs.AssertionTimeout, s.Selector.String()+" is not visible", err)
	}
	return nil
}

// RequireVisible waits for an element the rest of the case depends on.
type RequireVisible struct {
	Selector Selector
	Timeout  time.Duration
}

func (s RequireVisible) Kind() StepKind { return KindRequireVisible }

func (s RequireVisible) Describe() string {
	return fmt.Sprintf("wait for %s to be visible", s.Selector)
}

func (s RequireVisible) run(env *stepEnv) error {
	if err := env.page.Locate(s.Selector).WaitVisible(env.budget(s.Timeout)); err != nil {
		return errs.Wrap(errs.ElementNotFound, s.Selector.String()+" never became visible", err)
	}
	return nil
}

// WaitForURL waits for navigation, triggered by an earlier step, to land
// on a URL matching Pattern.
type WaitForURL struct {
	Pattern *regexp.Regexp
	Timeout time.Duration
}

func (s WaitForURL) Kind() StepKind { return KindWaitForURL }

func (s WaitForURL) Describe() string {
	return fmt.Sprintf("wait for URL matching /%s/", s.Pattern)
}

func (s WaitForURL) run(env *stepEnv) error {
	if err := env.page.WaitForURL(s.Pattern, env.budget(s.Timeout)); err != nil {
		return errs.Wrap(errs.NavigationTimeout, fmt.Sprintf("URL never matched /%s/ (last %s)", s.Pattern, env.page.URL()), err)
	}
	return nil
}

// ConditionalClick clicks the element only if it shows up within Timeout,
// then waits Settle for the resulting UI transition. An element that never
// shows up is recorded as skipped, not failed.
type ConditionalClick struct {
	Selector Selector
	Timeout  time.Duration
	Settle   time.Duration
}

func (s ConditionalClick) Kind() StepKind { return KindConditionalClick }

func (s ConditionalClick) Describe() string {
	return fmt.Sprintf("click %s if visible within %s", s.Selector, s.Timeout)
}

func (s ConditionalClick) run(env *stepEnv) error {
	el := env.page.Locate(s.Selector)
	if err := el.WaitVisible(env.budget(s.Timeout)); err != nil {
		if env.clamped || env.expired() {
			return errs.Wrap(errs.AssertionTimeout, s.Selector.String()+" visibility check ran out of case budget", err)
		}
		env.skip(fmt.Sprintf("%s not visible within %s", s.Selector, s.Timeout))
		return nil
	}
	if err := el.Click(env.budget(0)); err != nil {
		return actionError(err, "click "+s.Selector.String())
	}
	if s.Settle > 0 {
		env.page.Pause(env.budget(s.Settle))
	}
	return nil
}

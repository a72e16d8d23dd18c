// Package sitefixture serves a small local stand-in for the portal, blog
// and tool websites so browser tests can run without the public internet.
package sitefixture

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/kuitang/portal-smoke/internal/scenario"
	"github.com/kuitang/portal-smoke/internal/urlutil"
)

// Paths served by the fixture.
const (
	PortalPath       = "/portal"
	PortalNoFormPath = "/portal-no-form"
	SearchPath       = "/search"
	BlogPath         = "/blog"
	BlogHomePath     = "/blog/home"
	ToolPath         = "/tool"
	ToolPlainPath    = "/tool-plain"
	SlowPath         = "/slow"
)

// slowHold bounds how long SlowPath keeps a request open.
const slowHold = 10 * time.Second

// Site is a running fixture server.
type Site struct {
	Server *httptest.Server
	URL    string
}

// Start serves the fixture until the test ends.
func Start(t testing.TB) *Site {
	t.Helper()
	srv := httptest.NewServer(Handler())
	t.Cleanup(srv.Close)
	return &Site{Server: srv, URL: srv.URL}
}

// Targets points the cases at the fixture pages.
func (s *Site) Targets() scenario.Targets {
	return scenario.Targets{
		PortalURL:      s.Page(PortalPath),
		BlogURL:        s.Page(BlogPath),
		ToolURL:        s.Page(ToolPath),
		PortalTitle:    regexp.MustCompile(`(?i)NAVER`),
		SearchURL:      regexp.MustCompile(`/search\?query=`),
		BlogURLPattern: regexp.MustCompile(`/blog/home`),
		ToolTitle:      regexp.MustCompile(`(?i)Playwright`),
	}
}

// Page returns the absolute URL of a fixture path.
func (s *Site) Page(path string) string {
	return urlutil.BuildAbsolute(s.URL, path)
}

// Handler returns the fixture routes.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PortalPath, func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "NAVER", `
<form action="/search" method="get">
  <input id="query" name="query" type="text" autocomplete="off">
</form>`)
	})
	mux.HandleFunc("GET "+PortalNoFormPath, func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "NAVER", `<p>Search is temporarily unavailable.</p>`)
	})
	mux.HandleFunc("GET "+SearchPath, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		writePage(w, query+" : NAVER Search", fmt.Sprintf(`<h1 id="results">Results for %s</h1>`, html.EscapeString(query)))
	})
	mux.HandleFunc("GET "+BlogPath, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, BlogHomePath, http.StatusFound)
	})
	mux.HandleFunc("GET "+BlogHomePath, func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "Blog", `<main>Recent posts</main>`)
	})
	mux.HandleFunc("GET "+ToolPath, func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "Fast and reliable end-to-end testing | Playwright", `
<button aria-label="Search" onclick="document.getElementById('search-dialog').hidden = false">Search</button>
<div id="search-dialog" hidden><input id="docsearch" placeholder="Search docs"></div>`)
	})
	mux.HandleFunc("GET "+ToolPlainPath, func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "Playwright", `<p>No search here.</p>`)
	})
	mux.HandleFunc("GET "+SlowPath, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(slowHold):
		}
		writePage(w, "Slow", `<p>finally</p>`)
	})
	return mux
}

func writePage(w http.ResponseWriter, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Set-Cookie", "fixture_session=secret; Path=/")
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><title>%s</title></head><body>%s</body></html>\n",
		html.EscapeString(title), body)
}

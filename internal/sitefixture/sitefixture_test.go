package sitefixture

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func get(t *testing.T, client *http.Client, url string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", url, err)
	}
	return resp, string(body)
}

func TestSite_Pages(t *testing.T) {
	site := Start(t)
	client := site.Server.Client()

	_, body := get(t, client, site.URL+PortalPath)
	if !strings.Contains(body, `id="query"`) || !strings.Contains(body, "<title>NAVER</title>") {
		t.Fatalf("portal page missing search input or title: %s", body)
	}

	resp, body := get(t, client, site.URL+SearchPath+"?query=Playwright")
	if !site.Targets().SearchURL.MatchString(resp.Request.URL.String()) {
		t.Errorf("search URL %s does not match the fixture pattern", resp.Request.URL)
	}
	if !strings.Contains(body, "Results for Playwright") {
		t.Errorf("search page does not echo the query: %s", body)
	}

	_, body = get(t, client, site.URL+SearchPath+"?query=%3Cb%3E")
	if strings.Contains(body, "<b>") {
		t.Errorf("query must be escaped: %s", body)
	}
}

func TestSite_BlogRedirects(t *testing.T) {
	site := Start(t)
	resp, _ := get(t, site.Server.Client(), site.URL+BlogPath)
	if resp.Request.URL.Path != BlogHomePath {
		t.Fatalf("blog landed on %s, want %s", resp.Request.URL.Path, BlogHomePath)
	}
	if !site.Targets().BlogURLPattern.MatchString(resp.Request.URL.String()) {
		t.Fatalf("blog pattern does not match %s", resp.Request.URL)
	}
}

func TestSite_ToolVariants(t *testing.T) {
	site := Start(t)
	client := site.Server.Client()

	_, body := get(t, client, site.URL+ToolPath)
	if !strings.Contains(body, `aria-label="Search"`) {
		t.Errorf("tool page should offer a search control")
	}
	_, body = get(t, client, site.URL+ToolPlainPath)
	if strings.Contains(body, "<button") {
		t.Errorf("plain tool page should not have buttons")
	}
	if !site.Targets().ToolTitle.MatchString("Playwright") {
		t.Errorf("tool title pattern should match")
	}
}

package logutil

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func testFormatHeadersForLog_RedactsSensitiveHeaders(t *rapid.T) {
	token := rapid.StringMatching(`[A-Za-z0-9._=-]{10,40}`).Draw(t, "token")

	headers := map[string]string{
		"set-cookie":    "NID=" + token,
		"authorization": "Bearer " + token,
		"content-type":  "text/html; charset=UTF-8",
		"x-empty":       "",
	}

	formatted := FormatHeadersForLog(headers)
	if strings.Contains(formatted, token) {
		t.Fatalf("sensitive token leaked in header log: %q", formatted)
	}
	for _, key := range []string{"set-cookie", "authorization", "content-type", "x-empty=<empty>"} {
		if !strings.Contains(formatted, key) {
			t.Fatalf("expected %q in formatted headers: %q", key, formatted)
		}
	}
	if !strings.Contains(formatted, "text/html") {
		t.Fatalf("non-sensitive value should be kept: %q", formatted)
	}
}

func TestFormatHeadersForLog_RedactsSensitiveHeaders(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testFormatHeadersForLog_RedactsSensitiveHeaders)
}

func TestFormatHeadersForLog_StableOrder(t *testing.T) {
	t.Parallel()
	headers := map[string]string{"b": "2", "a": "1", "c": "3"}
	want := `a="1"; b="2"; c="3"`
	for i := 0; i < 20; i++ {
		if got := FormatHeadersForLog(headers); got != want {
			t.Fatalf("got %q want %q", got, want)
		}
	}
	if got := FormatHeadersForLog(nil); got != "{}" {
		t.Fatalf("empty headers: got %q", got)
	}
}

func TestIsSensitiveLogField(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"Authorization", "X-Api-Key", "AWS_SECRET_ACCESS_KEY", "aws_access_key_id", "Cookie", "x-auth-token"} {
		if !IsSensitiveLogField(key) {
			t.Errorf("expected %q to be sensitive", key)
		}
	}
	for _, key := range []string{"content-type", "location", "E2E_PORTAL_URL"} {
		if IsSensitiveLogField(key) {
			t.Errorf("expected %q to be non-sensitive", key)
		}
	}
}

func testTruncateForLog_Bounded(t *rapid.T) {
	value := rapid.StringMatching(`[a-z\n ]{0,300}`).Draw(t, "value")
	limit := rapid.IntRange(1, 120).Draw(t, "limit")

	got := TruncateForLog(value, limit)
	if strings.Contains(got, "\n") {
		t.Fatalf("preview must be single-line: %q", got)
	}
	if len(got) > limit+len("... [truncated]") {
		t.Fatalf("preview too long: %d > %d", len(got), limit)
	}
}

func TestTruncateForLog_Bounded(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testTruncateForLog_Bounded)
}

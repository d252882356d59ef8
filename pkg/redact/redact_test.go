package redact

import (
	"strings"
	"testing"
)

func TestTextRedactsWhenEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)

	in := "reach me at jane.doe@example.com or +62 812-3456-7890 thanks"
	out := Text(in)
	if strings.Contains(out, "example.com") {
		t.Fatalf("email leaked: %s", out)
	}
	if strings.Contains(out, "3456") {
		t.Fatalf("phone leaked: %s", out)
	}
	if !strings.Contains(out, "[REDACTED_EMAIL]") || !strings.Contains(out, "[REDACTED_PHONE]") {
		t.Fatalf("placeholders missing: %s", out)
	}
}

func TestTextPassthroughWhenDisabled(t *testing.T) {
	SetEnabled(false)
	in := "contact jane.doe@example.com"
	if Text(in) != in {
		t.Fatalf("disabled redaction must not modify text")
	}
}

func TestClip(t *testing.T) {
	long := strings.Repeat("a", 200)
	if got := Clip(long); len(got) != 123 || !strings.HasSuffix(got, "...") {
		t.Fatalf("clip produced %q", got)
	}
	if Clip("  short  ") != "short" {
		t.Fatalf("clip should trim short text")
	}
}

package embedder

import (
	"strings"
	"testing"
)

func TestEnhanceTrafficQuery_CaseInsensitive(t *testing.T) {
	lower := EnhanceTrafficQuery("bicycle")
	upper := EnhanceTrafficQuery("BICYCLE")
	if lower != upper {
		t.Fatalf("case should not matter:\n%q\n%q", lower, upper)
	}
	if !strings.Contains(lower, "VISIBLE bicycle") {
		t.Fatalf("expected the bicycle description, got %q", lower)
	}
	if !strings.Contains(lower, "NOT bike lanes") {
		t.Fatalf("expected the bicycle exclusion clause, got %q", lower)
	}
}

func TestEnhanceTrafficQuery_ExactBeatsFallback(t *testing.T) {
	got := EnhanceTrafficQuery("motorcycle")
	if strings.Contains(got, "actual object prominently displayed") {
		t.Fatalf("known term must not fall back to the generic template: %q", got)
	}
	if !strings.Contains(got, "VISIBLE motorcycle") {
		t.Fatalf("expected motorcycle description, got %q", got)
	}
}

func TestEnhanceTrafficQuery_SubstringMatch(t *testing.T) {
	got := EnhanceTrafficQuery("a motorcycle near the intersection")
	if !strings.Contains(got, "VISIBLE motorcycle") {
		t.Fatalf("expected substring match on motorcycle, got %q", got)
	}
}

func TestEnhanceTrafficQuery_CompoundPrecedence(t *testing.T) {
	got := EnhanceTrafficQuery("red car")
	if !strings.Contains(got, "VISIBLE red colored passenger car") {
		t.Fatalf("expected the red-car compound description, got %q", got)
	}
	if got == EnhanceTrafficQuery("car") {
		t.Fatalf("compound must not collapse to the bare car description")
	}
}

func TestEnhanceTrafficQuery_ShortKeysNeverSubstringMatch(t *testing.T) {
	// "car" is only 3 chars; it must not substring-match inside other words.
	got := EnhanceTrafficQuery("cardboard box on the shoulder")
	if !strings.Contains(got, "cardboard box on the shoulder") {
		t.Fatalf("expected generic fallback carrying the query, got %q", got)
	}
}

func TestEnhanceTrafficQuery_Fallback(t *testing.T) {
	got := EnhanceTrafficQuery("  Shopping Trolley  ")
	want := "VISIBLE shopping trolley clearly seen in traffic scene on road, actual object prominently displayed in frame"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("12345678"); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

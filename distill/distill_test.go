package distill

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tt.in), got, tt.want)
		}
	}
}

func TestTruncate_UnderBudgetUnchanged(t *testing.T) {
	content := "# Title\n\nshort body"
	if got := Truncate(content, 1000); got != content {
		t.Errorf("under-budget content modified: %q", got)
	}
}

func TestTruncate_KeepsFirstHeadingAndNotice(t *testing.T) {
	var b strings.Builder
	b.WriteString("intro line before the heading\n")
	b.WriteString("# The Heading\n")
	for i := 0; i < 200; i++ {
		b.WriteString("a filler line with some words in it\n")
	}

	got := Truncate(b.String(), 50)
	if !strings.Contains(got, "# The Heading") {
		t.Error("first heading dropped")
	}
	if !strings.Contains(got, "[Content truncated to ~50 tokens]") {
		t.Error("truncation notice missing")
	}
	if EstimateTokens(got) > 80 {
		t.Errorf("truncated output still large: %d tokens", EstimateTokens(got))
	}
}

func TestDistill_CompressesTables(t *testing.T) {
	var b strings.Builder
	b.WriteString("# Data\n\n| col1 | col2 |\n| --- | --- |\n")
	for i := 0; i < 40; i++ {
		b.WriteString("| value | value |\n")
	}
	b.WriteString("\n")
	b.WriteString(strings.Repeat("Prose paragraph with plenty of ordinary words here. ", 30))

	got := Distill(b.String(), 120)
	rows := strings.Count(got, "| value | value |")
	if rows > 5 {
		t.Errorf("table kept %d rows, want <= 5", rows)
	}
	if !strings.Contains(got, "more rows") {
		t.Error("table elision marker missing")
	}
}

func TestDistill_StripsBoilerplate(t *testing.T) {
	content := "# Page\n\nSkip to main content\n\nReal paragraph of text.\n\nAccept all cookies\n\n" +
		strings.Repeat("Another real paragraph with words. ", 50)
	got := Distill(content, 100)
	if strings.Contains(got, "Skip to main content") || strings.Contains(got, "Accept all cookies") {
		t.Errorf("boilerplate survived: %q", got)
	}
	if !strings.Contains(got, "Real paragraph of text.") {
		t.Error("real content dropped")
	}
}

func TestDistill_UnderBudgetUntouched(t *testing.T) {
	content := "# T\n\n| a | b |\n| - | - |\n| 1 | 2 |\n| 3 | 4 |\n| 5 | 6 |\n| 7 | 8 |\n| 9 | 0 |\n| x | y |\n"
	if got := Distill(content, 10_000); got != content {
		t.Errorf("under-budget content modified:\n%q", got)
	}
}

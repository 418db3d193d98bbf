package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func render(t *testing.T, d SummaryData) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Summary(d).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return buf.String()
}

func TestSummaryEscapes(t *testing.T) {
	got := render(t, SummaryData{
		SiteName: "Suvichaar",
		Title:    `<script>alert("x")</script>`,
		Warnings: []string{"a <b> warning"},
	})
	if strings.Contains(got, "<script>") {
		t.Errorf("Summary() did not escape the title: %s", got)
	}
	if !strings.Contains(got, "a &lt;b&gt; warning") {
		t.Errorf("Summary() did not escape warnings: %s", got)
	}
	if !strings.Contains(got, "1 warning</h2>") {
		t.Errorf("Summary() warning heading missing: %s", got)
	}
}

func TestSummaryLinks(t *testing.T) {
	got := render(t, SummaryData{
		Title:      "Taj",
		StoryLink:  "https://suvichaar.org/stories/taj_x",
		CoverImage: "javascript:alert(1)",
		Author:     "Mayank",
		AuthorURL:  "https://www.instagram.com/iamkrmayank",
		FilterTags: []string{"Travel", "History"},
	})
	if !strings.Contains(got, `<a href="https://suvichaar.org/stories/taj_x">`) {
		t.Errorf("Summary() story link missing: %s", got)
	}
	if !strings.Contains(got, `<a href="#">javascript:alert(1)</a>`) {
		t.Errorf("Summary() kept an unsafe href: %s", got)
	}
	if !strings.Contains(got, "Travel, History") {
		t.Errorf("Summary() tags missing: %s", got)
	}
	if strings.Contains(got, "<h2 class=\"warn\">") {
		t.Errorf("Summary() rendered an empty warning list: %s", got)
	}
}

func TestPlural(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 warnings"},
		{1, "1 warning"},
		{3, "3 warnings"},
	}
	for _, tt := range tests {
		if got := Plural(tt.n, "warning"); got != tt.want {
			t.Errorf("Plural(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

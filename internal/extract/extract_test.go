package extract

import (
	"errors"
	"strings"
	"testing"
)

func TestText_Plain(t *testing.T) {
	res, err := Text("text/plain; charset=utf-8", []byte("Hello there.\nSecond line."))
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if res.Text != "Hello there.\nSecond line." {
		t.Errorf("unexpected text %q", res.Text)
	}
	if res.Title != "" {
		t.Errorf("plain text should have no title, got %q", res.Title)
	}
}

// TestText_Markdown checks headings survive as "#" lines and inline markup is dropped.
func TestText_Markdown(t *testing.T) {
	input := `# Travel Policy

Employees **must** book through the [portal](https://example.com).

## Per Diem

- Breakfast: 15
- Dinner: 40

1. Submit receipts
2. Wait for approval

---

` + "```" + `
code stays verbatim
` + "```" + `
`

	res, err := Text(TypeMarkdown, []byte(input))
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}

	if res.Title != "Travel Policy" {
		t.Errorf("Title: expected 'Travel Policy', got %q", res.Title)
	}

	wants := []string{
		"# Travel Policy",
		"Employees must book through the portal.",
		"\n\n## Per Diem",
		"- Breakfast: 15\n- Dinner: 40",
		"1. Submit receipts\n2. Wait for approval",
		"\n---\n",
		"code stays verbatim",
	}
	for _, want := range wants {
		if !strings.Contains(res.Text, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, res.Text)
		}
	}
	if strings.Contains(res.Text, "**") || strings.Contains(res.Text, "https://example.com") {
		t.Errorf("inline markup should be stripped, got:\n%s", res.Text)
	}
}

func TestText_MarkdownWithoutHeadings(t *testing.T) {
	res, err := Text("text/x-markdown", []byte("Just a paragraph."))
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if res.Title != "" {
		t.Errorf("expected empty title, got %q", res.Title)
	}
	if res.Text != "Just a paragraph." {
		t.Errorf("unexpected text %q", res.Text)
	}
}

func TestText_HTML(t *testing.T) {
	page := `<html><head><title>Leave Handbook</title></head><body>
<nav>Home | About</nav>
<article><h1>Leave Handbook</h1>
<p>Every employee receives twenty days of paid leave each calendar year. Unused days roll over once.</p>
<p>Requests go to your manager at least two weeks in advance, except for sick leave which is reported on the day.</p>
<p>` + strings.Repeat("Leave taken during the probation period is deducted from the first year allowance. ", 6) + `</p>
</article></body></html>`

	res, err := Text(TypeHTML, []byte(page))
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if !strings.Contains(res.Text, "twenty days of paid leave") {
		t.Errorf("article text missing, got %q", res.Text)
	}
	if strings.Contains(res.Text, "<p>") {
		t.Errorf("tags should be removed, got %q", res.Text)
	}
}

func TestText_Unsupported(t *testing.T) {
	for _, mt := range []string{"application/pdf", "application/octet-stream", ""} {
		_, err := Text(mt, []byte("%PDF-1.7"))
		if !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("%q: expected ErrUnsupportedType, got %v", mt, err)
		}
	}
}

func TestDetectType(t *testing.T) {
	tests := map[string]string{
		"notes.md":        TypeMarkdown,
		"README.MARKDOWN": TypeMarkdown,
		"policy.txt":      TypePlain,
		"page.html":       TypeHTML,
		"report.pdf":      "application/pdf",
		"blob":            "application/octet-stream",
	}
	for name, want := range tests {
		if got := DetectType(name); got != want {
			t.Errorf("DetectType(%q) = %q, want %q", name, got, want)
		}
	}
	if !Supported("text/markdown; charset=utf-8") || Supported("application/pdf") {
		t.Error("Supported returned wrong answer")
	}
}

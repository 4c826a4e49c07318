package render

import (
	"strings"
	"testing"
	"time"

	"github.com/akshayreddy1906/gemini-resume/internal/history"
)

func entryAt(ts time.Time, text string) history.Entry {
	e := history.NewSuccess(text)
	e.Timestamp = ts
	return e
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"txt", FormatText, false},
		{"TEXT", FormatText, false},
		{"html", FormatHTML, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFilename(t *testing.T) {
	e := entryAt(time.Date(2025, 3, 1, 9, 30, 15, 123_000_000, time.UTC), "x")
	if got := Filename(e, FormatText); got != "result-2025-03-01T09-30-15.123Z.txt" {
		t.Errorf("Filename = %q", got)
	}
	if got := Filename(e, FormatHTML); !strings.HasSuffix(got, ".html") {
		t.Errorf("Filename(html) = %q", got)
	}
}

func TestText(t *testing.T) {
	if got := string(Text(history.NewSuccess("OK"))); got != "OK" {
		t.Errorf("Text(success) = %q", got)
	}
	if got := string(Text(history.NewFailure("quota exceeded"))); !strings.Contains(got, "quota exceeded") {
		t.Errorf("Text(failure) = %q", got)
	}
}

func TestHTML_RendersMarkdown(t *testing.T) {
	e := entryAt(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "# Summary\n\n- **one**\n- two")
	e.Instruction = "Summarize <this>"

	out, err := HTML(e)
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	page := string(out)
	for _, want := range []string{"<h1>Summary</h1>", "<strong>one</strong>", "<li>two</li>", "Summarize &lt;this&gt;"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q:\n%s", want, page)
		}
	}
}

func TestHTML_OmitsRawHTML(t *testing.T) {
	out, err := HTML(entryAt(time.Now(), "hello <script>alert(1)</script>"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "<script>") {
		t.Errorf("raw HTML passed through:\n%s", out)
	}
}

func TestHTML_Failure(t *testing.T) {
	e := history.NewFailure("API key not configured")
	out, err := Render(e, FormatHTML)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `class="error"`) || !strings.Contains(string(out), "API key not configured") {
		t.Errorf("failure page:\n%s", out)
	}
}

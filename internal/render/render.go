// Package render turns history entries into downloadable files.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/akshayreddy1906/gemini-resume/internal/history"
)

// Format is a download format.
type Format string

const (
	FormatText Format = "txt"
	FormatHTML Format = "html"
)

// ParseFormat accepts "txt", "text", "html" and "" (txt).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "txt", "text":
		return FormatText, nil
	case "html":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want txt or html)", s)
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatHTML {
		return "text/html; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Filename names a download as result-<timestamp>.<ext>. Colons are
// replaced so the name is valid on every filesystem.
func Filename(e history.Entry, f Format) string {
	stamp := e.Timestamp.UTC().Format("2006-01-02T15-04-05.000Z")
	return fmt.Sprintf("result-%s.%s", stamp, f)
}

// Text returns the entry's result text, or its error for a failure.
func Text(e history.Entry) []byte {
	if e.OK() {
		return []byte(e.Text)
	}
	return []byte("Error: " + e.Error + "\n")
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// Markdown converts model output to an HTML fragment. Raw HTML in the
// source is omitted.
func Markdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<header>
<p><time datetime="{{.Timestamp}}">{{.Timestamp}}</time>{{if .Document}} &middot; {{.Document}}{{end}}</p>
{{if .Instruction}}<blockquote>{{.Instruction}}</blockquote>{{end}}
</header>
<main>
{{if .Error}}<p class="error">{{.Error}}</p>{{else}}{{.Body}}{{end}}
</main>
</body>
</html>
`))

type pageData struct {
	Title       string
	Timestamp   string
	Document    string
	Instruction string
	Error       string
	Body        template.HTML
}

// HTML renders the entry as a standalone page. A success's text is treated
// as Markdown.
func HTML(e history.Entry) ([]byte, error) {
	data := pageData{
		Title:       "Result " + e.Timestamp.UTC().Format(time.RFC3339),
		Timestamp:   e.Timestamp.UTC().Format(time.RFC3339Nano),
		Document:    e.DocumentName,
		Instruction: e.Instruction,
	}
	if e.OK() {
		body, err := Markdown(e.Text)
		if err != nil {
			return nil, err
		}
		data.Body = template.HTML(body)
	} else {
		data.Error = e.Error
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}
	return buf.Bytes(), nil
}

// Render produces the file content for e in format f.
func Render(e history.Entry, f Format) ([]byte, error) {
	if f == FormatHTML {
		return HTML(e)
	}
	return Text(e), nil
}

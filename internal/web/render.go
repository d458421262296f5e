package web

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// markdownRenderer turns generated answers into HTML. Raw HTML in the source
// is dropped by goldmark's default renderer.
type markdownRenderer struct {
	md goldmark.Markdown
}

func newMarkdownRenderer() *markdownRenderer {
	return &markdownRenderer{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

func (r *markdownRenderer) render(src string) template.HTML {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(src) + "</p>")
	}
	return template.HTML(buf.String())
}

// page carries the fields the shared layout templates read.
type page struct {
	Title       string
	Message     string
	Success     bool
	Collections []string
	Collection  string
}

type resultRow struct {
	Rank     int
	Score    string
	Text     string
	Category string
}

type resultsPage struct {
	page
	Query   string
	Answer  template.HTML
	Results []resultRow
}

type createCollectionPage struct {
	page
	VectorSize int
}

type chatTurnView struct {
	User      string
	Assistant template.HTML
}

type chatPage struct {
	page
	SessionID string
	Turns     []chatTurnView
	History   string
}

type sessionRow struct {
	SessionID    string
	FirstMessage string
	Turns        int
	LastActive   time.Time
}

type chatHistoryPage struct {
	page
	Sessions []sessionRow
}

type replayTurnView struct {
	chatTurnView
	Collection string
	CreatedAt  time.Time
}

type chatSessionPage struct {
	page
	SessionID string
	Turns     []replayTurnView
}

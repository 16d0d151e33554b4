package templating

import (
	"html/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/russross/blackfriday/v2"
)

// markdown renders page content written in Markdown. When markdown is
// disabled the content is only escaped.
func (tm *TemplateManager) markdown(content string) template.HTML {
	if !tm.config.MarkdownEnabled {
		return template.HTML(template.HTMLEscapeString(content))
	}
	return template.HTML(blackfriday.Run([]byte(content)))
}

// naturalTime formats t relative to now, such as "3 days ago". Zero times,
// the publication date of unpublished pages, render as "".
func naturalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}

// date formats t with a Go reference layout. Zero times render as "".
func date(layout string, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}

// plural returns count followed by the singular or plural form of word,
// such as "1 page" or "3 pages".
func plural(count int, word string) string {
	return english.Plural(count, word, "")
}

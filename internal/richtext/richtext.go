// Package richtext sanitizes message markup produced by a rich-text editor.
// Only b, i, u, s, ul, ol, li, p and br survive; every attribute is dropped.
package richtext

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Editor is the message composer as seen by the trainer.
type Editor interface {
	PlainText() string
	SanitizedMarkup() string
}

var allowed = map[string]bool{
	"b": true, "i": true, "u": true, "s": true,
	"ul": true, "ol": true, "li": true, "p": true, "br": true,
}

var aliases = map[string]string{
	"strong": "b",
	"em":     "i",
	"del":    "s",
	"strike": "s",
}

// dropped tags lose their content as well as the tag.
var dropped = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
}

func normalize(name string) string {
	if n, ok := aliases[name]; ok {
		return n
	}
	return name
}

// Buffer holds raw editor HTML.
type Buffer struct {
	raw string
}

// NewBuffer wraps raw editor HTML.
func NewBuffer(raw string) *Buffer {
	return &Buffer{raw: raw}
}

// Text returns a Buffer for plain text typed without formatting.
func Text(s string) *Buffer {
	return &Buffer{raw: html.EscapeString(s)}
}

// PlainText returns the visible text.
func (b *Buffer) PlainText() string { return PlainText(b.raw) }

// SanitizedMarkup returns the whitelisted markup.
func (b *Buffer) SanitizedMarkup() string { return Sanitize(b.raw) }

// Sanitize rewrites raw HTML keeping only whitelisted tags. Unknown tags are
// unwrapped, text is re-escaped and unclosed tags are closed at the end.
func Sanitize(raw string) string {
	var sb strings.Builder
	var open []string
	skip := 0
	tz := html.NewTokenizer(strings.NewReader(raw))
	for {
		tt := tz.Next()
		switch tt {
		case html.ErrorToken:
			if tz.Err() != io.EOF {
				return sb.String()
			}
			for i := len(open) - 1; i >= 0; i-- {
				sb.WriteString("</" + open[i] + ">")
			}
			return sb.String()

		case html.TextToken:
			if skip == 0 {
				sb.WriteString(html.EscapeString(string(tz.Text())))
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tz.TagName()
			tag := normalize(string(name))
			if dropped[tag] {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if skip > 0 || !allowed[tag] {
				continue
			}
			sb.WriteString("<" + tag + ">")
			if tag != "br" && tt == html.StartTagToken {
				open = append(open, tag)
			}

		case html.EndTagToken:
			name, _ := tz.TagName()
			tag := normalize(string(name))
			if dropped[tag] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip > 0 || !allowed[tag] || tag == "br" {
				continue
			}
			idx := lastIndex(open, tag)
			if idx < 0 {
				continue
			}
			for i := len(open) - 1; i >= idx; i-- {
				sb.WriteString("</" + open[i] + ">")
			}
			open = open[:idx]
		}
	}
}

// PlainText extracts the visible text of raw HTML. Line breaks, paragraphs
// and list items become newlines; the result is trimmed.
func PlainText(raw string) string {
	var sb strings.Builder
	skip := 0
	tz := html.NewTokenizer(strings.NewReader(raw))
	for {
		tt := tz.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.TextToken:
			if skip == 0 {
				sb.Write(tz.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tz.TagName()
			tag := string(name)
			switch {
			case dropped[tag]:
				if tt == html.StartTagToken {
					skip++
				}
			case tag == "br" && skip == 0:
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tz.TagName()
			tag := string(name)
			switch {
			case dropped[tag]:
				if skip > 0 {
					skip--
				}
			case (tag == "p" || tag == "li" || tag == "div") && skip == 0:
				sb.WriteByte('\n')
			}
		}
	}
}

func lastIndex(stack []string, tag string) int {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == tag {
			return i
		}
	}
	return -1
}

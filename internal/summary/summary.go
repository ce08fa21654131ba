package summary

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/mikequentel/tumblrclient/internal/model"
)

const ellipsis = "…"

// Text strips the markup from html and returns at most max runes of its
// text, whitespace collapsed. Truncated text ends in an ellipsis.
func Text(html string, max int) string {
	text := html
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		// keep line and block boundaries as spaces
		doc.Find("br").ReplaceWithHtml(" ")
		doc.Find("p, div, li, h1, h2, h3, blockquote").AppendHtml(" ")
		text = doc.Text()
	}
	text = strings.Join(strings.Fields(text), " ")
	return truncate(text, max)
}

// Post summarises p from its summary, caption, body or title, in that
// order of preference.
func Post(p model.Post, max int) string {
	for _, key := range []string{"summary", "caption", "body", "title"} {
		if s := Text(p.String(key), max); s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if runeLen(s) <= max {
		return s
	}
	if max <= runeLen(ellipsis) {
		return truncateRunes(s, max)
	}
	cut := strings.TrimRight(truncateRunes(s, max-runeLen(ellipsis)), " ")
	return cut + ellipsis
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

package service

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	blankLines     = regexp.MustCompile(`\n{3,}`)
	trailingSpaces = regexp.MustCompile(`[ \t]+\n`)
)

// block level tags that end a line of text
var lineBreakTags = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// PlainText flattens lightweight markup into the plain text social platforms
// accept: tags are dropped, entities decoded and <br> or block endings become
// line breaks.
func PlainText(markup string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(markup))

	for {
		switch z.Next() {
		case html.ErrorToken:
			return tidy(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "br" {
				b.WriteByte('\n')
			} else if tag == "li" {
				b.WriteString("- ")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag != "br" && lineBreakTags[tag] {
				b.WriteByte('\n')
			}
		}
	}
}

func tidy(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = trailingSpaces.ReplaceAllString(s, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Truncate cuts s to at most max characters, counted in runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

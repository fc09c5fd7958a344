// Package htmltext turns inbound email bodies, HTML or plain, into clean text.
package htmltext

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	tagPattern       = regexp.MustCompile(`<[^>]+>`)
	blankRunPattern  = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)
	spaceRunPattern  = regexp.MustCompile(`[ \t]+`)
	spaceLinePattern = regexp.MustCompile(`[ \t]*\n[ \t]*`)
)

// Normalize returns the readable text of an email body
func Normalize(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	if IsHTML(body) {
		if text, err := fromHTML(body); err == nil {
			return text
		}
		return clean(tagPattern.ReplaceAllString(body, ""))
	}
	return clean(body)
}

// IsHTML reports whether body looks like HTML markup
func IsHTML(body string) bool {
	for _, marker := range []string{"<html", "<body", "<div", "<p>", "&nbsp;", "&amp;"} {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return tagPattern.MatchString(body)
}

func fromHTML(body string) (string, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				return
			case atom.Br:
				b.WriteString("\n")
				return
			case atom.Li:
				b.WriteString("• ")
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.P:
				b.WriteString("\n\n")
			case atom.Div, atom.Li, atom.Tr, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				b.WriteString("\n")
			case atom.Td, atom.Th:
				b.WriteString(" | ")
			}
		}
	}
	walk(doc)

	return collapse(b.String()), nil
}

// clean normalizes plain text that may still carry HTML entities
func clean(text string) string {
	return collapse(html.UnescapeString(text))
}

func collapse(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = spaceRunPattern.ReplaceAllString(text, " ")
	text = spaceLinePattern.ReplaceAllString(text, "\n")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

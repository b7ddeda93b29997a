// Package report exports the markdown analysis report to HTML and Word.
package report

import (
	"bytes"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

func ToHTML(md string) string {
	opts := html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank,
	}
	renderer := html.NewRenderer(opts)
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Attributes)
	doc := p.Parse([]byte(md))
	return string(markdown.Render(doc, renderer))
}

// ToPage wraps the rendered report in a minimal standalone HTML document.
func ToPage(title, md string) string {
	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	html.EscapeHTML(&b, []byte(title))
	b.WriteString("</title>\n</head>\n<body>\n")
	b.WriteString(ToHTML(md))
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// ToPlainText renders md and drops every tag.
func ToPlainText(md string) string {
	return stripHTMLTags(ToHTML(md))
}

func stripHTMLTags(htmlContent string) string {
	var result bytes.Buffer
	inTag := false

	for _, ch := range htmlContent {
		switch ch {
		case '<':
			inTag = true
		case '>':
			inTag = false
		default:
			if !inTag {
				result.WriteRune(ch)
			}
		}
	}

	return result.String()
}

package normalize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockTags separate words: text on either side of them never joins into one
// token. Inline tags such as <strong> add nothing.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "dd": true,
	"div": true, "dl": true, "dt": true, "footer": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "tbody": true, "td": true, "th": true, "thead": true, "tr": true,
	"ul": true,
}

// scanText returns the lowercased plain text the extraction rules run against.
// Adzuna snippets sometimes carry <strong> tags and entities, which would split
// "5+ years" across markup.
func scanText(description string) string {
	text := description
	if strings.ContainsAny(text, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			var b strings.Builder
			visibleText(doc.Selection, &b)
			text = b.String()
		}
	}
	return strings.ToLower(cleanText(text))
}

// visibleText appends the text nodes under s in document order, padding block
// elements and <br> with spaces. Script and style bodies are dropped.
func visibleText(s *goquery.Selection, b *strings.Builder) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch name := goquery.NodeName(c); {
		case name == "#text":
			b.WriteString(c.Text())
		case name == "script" || name == "style":
		case name == "br":
			b.WriteByte(' ')
		case blockTags[name]:
			b.WriteByte(' ')
			visibleText(c, b)
			b.WriteByte(' ')
		default:
			visibleText(c, b)
		}
	})
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

package html

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	inlineSpace = regexp.MustCompile(`[ \t\x{00a0}\x{3000}]+`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
)

const blockSelector = "p, div, li, tr, h1, h2, h3, h4, h5, h6, table, ul, ol, section, article"

// Cleaner turns notice markup into plain text while keeping paragraph and
// line breaks so the splitter can cut on them.
type Cleaner struct{}

func NewCleaner() *Cleaner {
	return &Cleaner{}
}

func (c *Cleaner) Clean(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return normalizeText(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return normalizeText(raw)
	}

	doc.Find("script, style, noscript, nav, footer, header, aside").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("\n")
	})
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n\n")
	})
	doc.Find("td, th").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	return normalizeText(doc.Text())
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

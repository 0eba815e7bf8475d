package fetcher

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var whitespace = regexp.MustCompile(`\s+`)

// noise is removed before text extraction
const noise = "script, style, noscript, iframe, nav, header, footer, aside, form, svg"

// ExtractText returns a whitespace-collapsed plain-text approximation of the
// main content of an HTML page: the first <article>, else <main>, else
// <body>. When that yields nothing it falls back to readability. The result
// is truncated to limit runes when limit > 0.
func ExtractText(page, pageURL string, limit int) string {
	text := mainText(page)
	if text == "" {
		text = readabilityText(page, pageURL)
	}
	return truncate(text, limit)
}

func mainText(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}
	doc.Find(noise).Remove()

	for _, selector := range []string{"article", "main", "body"} {
		if text := normalizeText(blockText(doc.Find(selector).First())); text != "" {
			return text
		}
	}
	return ""
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "section": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"td": true, "tr": true, "blockquote": true, "figcaption": true,
}

// blockText joins the text of a selection with spaces around block elements
// so adjacent paragraphs do not run together.
func blockText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		block := n.Type == html.ElementNode && blockTags[n.Data]
		if block {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte(' ')
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return b.String()
}

func readabilityText(page, pageURL string) string {
	article, err := readability.FromReader(strings.NewReader(page), parseURL(pageURL))
	if err != nil {
		return ""
	}
	return normalizeText(article.TextContent)
}

// ExtractTitle returns the best title for a page: og:title, then <title>,
// then readability's guess. Empty when none is found.
func ExtractTitle(page, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err == nil {
		if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
			if t := normalizeText(og); t != "" {
				return t
			}
		}
		if t := normalizeText(doc.Find("title").First().Text()); t != "" {
			return t
		}
	}

	article, err := readability.FromReader(strings.NewReader(page), parseURL(pageURL))
	if err != nil {
		return ""
	}
	return normalizeText(article.Title)
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

func truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit]))
}

func parseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}

package normalize

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// allowedTags is the HTML subset chapter content is reduced to. Everything
// else is unwrapped, keeping its text.
var allowedTags = map[string]bool{
	"p": true, "br": true, "em": true, "strong": true, "b": true, "i": true, "u": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "ol": true, "ul": true, "li": true,
	"hr": true, "span": true, "div": true,
}

var voidTags = map[string]bool{"br": true, "hr": true}

// junkPatterns flag ad/navigation markup by class or id substring.
var junkPatterns = []string{
	`ads?[-_]`,
	`advertisement`,
	`banner`,
	`sidebar`,
	`navigation`,
	`nav[-_]`,
	`menu`,
	`footer`,
	`header`,
	`social`,
	`share`,
	`comment`,
	`popup`,
	`modal`,
	`related`,
}

var (
	junkPattern = regexp.MustCompile(`(?i)` + strings.Join(junkPatterns, "|"))

	excessNewlines = regexp.MustCompile(`\n{3,}`)
	excessSpaces   = regexp.MustCompile(` {2,}`)
	emptyPara      = regexp.MustCompile(`<p>\s*</p>`)
	emptyDiv       = regexp.MustCompile(`<div>\s*</div>`)
)

// Sanitizer cleans raw chapter HTML into the restricted tag subset.
type Sanitizer struct{}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// CleanHTML strips scripts, junk-flagged elements and disallowed markup
// from raw HTML. Empty input yields empty output.
func (s *Sanitizer) CleanHTML(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}

	// script/style go away entirely, text included
	doc.Find("script, style, iframe, noscript").Remove()

	doc.Find("[class]").Each(func(_ int, sel *goquery.Selection) {
		if junkPattern.MatchString(sel.AttrOr("class", "")) {
			sel.Remove()
		}
	})
	doc.Find("[id]").Each(func(_ int, sel *goquery.Selection) {
		if junkPattern.MatchString(sel.AttrOr("id", "")) {
			sel.Remove()
		}
	})

	inner, err := doc.Find("body").Html()
	if err != nil {
		return ""
	}

	return normalizeWhitespace(stripToAllowlist(inner))
}

// ExtractText strips all markup and joins the text content with single
// spaces.
func (s *Sanitizer) ExtractText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return ""
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "iframe", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			if fields := strings.Fields(n.Data); len(fields) > 0 {
				parts = append(parts, strings.Join(fields, " "))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.Join(parts, " ")
}

// CountWords counts whitespace-separated tokens in the text content.
func (s *Sanitizer) CountWords(raw string) int {
	return len(strings.Fields(s.ExtractText(raw)))
}

// stripToAllowlist re-renders the fragment keeping only allowed tags and the
// class attribute; disallowed tags are unwrapped, their children retained.
func stripToAllowlist(fragment string) string {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return ""
	}

	var b strings.Builder
	for _, n := range nodes {
		renderAllowed(&b, n)
	}
	return b.String()
}

func renderAllowed(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(html.EscapeString(n.Data))
		return
	case html.ElementNode:
		// fall through to children below
	default:
		return
	}

	keep := allowedTags[n.Data]
	if keep {
		b.WriteString("<")
		b.WriteString(n.Data)
		for _, a := range n.Attr {
			if a.Key == "class" && a.Val != "" {
				b.WriteString(` class="`)
				b.WriteString(html.EscapeString(a.Val))
				b.WriteString(`"`)
			}
		}
		b.WriteString(">")
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderAllowed(b, c)
	}

	if keep && !voidTags[n.Data] {
		b.WriteString("</")
		b.WriteString(n.Data)
		b.WriteString(">")
	}
}

func normalizeWhitespace(s string) string {
	s = excessNewlines.ReplaceAllString(s, "\n\n")
	s = excessSpaces.ReplaceAllString(s, " ")
	s = emptyPara.ReplaceAllString(s, "")
	s = emptyDiv.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

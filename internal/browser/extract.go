package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/dom"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Link is an anchor found on the page.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// PageInfo is what readability can tell about the current page.
type PageInfo struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	SiteName string `json:"site_name,omitempty"`
	Byline   string `json:"byline,omitempty"`
	Excerpt  string `json:"excerpt,omitempty"`
}

// VisibleText returns the page text with one non-blank line per row, cut to
// maxChars runes when maxChars > 0. It prefers the rendered innerText and falls
// back to the DOM text without scripts and styles.
func VisibleText(snap Snapshot, maxChars int) string {
	raw := snap.Text
	if strings.TrimSpace(raw) == "" && snap.HTML != "" {
		raw = textFromHTML(snap.HTML)
	}
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	text := strings.Join(out, "\n")
	if maxChars > 0 {
		if r := []rune(text); len(r) > maxChars {
			text = string(r[:maxChars])
		}
	}
	return text
}

func textFromHTML(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return ""
	}
	for _, tag := range []string{"script", "style", "noscript", "template"} {
		dom.RemoveNodes(dom.GetElementsByTagName(doc, tag), nil)
	}
	body := doc
	if nodes := dom.GetElementsByTagName(doc, "body"); len(nodes) > 0 {
		body = nodes[0]
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if isBlock(n.Data) {
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.Data) {
			b.WriteString("\n")
		}
	}
	walk(body)
	return b.String()
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "ul", "ol", "h1", "h2", "h3", "h4", "h5", "h6",
		"section", "article", "header", "footer", "nav", "tr", "table", "main", "aside":
		return true
	}
	return false
}

// Hyperlinks lists the anchors of the page in document order. Hrefs are
// resolved against the page URL; fragments, javascript: and mailto: links are
// dropped and duplicates keep their first occurrence.
func Hyperlinks(snap Snapshot) ([]Link, error) {
	if snap.HTML == "" {
		return nil, ErrNoPage
	}
	doc, err := html.Parse(strings.NewReader(snap.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, _ := url.Parse(snap.URL)

	seen := map[string]bool{}
	links := []Link{}
	for _, a := range dom.GetElementsByTagName(doc, "a") {
		href := strings.TrimSpace(dom.GetAttribute(a, "href"))
		if href == "" || strings.HasPrefix(href, "#") {
			continue
		}
		u, err := url.Parse(href)
		if err != nil {
			continue
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		cleanLink(u)
		abs := u.String()
		if seen[abs] {
			continue
		}
		seen[abs] = true
		links = append(links, Link{
			Text: strings.Join(strings.Fields(dom.TextContent(a)), " "),
			Href: abs,
		})
	}
	return links, nil
}

// Metadata runs readability over the snapshot for title, site and excerpt.
func Metadata(snap Snapshot) PageInfo {
	info := PageInfo{URL: snap.URL, Title: strings.TrimSpace(snap.Title)}
	if snap.HTML == "" {
		return info
	}
	u, err := url.Parse(snap.URL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(snap.HTML), u)
	if err != nil {
		return info
	}
	if info.Title == "" {
		info.Title = strings.TrimSpace(article.Title)
	}
	info.SiteName = strings.TrimSpace(article.SiteName)
	info.Byline = strings.TrimSpace(article.Byline)
	info.Excerpt = strings.TrimSpace(article.Excerpt)
	return info
}

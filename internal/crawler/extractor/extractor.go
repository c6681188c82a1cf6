// Package extractor turns fetched HTML into corpus records. Discourse topic
// pages yield one record per post; any other page falls back to a single
// record built from its main content region plus every outbound link.
package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/errors"
)

const (
	postSelector     = "div.topic-post"
	bodySelector     = "div.cooked"
	timeSelector     = "time[datetime]"
	fallbackSelector = ".markdown-section"
	postIDAttr       = "data-post-id"
	datetimeAttr     = "datetime"
)

// Mode records which extraction path produced a result.
type Mode int

const (
	ModePosts Mode = iota
	ModeFallback
)

func (m Mode) String() string {
	if m == ModePosts {
		return "posts"
	}
	return "fallback"
}

// Result is the outcome of extracting one page. Links is only set in
// fallback mode, mirroring the record's own Links.
type Result struct {
	Mode    Mode
	Records []corpus.Record
	Links   []string
}

// Extract parses body as the HTML served at pageURL.
func Extract(pageURL string, body []byte) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrParse, pageURL, err)
	}

	if posts := doc.Find(postSelector); posts.Length() > 0 {
		return &Result{Mode: ModePosts, Records: extractPosts(pageURL, posts)}, nil
	}

	links, err := ScanLinks(pageURL, body)
	if err != nil {
		return nil, err
	}
	// Hash-routed documentation sites keep their route in the fragment, so
	// the fallback record keeps the page URL as given.
	record := corpus.Record{
		URL:  pageURL,
		Text: Text(doc.Find(fallbackSelector).First()),
	}
	if len(links) > 0 {
		record.Links = links
	}
	return &Result{Mode: ModeFallback, Records: []corpus.Record{record}, Links: links}, nil
}

func extractPosts(pageURL string, posts *goquery.Selection) []corpus.Record {
	base := stripFragment(pageURL)
	records := make([]corpus.Record, 0, posts.Length())
	posts.Each(func(_ int, post *goquery.Selection) {
		cooked := post.Find(bodySelector).First()
		if cooked.Length() == 0 {
			return
		}
		raw, ok := post.Find(timeSelector).First().Attr(datetimeAttr)
		if !ok {
			return
		}
		ts, err := corpus.ParseTimestamp(raw)
		if err != nil {
			return
		}
		postURL := base
		if id, ok := post.Attr(postIDAttr); ok && strings.TrimSpace(id) != "" {
			postURL = base + "/" + strings.TrimSpace(id)
		}
		records = append(records, corpus.Record{
			URL:       postURL,
			Text:      Text(cooked),
			Timestamp: &ts,
		})
	})
	return records
}

// Text returns the selection's text nodes, each trimmed, joined by single
// spaces. Whitespace-only nodes are dropped.
func Text(sel *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

func stripFragment(u string) string {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		return u[:i]
	}
	return u
}

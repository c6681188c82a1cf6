package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/errors"
)

// ListingRow is one topic row from a category listing page.
type ListingRow struct {
	URL      string
	Href     string
	Activity time.Time
}

// ParseListing reads the topic rows of a Discourse category listing. Rows
// without an activity link or a numeric data-time are skipped. The second
// return value is the number of rows seen, including skipped ones, so the
// caller can tell an empty page from a page of unusable rows.
func ParseListing(pageURL string, body []byte) ([]ListingRow, int, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: listing url %q: %v", apperrors.ErrParse, pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", apperrors.ErrParse, pageURL, err)
	}

	rows := doc.Find("tr.topic-list-item")
	out := make([]ListingRow, 0, rows.Length())
	rows.Each(func(_ int, tr *goquery.Selection) {
		a := tr.Find("a.post-activity").First()
		if a.Length() == 0 {
			return
		}
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		raw, ok := a.Find("span[data-time]").First().Attr("data-time")
		if !ok {
			return
		}
		ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return
		}
		abs, ok := Resolve(base, href)
		if !ok {
			return
		}
		out = append(out, ListingRow{
			URL:      abs,
			Href:     href,
			Activity: time.UnixMilli(ms).UTC(),
		})
	})
	return out, rows.Length(), nil
}

// ListingPageURL returns the URL of the n-th listing page. Page 0 is the
// listing itself; later pages stand in for infinite-scroll loads.
func ListingPageURL(listingURL string, n int) (string, error) {
	if n == 0 {
		return listingURL, nil
	}
	u, err := url.Parse(listingURL)
	if err != nil {
		return "", fmt.Errorf("%w: listing url %q: %v", apperrors.ErrParse, listingURL, err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

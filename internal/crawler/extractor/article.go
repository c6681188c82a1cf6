package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/errors"
)

// Articles returns the text of every <article> element, joined by blank
// lines. Discourse renders each post of a topic as an article.
func Articles(pageURL string, body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", apperrors.ErrParse, pageURL, err)
	}
	var texts []string
	doc.Find("article").Each(func(_ int, a *goquery.Selection) {
		texts = append(texts, Text(a))
	})
	return strings.Join(texts, "\n\n"), nil
}

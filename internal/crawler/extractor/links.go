package extractor

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	apperrors "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/errors"
)

// ScanLinks tokenizes body and returns every anchor href resolved against
// pageURL that has both a scheme and a host, deduplicated in document order.
// Only hrefs whose target is a web page (http or https) are kept; mailto and
// javascript pseudo-links never reach the frontier.
func ScanLinks(pageURL string, body []byte) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: page url %q: %v", apperrors.ErrParse, pageURL, err)
	}

	seen := make(map[string]struct{})
	var links []string
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return links, nil
			}
			return links, fmt.Errorf("%w: tokenizing %s: %v", apperrors.ErrParse, pageURL, z.Err())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) == "base" && hasAttr {
				if href, ok := attr(z, "href"); ok {
					if ref, err := url.Parse(href); err == nil {
						base = base.ResolveReference(ref)
					}
				}
				continue
			}
			if string(name) != "a" || !hasAttr {
				continue
			}
			href, ok := attr(z, "href")
			if !ok {
				continue
			}
			abs, ok := Resolve(base, href)
			if !ok {
				continue
			}
			if _, dup := seen[abs]; dup {
				continue
			}
			seen[abs] = struct{}{}
			links = append(links, abs)
		}
	}
}

// Resolve joins href onto base and reports whether the result is a valid
// absolute web URL.
func Resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme == "" || abs.Host == "" {
		return "", false
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

func attr(z *html.Tokenizer, key string) (string, bool) {
	for {
		k, v, more := z.TagAttr()
		if string(k) == key {
			return string(v), true
		}
		if !more {
			return "", false
		}
	}
}

package provider

import (
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var errNoMediaFound = errors.New("no media URL in document")

// metaSelectors are checked in order of trustworthiness.
var metaSelectors = []string{
	`meta[property="og:video:secure_url"]`,
	`meta[property="og:video:url"]`,
	`meta[property="og:video"]`,
	`meta[property="og:audio"]`,
}

// extractMediaURL pulls an embedded media URL out of an HTML document.
// Sources, in order: OpenGraph video/audio meta tags, <video>/<audio>
// elements and their <source> children, then JSON-LD contentUrl entries.
// Relative URLs are resolved against base.
func extractMediaURL(r io.Reader, base *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}

	for _, selector := range metaSelectors {
		if content, ok := doc.Find(selector).First().Attr("content"); ok && content != "" {
			return resolveURL(base, content)
		}
	}

	var found string
	doc.Find("video source, video, audio source, audio").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if src, ok := s.Attr("src"); ok && src != "" {
			found = src
			return false
		}
		return true
	})
	if found != "" {
		return resolveURL(base, found)
	}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if u := contentURLFromJSONLD(s.Text()); u != "" {
			found = u
			return false
		}
		return true
	})
	if found != "" {
		return resolveURL(base, found)
	}

	return "", errNoMediaFound
}

// contentURLFromJSONLD digs a contentUrl value out of a JSON-LD blob,
// wherever schema.org nesting put it.
func contentURLFromJSONLD(raw string) string {
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return ""
	}
	return findContentURL(data)
}

func findContentURL(node any) string {
	switch v := node.(type) {
	case map[string]any:
		if u, ok := v["contentUrl"].(string); ok && u != "" {
			return u
		}
		for _, child := range v {
			if u := findContentURL(child); u != "" {
				return u
			}
		}
	case []any:
		for _, child := range v {
			if u := findContentURL(child); u != "" {
				return u
			}
		}
	}
	return ""
}

func resolveURL(base *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if base == nil {
		return parsed.String(), nil
	}
	return base.ResolveReference(parsed).String(), nil
}

package extractors

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTML extracts the text, or an attribute, of the elements matching a CSS
// selector.
func HTML(document io.Reader, selector string, options Options) ([]string, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, fmt.Errorf("css selector is required")
	}
	doc, err := goquery.NewDocumentFromReader(document)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	selection := doc.Find(selector)
	if !options.All {
		selection = selection.First()
	}

	var results []string
	selection.Each(func(_ int, s *goquery.Selection) {
		if options.Attribute == "" {
			results = append(results, strings.TrimSpace(s.Text()))
			return
		}
		if value, exists := s.Attr(options.Attribute); exists {
			results = append(results, value)
		}
	})
	if len(results) == 0 {
		if selection.Length() > 0 {
			return nil, fmt.Errorf("attribute '%s' not found: %w", options.Attribute, ErrNoMatch)
		}
		return nil, noMatch("selector", selector)
	}
	return results, nil
}

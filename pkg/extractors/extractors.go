// Package extractors pulls values out of documents: HTML by CSS selector,
// XML by XPath, JSON by dotted path and plain text by regular expression.
//
// Every extractor returns the matched values as strings (or JSON values for
// the JSON extractor). When Options.All is false only the first match is
// returned. A query that matches nothing yields ErrNoMatch.
package extractors

import (
	"errors"
	"fmt"
)

// ErrNoMatch is returned when a query selects nothing.
var ErrNoMatch = errors.New("no match")

// Options controls what an extractor returns from each match.
type Options struct {
	// Attribute selects an attribute value instead of the element text.
	Attribute string
	// All returns every match instead of the first.
	All bool
}

func noMatch(kind, query string) error {
	return fmt.Errorf("%s %q: %w", kind, query, ErrNoMatch)
}

func firstOrAll(values []string, all bool) []string {
	if !all && len(values) > 1 {
		return values[:1]
	}
	return values
}

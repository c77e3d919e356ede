package extractors

import (
	"fmt"
	"regexp"
)

// Regex extracts the matches of pattern in text. Group selects a capture
// group; 0 is the whole match.
func Regex(text, pattern string, group int, all bool) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern '%s': %w", pattern, err)
	}
	if group < 0 || group > re.NumSubexp() {
		return nil, fmt.Errorf("invalid group index %d (pattern has %d groups)", group, re.NumSubexp())
	}
	limit := 1
	if all {
		limit = -1
	}
	matches := re.FindAllStringSubmatch(text, limit)
	if len(matches) == 0 {
		return nil, noMatch("pattern", pattern)
	}
	results := make([]string, len(matches))
	for i, match := range matches {
		results[i] = match[group]
	}
	return results, nil
}

package extractors

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
)

// JSON resolves a dotted path such as "$.items[0].name" or "items[*].id"
// against a JSON document. Comments and trailing commas are tolerated.
// A [*] step fans out over an array; the result then holds one value per
// element.
func JSON(document []byte, path string) ([]any, error) {
	var root any
	if err := json.Unmarshal(jsonc.ToJSON(document), &root); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	steps, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	current := []any{root}
	for _, step := range steps {
		var next []any
		for _, value := range current {
			resolved, err := step.apply(value)
			if err != nil {
				return nil, fmt.Errorf("path %q: %w", path, err)
			}
			next = append(next, resolved...)
		}
		current = next
	}
	if len(current) == 0 {
		return nil, noMatch("path", path)
	}
	return current, nil
}

type pathStep struct {
	key      string
	index    int
	indexed  bool
	wildcard bool
}

func (s pathStep) apply(value any) ([]any, error) {
	if s.key != "" {
		object, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object at '%s', got %T", s.key, value)
		}
		child, exists := object[s.key]
		if !exists {
			return nil, fmt.Errorf("property '%s' not found: %w", s.key, ErrNoMatch)
		}
		value = child
	}
	if !s.indexed && !s.wildcard {
		return []any{value}, nil
	}
	array, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", value)
	}
	if s.wildcard {
		return array, nil
	}
	index := s.index
	if index < 0 {
		index += len(array)
	}
	if index < 0 || index >= len(array) {
		return nil, fmt.Errorf("array index %d out of bounds (length %d)", s.index, len(array))
	}
	return []any{array[index]}, nil
}

func parsePath(path string) ([]pathStep, error) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return nil, nil
	}
	var steps []pathStep
	for _, component := range strings.Split(path, ".") {
		key, rest, bracketed := strings.Cut(component, "[")
		if key == "" && !bracketed {
			return nil, fmt.Errorf("empty path component in %q", path)
		}
		if !bracketed {
			steps = append(steps, pathStep{key: key})
			continue
		}
		first := true
		for {
			inner, after, ok := strings.Cut(rest, "]")
			if !ok {
				return nil, fmt.Errorf("unclosed bracket in %q", component)
			}
			step := pathStep{}
			if first {
				step.key = key
				first = false
			}
			if inner == "*" {
				step.wildcard = true
			} else {
				index, err := strconv.Atoi(inner)
				if err != nil {
					return nil, fmt.Errorf("invalid array index '%s'", inner)
				}
				step.index, step.indexed = index, true
			}
			steps = append(steps, step)
			if after == "" {
				break
			}
			if !strings.HasPrefix(after, "[") {
				return nil, fmt.Errorf("unexpected '%s' in %q", after, component)
			}
			rest = after[1:]
		}
	}
	return steps, nil
}

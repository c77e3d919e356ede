package capability

import (
	"fmt"
	"math"
	"sort"
)

// ConfirmKey is the parameter that carries the caller's confirmation for
// dangerous and critical actions. It is never stripped from Params.
const ConfirmKey = "confirm"

// Params holds the named arguments of a request, as decoded from JSON.
// Values are therefore string, float64, bool, nil, []any or map[string]any.
type Params map[string]any

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Confirmed reports whether the request carries confirm == true. Only the
// JSON boolean true counts; "true", 1 and similar values do not.
func (p Params) Confirmed() bool {
	confirmed, ok := p[ConfirmKey].(bool)
	return ok && confirmed
}

// String returns a required string parameter.
func (p Params) String(key string) (string, error) {
	value, ok := p[key]
	if !ok || value == nil {
		return "", fmt.Errorf("parameter '%s' is required", key)
	}
	text, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("parameter '%s' must be a string, got %T", key, value)
	}
	return text, nil
}

// StringOr returns an optional string parameter, or fallback when absent.
func (p Params) StringOr(key, fallback string) (string, error) {
	if value, ok := p[key]; !ok || value == nil {
		return fallback, nil
	}
	return p.String(key)
}

// BoolOr returns an optional boolean parameter, or fallback when absent.
func (p Params) BoolOr(key string, fallback bool) (bool, error) {
	value, ok := p[key]
	if !ok || value == nil {
		return fallback, nil
	}
	flag, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("parameter '%s' must be a boolean, got %T", key, value)
	}
	return flag, nil
}

// FloatOr returns an optional numeric parameter, or fallback when absent.
func (p Params) FloatOr(key string, fallback float64) (float64, error) {
	value, ok := p[key]
	if !ok || value == nil {
		return fallback, nil
	}
	switch number := value.(type) {
	case float64:
		return number, nil
	case int:
		return float64(number), nil
	default:
		return 0, fmt.Errorf("parameter '%s' must be a number, got %T", key, value)
	}
}

// IntOr returns an optional integral parameter, or fallback when absent.
func (p Params) IntOr(key string, fallback int) (int, error) {
	number, err := p.FloatOr(key, float64(fallback))
	if err != nil {
		return 0, err
	}
	if number != math.Trunc(number) {
		return 0, fmt.Errorf("parameter '%s' must be an integer, got %v", key, number)
	}
	return int(number), nil
}

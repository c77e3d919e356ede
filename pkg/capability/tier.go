package capability

import (
	"fmt"
	"strings"
)

// Tier is the risk classification of a capability. Tiers are ordered:
// a higher tier is never less restrictive than a lower one.
type Tier int

const (
	// TierSafe actions execute immediately.
	TierSafe Tier = iota
	// TierMedium actions execute immediately; the tier exists for audit granularity.
	TierMedium
	// TierDangerous actions require params.confirm == true.
	TierDangerous
	// TierCritical actions require params.confirm == true and are the
	// candidates for stronger layered policies.
	TierCritical
)

var tierNames = [...]string{
	TierSafe:      "safe",
	TierMedium:    "medium",
	TierDangerous: "dangerous",
	TierCritical:  "critical",
}

func (t Tier) String() string {
	if t < TierSafe || t > TierCritical {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// ParseTier converts a tier name (case-insensitive) to a Tier.
func ParseTier(name string) (Tier, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for tier, tierName := range tierNames {
		if tierName == normalized {
			return Tier(tier), nil
		}
	}
	return TierSafe, fmt.Errorf("unknown security tier '%s'", name)
}

// MarshalText implements encoding.TextMarshaler so tiers round-trip
// through YAML and JSON configuration as their names.
func (t Tier) MarshalText() ([]byte, error) {
	if t < TierSafe || t > TierCritical {
		return nil, fmt.Errorf("invalid security tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

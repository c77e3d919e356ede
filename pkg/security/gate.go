// Package security classifies requests by risk tier and enforces the
// confirmation requirement for dangerous and critical actions.
package security

import (
	"errors"
	"fmt"

	"localagent/pkg/capability"
	"localagent/pkg/request"
)

// ErrConfirmationRequired is returned for a dangerous or critical request
// that does not carry params.confirm == true.
var ErrConfirmationRequired = errors.New("requires confirmation")

// Policy is an additional check layered on top of the confirmation rule.
// Policies run only after the base rule has admitted the request, so they
// can tighten the gate but never loosen it.
type Policy func(req request.CommandRequest, tier capability.Tier) error

// Gate looks up the tier of a request and decides whether it may run.
type Gate struct {
	tiers    map[string]capability.Tier
	policies []Policy
}

// NewGate creates a gate over a tier table. Names missing from the table
// are treated as TierSafe.
func NewGate(tiers map[string]capability.Tier, policies ...Policy) *Gate {
	table := make(map[string]capability.Tier, len(tiers))
	for name, tier := range tiers {
		table[name] = tier
	}
	return &Gate{tiers: table, policies: policies}
}

// Tier returns the tier assigned to name, defaulting to TierSafe.
func (g *Gate) Tier(name string) capability.Tier {
	return g.tiers[name]
}

// RequiresConfirmation reports whether requests of tier must carry
// confirm == true.
func RequiresConfirmation(tier capability.Tier) bool {
	return tier >= capability.TierDangerous
}

// Check returns the request's tier and a nil error if it may execute.
func (g *Gate) Check(req request.CommandRequest) (capability.Tier, error) {
	tier := g.Tier(req.Name)
	if RequiresConfirmation(tier) && !req.Params.Confirmed() {
		return tier, fmt.Errorf("%s action '%s' %w", tier, req.Name, ErrConfirmationRequired)
	}
	for _, policy := range g.policies {
		if err := policy(req, tier); err != nil {
			return tier, err
		}
	}
	return tier, nil
}

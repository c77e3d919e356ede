// Package capability defines the contract every locally registered action
// handler satisfies, and the immutable registry that maps action names to
// those handlers. The registry doubles as the agent's allow-list: a name
// that is not registered can never execute.
package capability

import "context"

// Capability is a named, invokable unit of work. Invoke receives the
// request's params after they have been checked against the capability's
// Signature; it reports failure by returning an error.
type Capability interface {
	Invoke(ctx context.Context, params Params) error
}

// Func adapts an ordinary function to the Capability interface.
type Func func(ctx context.Context, params Params) error

// Invoke calls f(ctx, params).
func (f Func) Invoke(ctx context.Context, params Params) error {
	return f(ctx, params)
}

// Descriptor describes one registered capability.
type Descriptor struct {
	Name       string
	Summary    string
	Signature  Signature
	Tier       Tier
	Capability Capability
}

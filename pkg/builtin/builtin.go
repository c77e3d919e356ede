// Package builtin provides the agent's standard capabilities: file and
// folder manipulation, process control, scripting, hashing, compression,
// encryption, SQLite access, git and document extraction. Each capability
// reports its results through the injected logger.
package builtin

import (
	"context"
	"log/slog"

	"localagent/pkg/capability"
	"localagent/pkg/clock"
)

// Deps carries what the built-in capabilities need from the host.
type Deps struct {
	Logger *slog.Logger
	Clock  clock.Clock
	// ProtectedProcesses are names kill_process_by_name refuses to signal.
	ProtectedProcesses []string
	// SQLitePath is the database used when a request names none.
	SQLitePath string
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	return d
}

// handlerFunc is the shape every built-in is written in.
type handlerFunc func(ctx context.Context, params capability.Params) error

// Register adds every built-in capability to builder.
func Register(builder *capability.Builder, deps Deps) error {
	deps = deps.withDefaults()
	groups := [][]capability.Descriptor{
		messageCapabilities(deps),
		fileCapabilities(deps),
		processCapabilities(deps),
		systemCapabilities(deps),
		hashCapabilities(deps),
		compressCapabilities(deps),
		cryptoCapabilities(deps),
		sqliteCapabilities(deps),
		gitCapabilities(deps),
		extractCapabilities(deps),
	}
	for _, group := range groups {
		for _, descriptor := range group {
			if err := builder.Register(descriptor); err != nil {
				return err
			}
		}
	}
	return nil
}

func describe(name, summary string, signature capability.Signature, handler handlerFunc) capability.Descriptor {
	return capability.Descriptor{
		Name:       name,
		Summary:    summary,
		Signature:  signature,
		Capability: capability.Func(handler),
	}
}

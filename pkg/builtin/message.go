package builtin

import (
	"context"
	"fmt"
	"time"

	"localagent/pkg/capability"
)

func messageCapabilities(deps Deps) []capability.Descriptor {
	return []capability.Descriptor{
		describe("message", "Log a message from the controller",
			capability.Signature{capability.Required("text", "message text")},
			func(ctx context.Context, params capability.Params) error {
				text, err := params.String("text")
				if err != nil {
					return err
				}
				deps.Logger.InfoContext(ctx, "GPT message", "text", text)
				return nil
			}),
		describe("wait", "Pause the agent for a number of seconds",
			capability.Signature{capability.Required("seconds", "duration in seconds")},
			func(ctx context.Context, params capability.Params) error {
				seconds, err := params.FloatOr("seconds", 0)
				if err != nil {
					return err
				}
				if seconds < 0 {
					return fmt.Errorf("seconds must not be negative, got %v", seconds)
				}
				duration := time.Duration(seconds * float64(time.Second))
				deps.Logger.DebugContext(ctx, "Waiting", "duration", duration)
				select {
				case <-deps.Clock.After(duration):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}),
	}
}

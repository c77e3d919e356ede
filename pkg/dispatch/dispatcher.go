// Package dispatch runs one request through the pipeline: normalization
// and validation, the security gate, and finally the capability itself.
// Every failure is classified into an Outcome; nothing propagates to the
// caller as an error or a panic.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"localagent/pkg/capability"
	"localagent/pkg/request"
	"localagent/pkg/security"
)

// ErrPanic wraps a panic recovered from a capability.
var ErrPanic = errors.New("capability panicked")

// Dispatcher resolves validated, gate-approved requests to capabilities
// and invokes them with fault isolation.
type Dispatcher struct {
	registry *capability.Registry
	gate     *security.Gate
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a dispatcher. A nil logger discards log output.
func New(registry *capability.Registry, gate *security.Gate, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		registry: registry,
		gate:     gate,
		logger:   logger,
		now:      time.Now,
	}
}

// Registry returns the registry the dispatcher resolves names against.
func (d *Dispatcher) Registry() *capability.Registry {
	return d.registry
}

// Evaluate runs validation and the security gate without invoking
// anything. On success it returns the canonical request and its tier; on
// failure the error unwraps to a request or security sentinel.
func (d *Dispatcher) Evaluate(raw any) (request.CommandRequest, capability.Tier, error) {
	req, err := request.Validate(raw, d.registry.Has)
	if err != nil {
		return req, capability.TierSafe, err
	}
	tier, err := d.gate.Check(req)
	return req, tier, err
}

// Dispatch runs raw through the full pipeline and returns its outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, raw any) Outcome {
	req, tier, err := d.Evaluate(raw)
	if err != nil {
		outcome := Outcome{Kind: Classify(err), Name: req.Name, Tier: tier, Params: req.Params, Err: err}
		if outcome.Name == "" {
			var rejection *request.Rejection
			if errors.As(err, &rejection) {
				outcome.Name = rejection.Name
			}
		}
		d.logRejection(ctx, outcome)
		return outcome
	}
	return d.Invoke(ctx, req, tier)
}

// Invoke calls the capability registered for req.Name. The request must
// already have passed Evaluate.
func (d *Dispatcher) Invoke(ctx context.Context, req request.CommandRequest, tier capability.Tier) Outcome {
	outcome := Outcome{Name: req.Name, Tier: tier, Params: req.Params, StartTime: d.now()}

	descriptor, ok := d.registry.Lookup(req.Name)
	if !ok {
		outcome.Kind = RejectedUnknown
		outcome.Err = &request.Rejection{Err: request.ErrUnknownCommand, Name: req.Name}
		d.logRejection(ctx, outcome)
		return outcome
	}

	if err := descriptor.Signature.Check(req.Params); err != nil {
		outcome.Kind = Failed
		outcome.Err = err
		var mismatch *capability.MismatchError
		errors.As(err, &mismatch)
		d.logger.ErrorContext(ctx, "Mismatched parameters for command",
			"command", req.Name,
			"provided", req.Params.Keys(),
			"unexpected", mismatch.Unexpected,
			"missing", mismatch.Missing,
			"signature", descriptor.Signature.String())
		return outcome
	}

	d.logger.InfoContext(ctx, "Executing command", "command", req.Name, "tier", tier, "params", req.Params)

	err := invokeIsolated(ctx, descriptor.Capability, req.Params)
	outcome.Duration = d.now().Sub(outcome.StartTime)
	if err != nil {
		outcome.Kind = Failed
		outcome.Err = err
		d.logger.ErrorContext(ctx, "Error executing command", "command", req.Name, "error", err)
		return outcome
	}

	outcome.Kind = Executed
	d.logger.InfoContext(ctx, "Successfully executed command", "command", req.Name, "duration", outcome.Duration)
	return outcome
}

// invokeIsolated calls the capability and converts a panic into an error.
func invokeIsolated(ctx context.Context, handler capability.Capability, params capability.Params) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrPanic, recovered, debug.Stack())
		}
	}()
	return handler.Invoke(ctx, params)
}

// Classify maps an error from Evaluate, or a signature check, to its
// outcome kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return Executed
	case errors.Is(err, request.ErrEmpty):
		return Ignored
	case errors.Is(err, request.ErrMissingCommand), errors.Is(err, request.ErrInvalidParams):
		return RejectedInvalid
	case errors.Is(err, request.ErrUnknownCommand):
		return RejectedUnknown
	case errors.Is(err, security.ErrConfirmationRequired):
		return RejectedUnconfirmed
	case errors.Is(err, capability.ErrParamMismatch):
		return Failed
	default:
		return RejectedPolicy
	}
}

func (d *Dispatcher) logRejection(ctx context.Context, outcome Outcome) {
	switch outcome.Kind {
	case Ignored:
		d.logger.DebugContext(ctx, "Ignoring empty request")
	case RejectedInvalid:
		d.logger.WarnContext(ctx, "Rejected invalid request", "command", outcome.Name, "reason", outcome.Err)
	case RejectedUnknown:
		d.logger.WarnContext(ctx, "Unknown/forbidden command received", "command", outcome.Name)
	case RejectedUnconfirmed:
		d.logger.WarnContext(ctx, "Command requires confirmation; resubmit with confirm=true",
			"command", outcome.Name, "tier", outcome.Tier)
	default:
		d.logger.WarnContext(ctx, "Command refused by security policy",
			"command", outcome.Name, "tier", outcome.Tier, "reason", outcome.Err)
	}
}

// Package request turns the raw JSON value read from the mailbox into a
// canonical CommandRequest. Normalize adapts the legacy flat parameter
// form; Validate rejects structurally invalid and unregistered requests
// before anything is classified or run.
package request

import (
	"encoding/json"
	"errors"
	"fmt"

	"localagent/pkg/capability"
)

const (
	// CommandKey names the action in a mailbox payload.
	CommandKey = "command"
	// ParamsKey holds the action's parameters in the canonical form.
	ParamsKey = "params"
)

// Rejection sentinels, one per validation step.
var (
	ErrEmpty          = errors.New("empty request")
	ErrMissingCommand = errors.New("missing command")
	ErrUnknownCommand = errors.New("unknown or forbidden command")
	ErrInvalidParams  = errors.New("invalid params")
)

// CommandRequest is the canonical form of a request. Name is never empty
// and Params is never nil once Validate has returned it.
type CommandRequest struct {
	Name   string            `json:"command"`
	Params capability.Params `json:"params"`
}

// Draft is a normalized but not yet validated request.
type Draft struct {
	Name   any
	Params any
}

// Normalize adapts a decoded JSON object to the {name, params} shape.
// An object with a params key keeps it as-is; otherwise every key except
// the command key is folded into a new params object.
func Normalize(object map[string]any) Draft {
	draft := Draft{Name: object[CommandKey]}
	if params, ok := object[ParamsKey]; ok {
		draft.Params = params
		return draft
	}
	params := make(map[string]any, len(object))
	for key, value := range object {
		if key != CommandKey {
			params[key] = value
		}
	}
	draft.Params = params
	return draft
}

// Rejection explains why Validate refused a request. It unwraps to one of
// the package's sentinel errors.
type Rejection struct {
	Err  error
	Name string
}

func (r *Rejection) Error() string {
	if r.Name == "" {
		return r.Err.Error()
	}
	return fmt.Sprintf("%s: '%s'", r.Err, r.Name)
}

func (r *Rejection) Unwrap() error { return r.Err }

// Validate checks raw in order, stopping at the first failure:
//
//  1. raw is a non-empty JSON object (ErrEmpty)
//  2. the command is a non-empty string (ErrMissingCommand)
//  3. the command is known to the registry (ErrUnknownCommand)
//  4. params is an object (ErrInvalidParams)
//
// A null params value is treated as an empty object.
func Validate(raw any, known func(name string) bool) (CommandRequest, error) {
	object, ok := raw.(map[string]any)
	if !ok || len(object) == 0 {
		return CommandRequest{}, &Rejection{Err: ErrEmpty}
	}

	draft := Normalize(object)

	name, ok := draft.Name.(string)
	if !ok || name == "" {
		return CommandRequest{}, &Rejection{Err: ErrMissingCommand}
	}

	if !known(name) {
		return CommandRequest{}, &Rejection{Err: ErrUnknownCommand, Name: name}
	}

	var params capability.Params
	switch value := draft.Params.(type) {
	case nil:
		params = capability.Params{}
	case map[string]any:
		params = capability.Params(value)
	default:
		return CommandRequest{}, &Rejection{Err: ErrInvalidParams, Name: name}
	}

	return CommandRequest{Name: name, Params: params}, nil
}

// Parse decodes data as JSON and validates the result. It is used by
// producers that want to check a payload before writing it.
func Parse(data []byte, known func(name string) bool) (CommandRequest, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return CommandRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return Validate(raw, known)
}

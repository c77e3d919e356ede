package capability

import (
	"errors"
	"fmt"
	"strings"
)

// ErrParamMismatch is returned when a request's parameters do not fit the
// capability's declared signature.
var ErrParamMismatch = errors.New("parameter mismatch")

// Param declares one named parameter of a capability.
type Param struct {
	Name     string
	Required bool
	Doc      string
}

// Required declares a parameter the caller must supply.
func Required(name, doc string) Param {
	return Param{Name: name, Required: true, Doc: doc}
}

// Optional declares a parameter the capability supplies its own default for.
func Optional(name, doc string) Param {
	return Param{Name: name, Doc: doc}
}

// Signature is the parameter contract of a capability. ConfirmKey is
// accepted by every signature whether or not it is declared.
type Signature []Param

// Accepts reports whether name is a parameter of the signature.
func (s Signature) Accepts(name string) bool {
	if name == ConfirmKey {
		return true
	}
	for _, param := range s {
		if param.Name == name {
			return true
		}
	}
	return false
}

// Check verifies params against the signature. Unexpected keys and missing
// required keys are reported together in a *MismatchError.
func (s Signature) Check(params Params) error {
	var mismatch MismatchError
	for _, key := range params.Keys() {
		if !s.Accepts(key) {
			mismatch.Unexpected = append(mismatch.Unexpected, key)
		}
	}
	for _, param := range s {
		if _, ok := params[param.Name]; param.Required && !ok {
			mismatch.Missing = append(mismatch.Missing, param.Name)
		}
	}
	if len(mismatch.Unexpected) == 0 && len(mismatch.Missing) == 0 {
		return nil
	}
	return &mismatch
}

// String renders the signature as "(path, content?)".
func (s Signature) String() string {
	names := make([]string, 0, len(s))
	for _, param := range s {
		if param.Required {
			names = append(names, param.Name)
		} else {
			names = append(names, param.Name+"?")
		}
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// MismatchError identifies the offending keys of a signature mismatch.
type MismatchError struct {
	Unexpected []string
	Missing    []string
}

func (e *MismatchError) Error() string {
	var parts []string
	if len(e.Unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected %s", strings.Join(e.Unexpected, ", ")))
	}
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing %s", strings.Join(e.Missing, ", ")))
	}
	return fmt.Sprintf("%s: %s", ErrParamMismatch, strings.Join(parts, "; "))
}

func (e *MismatchError) Unwrap() error { return ErrParamMismatch }

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"localagent/pkg/capability"
	"localagent/pkg/request"
	"localagent/pkg/security"
)

// stub records every invocation and returns err.
type stub struct {
	calls  []capability.Params
	err    error
	panics bool
}

func (s *stub) Invoke(_ context.Context, params capability.Params) error {
	s.calls = append(s.calls, params)
	if s.panics {
		panic("boom")
	}
	return s.err
}

type fixture struct {
	dispatcher *Dispatcher
	logs       *bytes.Buffer
	message    *stub
	deleteFile *stub
	runScript  *stub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		logs:       &bytes.Buffer{},
		message:    &stub{},
		deleteFile: &stub{},
		runScript:  &stub{},
	}
	builder := capability.NewBuilder()
	builder.MustRegister(capability.Descriptor{
		Name:       "message",
		Signature:  capability.Signature{capability.Required("text", "")},
		Capability: f.message,
	})
	builder.MustRegister(capability.Descriptor{
		Name:       "delete_file",
		Signature:  capability.Signature{capability.Required("path", "")},
		Capability: f.deleteFile,
	})
	builder.MustRegister(capability.Descriptor{
		Name:       "run_script",
		Signature:  capability.Signature{capability.Required("script", "")},
		Capability: f.runScript,
	})
	registry := builder.Build(map[string]capability.Tier{
		"delete_file": capability.TierDangerous,
		"run_script":  capability.TierCritical,
	})
	logger := slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f.dispatcher = New(registry, security.NewGate(registry.Tiers()), logger)
	return f
}

func decode(t *testing.T, payload string) any {
	t.Helper()
	var raw any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("decode %s: %v", payload, err)
	}
	return raw
}

func TestDeleteFileRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcome := f.dispatcher.Dispatch(ctx, decode(t, `{"command":"delete_file","params":{"path":"/tmp/x","confirm":false}}`))
	if outcome.Kind != RejectedUnconfirmed {
		t.Fatalf("unconfirmed outcome = %v", outcome)
	}
	if len(f.deleteFile.calls) != 0 {
		t.Fatalf("handler called %d times without confirmation", len(f.deleteFile.calls))
	}

	outcome = f.dispatcher.Dispatch(ctx, decode(t, `{"command":"delete_file","params":{"path":"/tmp/x","confirm":true}}`))
	if outcome.Kind != Executed {
		t.Fatalf("confirmed outcome = %v", outcome)
	}
	if len(f.deleteFile.calls) != 1 {
		t.Fatalf("handler called %d times, want 1", len(f.deleteFile.calls))
	}
	want := capability.Params{"path": "/tmp/x", "confirm": true}
	if !reflect.DeepEqual(f.deleteFile.calls[0], want) {
		t.Errorf("handler params = %v, want %v", f.deleteFile.calls[0], want)
	}
}

func TestElevatedTiersDispatchOnlyWhenConfirmed(t *testing.T) {
	payloads := []struct {
		payload  string
		executed bool
	}{
		{`{"command":"run_script","params":{"script":"ls"}}`, false},
		{`{"command":"run_script","params":{"script":"ls","confirm":false}}`, false},
		{`{"command":"run_script","params":{"script":"ls","confirm":"yes"}}`, false},
		{`{"command":"run_script","script":"ls"}`, false},
		{`{"command":"run_script","script":"ls","confirm":true}`, true},
		{`{"command":"delete_file","path":"/tmp/y","confirm":true}`, true},
	}
	for _, test := range payloads {
		f := newFixture(t)
		outcome := f.dispatcher.Dispatch(context.Background(), decode(t, test.payload))
		calls := len(f.runScript.calls) + len(f.deleteFile.calls)
		if test.executed {
			if outcome.Kind != Executed || calls != 1 {
				t.Errorf("%s: outcome=%v calls=%d", test.payload, outcome, calls)
			}
		} else if outcome.Kind != RejectedUnconfirmed || calls != 0 {
			t.Errorf("%s: outcome=%v calls=%d", test.payload, outcome, calls)
		}
	}
}

func TestLegacyMessage(t *testing.T) {
	f := newFixture(t)
	outcome := f.dispatcher.Dispatch(context.Background(), decode(t, `{"command":"message","text":"hi"}`))
	if outcome.Kind != Executed {
		t.Fatalf("outcome = %v", outcome)
	}
	if len(f.message.calls) != 1 || f.message.calls[0]["text"] != "hi" {
		t.Fatalf("message calls = %v", f.message.calls)
	}
	if !strings.Contains(f.logs.String(), "Successfully executed command") {
		t.Errorf("missing success log:\n%s", f.logs.String())
	}
}

func TestLegacyAndCanonicalAreEquivalent(t *testing.T) {
	legacy := newFixture(t)
	canonical := newFixture(t)
	legacyOutcome := legacy.dispatcher.Dispatch(context.Background(), decode(t, `{"command":"message","text":"x"}`))
	canonicalOutcome := canonical.dispatcher.Dispatch(context.Background(), decode(t, `{"command":"message","params":{"text":"x"}}`))
	if legacyOutcome.Kind != canonicalOutcome.Kind {
		t.Fatalf("legacy %v != canonical %v", legacyOutcome.Kind, canonicalOutcome.Kind)
	}
	if !reflect.DeepEqual(legacy.message.calls, canonical.message.calls) {
		t.Errorf("legacy calls %v != canonical calls %v", legacy.message.calls, canonical.message.calls)
	}
}

func TestUnknownCommandRejectedRegardlessOfParams(t *testing.T) {
	for _, payload := range []string{
		`{"command":"format_disk"}`,
		`{"command":"format_disk","params":{"confirm":true}}`,
		`{"command":"format_disk","params":"junk"}`,
		`{"command":"format_disk","drive":"C"}`,
	} {
		f := newFixture(t)
		outcome := f.dispatcher.Dispatch(context.Background(), decode(t, payload))
		if outcome.Kind != RejectedUnknown {
			t.Errorf("%s: outcome = %v, want rejected_unknown", payload, outcome)
		}
		if outcome.Name != "format_disk" {
			t.Errorf("%s: outcome name = %q", payload, outcome.Name)
		}
	}
}

func TestNonObjectPayloadsAreIgnored(t *testing.T) {
	for _, payload := range []string{`{}`, `[]`, `"message"`, `42`, `null`, `true`} {
		f := newFixture(t)
		outcome := f.dispatcher.Dispatch(context.Background(), decode(t, payload))
		if outcome.Kind != Ignored {
			t.Errorf("%s: outcome = %v, want ignored", payload, outcome)
		}
		if strings.Contains(f.logs.String(), "level=WARN") {
			t.Errorf("%s: ignored payload produced warnings:\n%s", payload, f.logs.String())
		}
	}
}

func TestStructurallyInvalid(t *testing.T) {
	for _, payload := range []string{
		`{"params":{"text":"x"}}`,
		`{"command":""}`,
		`{"command":"message","params":"not-a-dict"}`,
		`{"command":"message","params":[1,2]}`,
	} {
		f := newFixture(t)
		outcome := f.dispatcher.Dispatch(context.Background(), decode(t, payload))
		if outcome.Kind != RejectedInvalid {
			t.Errorf("%s: outcome = %v, want rejected_invalid", payload, outcome)
		}
		if len(f.message.calls) != 0 {
			t.Errorf("%s: handler invoked", payload)
		}
	}
}

func TestParameterMismatchIsCaughtAndLogged(t *testing.T) {
	f := newFixture(t)
	outcome := f.dispatcher.Dispatch(context.Background(),
		decode(t, `{"command":"delete_file","params":{"path":"/test.txt","wrong_param":"x","confirm":true}}`))

	if outcome.Kind != Failed || !errors.Is(outcome.Err, capability.ErrParamMismatch) {
		t.Fatalf("outcome = %v", outcome)
	}
	if len(f.deleteFile.calls) != 0 {
		t.Fatal("handler invoked despite mismatch")
	}
	logs := f.logs.String()
	if !strings.Contains(logs, "Mismatched parameters for command") || !strings.Contains(logs, "wrong_param") {
		t.Errorf("mismatch log does not identify offending key:\n%s", logs)
	}
}

func TestHandlerErrorIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.message.err = errors.New("disk full")
	outcome := f.dispatcher.Dispatch(context.Background(), decode(t, `{"command":"message","text":"x"}`))
	if outcome.Kind != Failed || outcome.Err.Error() != "disk full" {
		t.Fatalf("outcome = %v", outcome)
	}
	if !strings.Contains(f.logs.String(), "disk full") {
		t.Errorf("error not logged:\n%s", f.logs.String())
	}
}

func TestHandlerPanicIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.message.panics = true
	outcome := f.dispatcher.Dispatch(context.Background(), decode(t, `{"command":"message","text":"x"}`))
	if outcome.Kind != Failed || !errors.Is(outcome.Err, ErrPanic) {
		t.Fatalf("outcome = %v", outcome)
	}
}

func TestEvaluateDoesNotInvoke(t *testing.T) {
	f := newFixture(t)
	req, tier, err := f.dispatcher.Evaluate(decode(t, `{"command":"delete_file","path":"/tmp/x","confirm":true}`))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if req.Name != "delete_file" || tier != capability.TierDangerous {
		t.Errorf("Evaluate = %v, %v", req, tier)
	}
	if len(f.deleteFile.calls) != 0 {
		t.Error("Evaluate invoked the handler")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, Executed},
		{&request.Rejection{Err: request.ErrEmpty}, Ignored},
		{&request.Rejection{Err: request.ErrMissingCommand}, RejectedInvalid},
		{&request.Rejection{Err: request.ErrInvalidParams}, RejectedInvalid},
		{&request.Rejection{Err: request.ErrUnknownCommand}, RejectedUnknown},
		{security.ErrConfirmationRequired, RejectedUnconfirmed},
		{security.ErrProtectedPath, RejectedPolicy},
		{&capability.MismatchError{Missing: []string{"path"}}, Failed},
	}
	for _, test := range tests {
		if got := Classify(test.err); got != test.want {
			t.Errorf("Classify(%v) = %v, want %v", test.err, got, test.want)
		}
	}
}

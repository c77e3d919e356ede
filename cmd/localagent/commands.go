package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"localagent/pkg/capability"
	"localagent/pkg/dispatch"
	"localagent/pkg/mailbox"
	"localagent/pkg/reporter"
	"localagent/pkg/request"
)

func subcommandFlags(name string, stderr io.Writer) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("localagent "+name, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	return flagSet
}

// parseFlags parses args and maps --help to a clean exit.
func parseFlags(flagSet *pflag.FlagSet, args []string) (bool, error) {
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return false, nil
		}
		return false, &exitError{code: 2, err: err}
	}
	return true, nil
}

func runAgent(g globals, args []string, _, stderr io.Writer) error {
	flagSet := subcommandFlags("run", stderr)
	pollInterval := flagSet.Duration("poll-interval", 0, "time between mailbox polls (default 1s)")
	if ok, err := parseFlags(flagSet, args); !ok {
		return err
	}

	a, err := newApp(g, stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	if *pollInterval > 0 {
		a.config.PollInterval = *pollInterval
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a.logger.Info("Capabilities registered", "count", a.registry.Len(), "mailbox", a.mailbox.Path())
	return a.scheduler(nil).Run(ctx)
}

func runOnce(g globals, args []string, stdout, stderr io.Writer) error {
	flagSet := subcommandFlags("once", stderr)
	if ok, err := parseFlags(flagSet, args); !ok {
		return err
	}

	a, err := newApp(g, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	found := a.scheduler(func(outcome dispatch.Outcome) {
		reporter.PrintOutcome(outcome, stdout)
	}).RunOnce(context.Background())
	if !found {
		return &exitError{code: exitCodeIdle}
	}
	return nil
}

func runSend(g globals, args []string, stdout, stderr io.Writer) error {
	flagSet := subcommandFlags("send", stderr)
	file := flagSet.StringP("file", "f", "", "read the request from a JSON or JSONC file ('-' for stdin)")
	confirm := flagSet.Bool("confirm", false, "add \"confirm\": true to the params")
	legacy := flagSet.Bool("legacy", false, "write the flat form with params beside the command")
	force := flagSet.Bool("force", false, "write even if the request is invalid or a request is pending")
	if ok, err := parseFlags(flagSet, args); !ok {
		return err
	}

	var payload any
	var err error
	switch rest := flagSet.Args(); {
	case *file != "" && len(rest) > 0:
		return &exitError{code: 2, err: errors.New("--file cannot be combined with a command")}
	case *file != "":
		payload, err = readPayload(*file)
	case len(rest) == 0:
		return &exitError{code: 2, err: errors.New("usage: send <command> [key=value | key:=json ...]")}
	default:
		var params map[string]any
		params, err = parseAssignments(rest[1:])
		payload = buildRequest(rest[0], params, *legacy)
	}
	if err != nil {
		return err
	}
	if *confirm {
		payload = withConfirm(payload)
	}

	a, err := newApp(g, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if !*force {
		if _, _, err := a.dispatcher.Evaluate(payload); err != nil {
			return fmt.Errorf("request would be rejected (%s): %w; use --force to send anyway", dispatch.Classify(err), err)
		}
		if occupied, err := a.mailbox.Occupied(); err != nil {
			return err
		} else if occupied {
			return fmt.Errorf("mailbox %s already holds a pending request; use --force to replace it", a.mailbox.Path())
		}
	}
	if err := a.mailbox.Write(payload); err != nil {
		return err
	}
	encoded, _ := json.Marshal(payload)
	fmt.Fprintf(stdout, "Sent %s to %s\n", encoded, a.mailbox.Path())
	return nil
}

func runValidate(g globals, args []string, stdout, stderr io.Writer) error {
	flagSet := subcommandFlags("validate", stderr)
	if ok, err := parseFlags(flagSet, args); !ok {
		return err
	}
	if flagSet.NArg() != 1 {
		return &exitError{code: 2, err: errors.New("usage: validate <file|->")}
	}
	payload, err := readPayload(flagSet.Arg(0))
	if err != nil {
		return err
	}

	a, err := newApp(g, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	req, tier, err := a.dispatcher.Evaluate(payload)
	if err == nil {
		descriptor, _ := a.registry.Lookup(req.Name)
		err = descriptor.Signature.Check(req.Params)
	}
	reporter.PrintValidation(req, tier, err, stdout)
	if err != nil {
		return &exitError{code: 1}
	}
	return nil
}

func runList(g globals, args []string, stdout, stderr io.Writer) error {
	flagSet := subcommandFlags("list", stderr)
	if ok, err := parseFlags(flagSet, args); !ok {
		return err
	}
	a, err := newApp(g, stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	reporter.PrintCapabilities(a.registry.Descriptors(), stdout)
	return nil
}

func runDescribe(g globals, args []string, stdout, stderr io.Writer) error {
	flagSet := subcommandFlags("describe", stderr)
	if ok, err := parseFlags(flagSet, args); !ok {
		return err
	}
	if flagSet.NArg() != 1 {
		return &exitError{code: 2, err: errors.New("usage: describe <capability>")}
	}
	a, err := newApp(g, stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	descriptor, ok := a.registry.Lookup(flagSet.Arg(0))
	if !ok {
		return fmt.Errorf("no capability named %q", flagSet.Arg(0))
	}
	reporter.PrintDescriptor(descriptor, stdout)
	return nil
}

func runStatus(g globals, args []string, stdout, stderr io.Writer) error {
	flagSet := subcommandFlags("status", stderr)
	if ok, err := parseFlags(flagSet, args); !ok {
		return err
	}
	a, err := newApp(g, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	content, err := a.mailbox.Peek()
	if err != nil {
		return err
	}
	status := reporter.Status{Mailbox: a.mailbox.Path()}
	if pending := strings.TrimSpace(string(content)); pending != "" {
		status.Occupied = true
		status.Fingerprint = mailbox.Fingerprint([]byte(pending))
		status.Pending = pending
	}
	reporter.PrintStatus(status, stdout)
	return nil
}

// readPayload decodes a JSON or JSONC document from path, or stdin for "-".
func readPayload(path string) (any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	var payload any
	if err := json.Unmarshal(jsonc.ToJSON(data), &payload); err != nil {
		return nil, fmt.Errorf("decode request %s: %w", path, err)
	}
	return payload, nil
}

// parseAssignments turns key=value (string) and key:=json (typed)
// arguments into a params object.
func parseAssignments(args []string) (map[string]any, error) {
	params := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, &exitError{code: 2, err: fmt.Errorf("argument %q is not key=value", arg)}
		}
		if typed, isJSON := strings.CutSuffix(key, ":"); isJSON {
			var decoded any
			if err := json.Unmarshal([]byte(value), &decoded); err != nil {
				return nil, &exitError{code: 2, err: fmt.Errorf("argument %q: invalid JSON value: %w", arg, err)}
			}
			key = typed
			params[key] = decoded
		} else {
			params[key] = value
		}
		if key == "" {
			return nil, &exitError{code: 2, err: fmt.Errorf("argument %q has an empty key", arg)}
		}
	}
	return params, nil
}

func buildRequest(name string, params map[string]any, legacy bool) map[string]any {
	if !legacy {
		return map[string]any{request.CommandKey: name, request.ParamsKey: params}
	}
	flat := map[string]any{request.CommandKey: name}
	for key, value := range params {
		flat[key] = value
	}
	return flat
}

// withConfirm sets confirm=true wherever the payload's params live.
func withConfirm(payload any) any {
	object, ok := payload.(map[string]any)
	if !ok {
		return payload
	}
	if params, ok := object[request.ParamsKey].(map[string]any); ok {
		params[capability.ConfirmKey] = true
		return object
	}
	if value, hasParams := object[request.ParamsKey]; hasParams {
		if value == nil {
			object[request.ParamsKey] = map[string]any{capability.ConfirmKey: true}
		}
		return object
	}
	object[capability.ConfirmKey] = true
	return object
}


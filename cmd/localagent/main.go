// Command localagent watches a mailbox file for JSON command requests and
// executes them through a registry of local capabilities, gated by
// security tier.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

// exitCodeIdle is returned by "once" when the mailbox held no work.
const exitCodeIdle = 3

// exitError carries a process exit code through run.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			if message := err.Error(); coder.ExitCode() != exitCodeIdle && message != "" {
				fmt.Fprintf(os.Stderr, "error: %s\n", message)
			}
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globals are the flags shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string
	logFile    string
	mailbox    string
}

type command struct {
	summary string
	run     func(g globals, args []string, stdout, stderr io.Writer) error
}

var commands = map[string]command{
	"run":      {"poll the mailbox until interrupted", runAgent},
	"once":     {"process at most one request and exit (status 3 when idle)", runOnce},
	"send":     {"write a request into the mailbox", runSend},
	"validate": {"check a request file without executing it", runValidate},
	"list":     {"list registered capabilities by tier", runList},
	"describe": {"show one capability's parameters and tier", runDescribe},
	"status":   {"show the mailbox and any pending request", runStatus},
}

var commandOrder = []string{"run", "once", "send", "validate", "list", "describe", "status"}

func run(args []string, stdout, stderr io.Writer) error {
	var g globals
	flagSet := pflag.NewFlagSet("localagent", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVarP(&g.configPath, "config", "c", "", "YAML configuration file")
	flagSet.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flagSet.StringVar(&g.logFile, "log-file", "", "log file (default agent.log)")
	flagSet.StringVarP(&g.mailbox, "mailbox", "m", "", "mailbox file (default gpt_command.json)")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.Usage = func() { printHelp(flagSet, stderr) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet, stdout)
		return nil
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printHelp(flagSet, stderr)
		return &exitError{code: 2, err: errors.New("missing subcommand")}
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return &exitError{code: 2, err: fmt.Errorf("unknown subcommand %q", rest[0])}
	}
	return cmd.run(g, rest[1:], stdout, stderr)
}

func printHelp(flagSet *pflag.FlagSet, w io.Writer) {
	fmt.Fprint(w, `localagent executes JSON command requests dropped into a mailbox file.

A producer writes one request, {"command": "<name>", "params": {...}}, into
the mailbox. The agent picks it up on its next poll, clears the file, checks
the command against its registry and security tiers, and runs it. Dangerous
and critical commands run only when params carry "confirm": true.

Usage:
  localagent [flags] <subcommand> [arguments]

Subcommands:
`)
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-9s %s\n", name, commands[name].summary)
	}
	fmt.Fprint(w, `
Examples:
  localagent run
  localagent send message text="hello there"
  localagent send delete_file path=/tmp/old.log --confirm
  localagent send wait seconds:=2.5
  localagent validate request.jsonc

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}

package builtin

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"slices"
	"strings"

	"localagent/pkg/capability"
)

// ErrProtectedProcess is returned when a request targets a process the agent
// is configured never to signal.
var ErrProtectedProcess = errors.New("process is protected")

// errUnsupported is returned by platform hooks that have no implementation
// on the running OS.
var errUnsupported = fmt.Errorf("not supported on %s", runtime.GOOS)

// processInfo is one row of the process table.
type processInfo struct {
	PID  int
	Name string
}

func processCapabilities(deps Deps) []capability.Descriptor {
	procs := processHandlers{deps: deps}
	return []capability.Descriptor{
		describe("open_app", "Open a file or application with the desktop launcher",
			capability.Signature{pathParam}, procs.openApp),
		describe("start_process", "Start a program without waiting for it",
			capability.Signature{pathParam, capability.Optional("args", "argument list or space separated string")},
			procs.startProcess),
		describe("run_script", "Run a script through a shell and log its output",
			capability.Signature{
				capability.Required("script", "script text"),
				capability.Optional("shell", "interpreter, default powershell on Windows and sh elsewhere"),
			},
			procs.runScript),
		describe("list_processes", "Log the running processes",
			nil, procs.listProcesses),
		describe("kill_process_by_name", "Terminate every process with the given name",
			capability.Signature{capability.Required("name", "process name")},
			procs.killByName),
	}
}

type processHandlers struct {
	deps Deps
}

func (h processHandlers) openApp(ctx context.Context, params capability.Params) error {
	path, err := params.String("path")
	if err != nil {
		return err
	}
	name, args := launcher(path)
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open '%s': %w", path, err)
	}
	go cmd.Wait()
	h.deps.Logger.InfoContext(ctx, "Opened application", "path", path, "pid", cmd.Process.Pid)
	return nil
}

func launcher(path string) (string, []string) {
	switch runtime.GOOS {
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	case "darwin":
		return "open", []string{path}
	default:
		return "xdg-open", []string{path}
	}
}

func (h processHandlers) startProcess(ctx context.Context, params capability.Params) error {
	path, err := params.String("path")
	if err != nil {
		return err
	}
	args, err := stringList(params, "args")
	if err != nil {
		return err
	}
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start process '%s': %w", path, err)
	}
	go cmd.Wait()
	h.deps.Logger.InfoContext(ctx, "Started process", "path", path, "args", args, "pid", cmd.Process.Pid)
	return nil
}

func (h processHandlers) runScript(ctx context.Context, params capability.Params) error {
	script, err := params.String("script")
	if err != nil {
		return err
	}
	shell, err := params.StringOr("shell", defaultShell())
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, shell, shellArgs(shell, script)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		h.deps.Logger.ErrorContext(ctx, "Script failed",
			"shell", shell, "exit_code", exitCode, "output", strings.TrimSpace(string(output)))
		return fmt.Errorf("run script with %s: %w", shell, err)
	}
	h.deps.Logger.InfoContext(ctx, "Script output", "shell", shell, "output", strings.TrimSpace(string(output)))
	return nil
}

func defaultShell() string {
	if runtime.GOOS == "windows" {
		return "powershell"
	}
	return "sh"
}

func shellArgs(shell, script string) []string {
	switch strings.ToLower(strings.TrimSuffix(shell, ".exe")) {
	case "powershell", "pwsh":
		return []string{"-NoProfile", "-NonInteractive", "-Command", script}
	case "cmd":
		return []string{"/C", script}
	default:
		return []string{"-c", script}
	}
}

func (h processHandlers) listProcesses(ctx context.Context, _ capability.Params) error {
	procs, err := listProcesses()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}
	names := make([]string, 0, len(procs))
	for _, proc := range procs {
		names = append(names, fmt.Sprintf("%s (%d)", proc.Name, proc.PID))
	}
	h.deps.Logger.InfoContext(ctx, "Running processes", "count", len(procs), "processes", names)
	return nil
}

func (h processHandlers) killByName(ctx context.Context, params capability.Params) error {
	name, err := params.String("name")
	if err != nil {
		return err
	}
	if h.protected(name) {
		h.deps.Logger.WarnContext(ctx, "Refusing to kill protected process", "name", name)
		return fmt.Errorf("kill '%s': %w", name, ErrProtectedProcess)
	}
	procs, err := listProcesses()
	if err != nil {
		return fmt.Errorf("kill '%s': %w", name, err)
	}
	killed := 0
	for _, proc := range procs {
		if !strings.EqualFold(proc.Name, name) {
			continue
		}
		if err := terminate(proc.PID); err != nil {
			h.deps.Logger.WarnContext(ctx, "Could not terminate process", "name", proc.Name, "pid", proc.PID, "error", err)
			continue
		}
		killed++
		h.deps.Logger.InfoContext(ctx, "Terminated process", "name", proc.Name, "pid", proc.PID)
	}
	if killed == 0 {
		h.deps.Logger.InfoContext(ctx, "No running process matched", "name", name)
	}
	return nil
}

func (h processHandlers) protected(name string) bool {
	return slices.ContainsFunc(h.deps.ProtectedProcesses, func(protected string) bool {
		return strings.EqualFold(protected, name)
	})
}

// stringList reads an optional parameter that may be a JSON array of
// strings or a single space separated string.
func stringList(params capability.Params, key string) ([]string, error) {
	value, ok := params[key]
	if !ok || value == nil {
		return nil, nil
	}
	switch list := value.(type) {
	case string:
		return strings.Fields(list), nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			text, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("parameter '%s' item %d must be a string, got %T", key, i, item)
			}
			out = append(out, text)
		}
		return out, nil
	case []string:
		return list, nil
	default:
		return nil, fmt.Errorf("parameter '%s' must be a string or list of strings, got %T", key, value)
	}
}

package builtin

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"localagent/pkg/capability"
)

var outputParam = capability.Optional("output", "destination path, derived from path when absent")

// transformFile streams input through transform into output. The result is
// written beside output and renamed into place, so a failed transform never
// leaves a partial destination.
func transformFile(input, output string, transform func(dst io.Writer, src io.Reader) error) (int64, error) {
	if sameFile(input, output) {
		return 0, fmt.Errorf("output '%s' would overwrite its input", output)
	}
	source, err := os.Open(input)
	if err != nil {
		return 0, fmt.Errorf("open '%s': %w", input, err)
	}
	defer source.Close()

	temp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*")
	if err != nil {
		return 0, fmt.Errorf("create '%s': %w", output, err)
	}
	defer os.Remove(temp.Name())

	counter := &countingWriter{writer: temp}
	if err := transform(counter, source); err != nil {
		temp.Close()
		return 0, err
	}
	if err := temp.Close(); err != nil {
		return 0, fmt.Errorf("close '%s': %w", output, err)
	}
	if err := os.Rename(temp.Name(), output); err != nil {
		return 0, fmt.Errorf("rename into '%s': %w", output, err)
	}
	return counter.written, nil
}

// outputPath returns the explicit output parameter or derive(path).
func outputPath(params capability.Params, path string, derive func(string) string) (string, error) {
	output, err := params.StringOr("output", "")
	if err != nil || output != "" {
		return output, err
	}
	return derive(path), nil
}

// withSuffix appends suffix to path.
func withSuffix(suffix string) func(string) string {
	return func(path string) string { return path + suffix }
}

// withoutSuffix strips suffix from path, or appends ".out" when path does
// not carry it.
func withoutSuffix(suffixes ...string) func(string) string {
	return func(path string) string {
		for _, suffix := range suffixes {
			if trimmed, ok := strings.CutSuffix(path, suffix); ok && trimmed != "" {
				return trimmed
			}
		}
		return path + ".out"
	}
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

type countingWriter struct {
	writer  io.Writer
	written int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.writer.Write(p)
	w.written += int64(n)
	return n, err
}

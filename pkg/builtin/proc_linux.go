//go:build linux

package builtin

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// commMaxLen is the length at which the kernel truncates /proc/<pid>/comm.
const commMaxLen = 15

const procRoot = "/proc"

// listProcesses reads the process table from /proc.
func listProcesses() ([]processInfo, error) {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return nil, err
	}
	var procs []processInfo
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || !entry.IsDir() {
			continue
		}
		name, err := processName(filepath.Join(procRoot, entry.Name()))
		if err != nil {
			// The process exited between ReadDir and ReadFile.
			continue
		}
		procs = append(procs, processInfo{PID: pid, Name: name})
	}
	return procs, nil
}

// processName returns the name of the process whose /proc directory is
// dir. A comm value cut at the kernel limit is widened to the base name
// of argv[0] or of the exe link when that name extends it.
func processName(dir string) (string, error) {
	comm, err := os.ReadFile(filepath.Join(dir, "comm"))
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(string(comm))
	if len(name) < commMaxLen {
		return name, nil
	}
	if cmdline, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil {
		argv0, _, _ := bytes.Cut(cmdline, []byte{0})
		if base := filepath.Base(string(argv0)); strings.HasPrefix(base, name) {
			return base, nil
		}
	}
	if exe, err := os.Readlink(filepath.Join(dir, "exe")); err == nil {
		if base := filepath.Base(strings.TrimSuffix(exe, " (deleted)")); strings.HasPrefix(base, name) {
			return base, nil
		}
	}
	return name, nil
}

func terminate(pid int) error {
	if pid == os.Getpid() {
		return unix.EPERM
	}
	return unix.Kill(pid, unix.SIGTERM)
}

//go:build !linux

package builtin

func listProcesses() ([]processInfo, error) {
	return nil, errUnsupported
}

func terminate(int) error {
	return errUnsupported
}

//go:build !linux

package builtin

func readSystemInfo() (systemInfo, error) {
	return systemInfo{}, errUnsupported
}

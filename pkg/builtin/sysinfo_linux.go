//go:build linux

package builtin

import (
	"golang.org/x/sys/unix"
)

func readSystemInfo() (systemInfo, error) {
	var sys unix.Sysinfo_t
	if err := unix.Sysinfo(&sys); err != nil {
		return systemInfo{}, err
	}
	var fs unix.Statfs_t
	if err := unix.Statfs("/", &fs); err != nil {
		return systemInfo{}, err
	}
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return systemInfo{}, err
	}
	unit := uint64(sys.Unit)
	if unit == 0 {
		unit = 1
	}
	return systemInfo{
		Kernel:    unix.ByteSliceToString(uname.Release[:]),
		Uptime:    uint64(sys.Uptime),
		Load1:     float64(sys.Loads[0]) / 65536.0,
		TotalRAM:  uint64(sys.Totalram) * unit,
		FreeRAM:   uint64(sys.Freeram) * unit,
		DiskTotal: fs.Blocks * uint64(fs.Bsize),
		DiskFree:  fs.Bavail * uint64(fs.Bsize),
		Processes: int(sys.Procs),
	}, nil
}

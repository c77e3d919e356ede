package builtin

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"

	"localagent/pkg/capability"
)

// systemInfo is the platform-dependent part of a system check.
type systemInfo struct {
	Kernel    string
	Uptime    uint64
	Load1     float64
	TotalRAM  uint64
	FreeRAM   uint64
	DiskTotal uint64
	DiskFree  uint64
	Processes int
}

func systemCapabilities(deps Deps) []capability.Descriptor {
	return []capability.Descriptor{
		describe("system_check", "Log host, memory and disk health",
			nil,
			func(ctx context.Context, _ capability.Params) error {
				host, _ := os.Hostname()
				attrs := []any{
					"host", host,
					"os", runtime.GOOS,
					"arch", runtime.GOARCH,
					"cpus", runtime.NumCPU(),
				}
				info, err := readSystemInfo()
				if err != nil {
					deps.Logger.InfoContext(ctx, "System check", attrs...)
					return fmt.Errorf("system check: %w", err)
				}
				attrs = append(attrs,
					"kernel", info.Kernel,
					"uptime_seconds", info.Uptime,
					"load1", fmt.Sprintf("%.2f", info.Load1),
					"ram_total", humanize.IBytes(info.TotalRAM),
					"ram_free", humanize.IBytes(info.FreeRAM),
					"disk_total", humanize.IBytes(info.DiskTotal),
					"disk_free", humanize.IBytes(info.DiskFree),
					"processes", info.Processes,
				)
				deps.Logger.InfoContext(ctx, "System check", attrs...)
				return nil
			}),
	}
}

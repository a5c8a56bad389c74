package checkpoints

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostInfo describes the machine a snapshot was written on
type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelArch      string `json:"kernel_arch,omitempty"`
	CPUs            int    `json:"cpus,omitempty"`
	TotalMemory     uint64 `json:"total_memory,omitempty"`
}

// CollectHostInfo gathers host metadata. CPU and memory figures are best
// effort and left zero when unavailable.
func CollectHostInfo(ctx context.Context) (*HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read host info: %w", err)
	}

	hi := &HostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelArch:      info.KernelArch,
	}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		hi.CPUs = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		hi.TotalMemory = vm.Total
	}

	return hi, nil
}

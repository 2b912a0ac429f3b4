package metrics

import (
	"context"

	"github.com/shirou/gopsutil/v3/mem"
)

// SampleHostMemory refreshes the host memory gauge via gopsutil, grounded on
// pkg/monitoring/resource_monitor.go's periodic mem.VirtualMemory sampling.
// This is distinct from the forwarder's own memctl.Controller accounting:
// memctl tracks bytes outstanding in the pipeline, while this gauge reports
// the real host number next to it for operators.
func SampleHostMemory(ctx context.Context, m *Metrics) error {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return err
	}
	m.HostMemoryUsedPercent.Set(vm.UsedPercent)
	return nil
}

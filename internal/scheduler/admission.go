package scheduler

import (
	"sync/atomic"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sync/semaphore"
)

// ResourceSampler reports live system utilization as percentages.
type ResourceSampler interface {
	Sample() (cpuPercent, memPercent float64, err error)
}

// systemSampler samples host CPU and memory via gopsutil. cpu.Percent with a
// zero interval compares against the previous call, so sampling never blocks
// the scheduling loop.
type systemSampler struct{}

func (systemSampler) Sample() (float64, float64, error) {
	cpuPcts, err := cpu.Percent(0, false)
	if err != nil {
		return 0, 0, err
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	cpuPct := 0.0
	if len(cpuPcts) > 0 {
		cpuPct = cpuPcts[0]
	}
	return cpuPct, vm.UsedPercent, nil
}

// AdmissionController gates how many tasks may run concurrently. A task is
// admitted only when a concurrency slot is free and sampled CPU/memory
// utilization is below the configured ceilings. Denial is not an error; the
// task stays queued and is reconsidered on the next scheduling tick.
type AdmissionController struct {
	slots      *semaphore.Weighted
	max        int64
	running    atomic.Int64
	cpuCeiling float64 // Percent; 0 disables the check
	memCeiling float64 // Percent; 0 disables the check
	sampler    ResourceSampler
}

// NewAdmissionController creates a controller with maxConcurrent slots.
// A nil sampler disables resource-based gating.
func NewAdmissionController(maxConcurrent int, cpuCeiling, memCeiling float64, sampler ResourceSampler) *AdmissionController {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &AdmissionController{
		slots:      semaphore.NewWeighted(int64(maxConcurrent)),
		max:        int64(maxConcurrent),
		cpuCeiling: cpuCeiling,
		memCeiling: memCeiling,
		sampler:    sampler,
	}
}

// TryAcquire attempts to claim a run slot without blocking. It returns false
// when all slots are taken or when resource utilization is above a ceiling.
func (a *AdmissionController) TryAcquire() bool {
	if !a.resourcesAvailable() {
		return false
	}
	if !a.slots.TryAcquire(1) {
		return false
	}
	a.running.Add(1)
	return true
}

// Release returns a previously acquired run slot.
func (a *AdmissionController) Release() {
	a.running.Add(-1)
	a.slots.Release(1)
}

// Running returns the number of currently held slots.
func (a *AdmissionController) Running() int {
	return int(a.running.Load())
}

// MaxConcurrent returns the configured slot count.
func (a *AdmissionController) MaxConcurrent() int {
	return int(a.max)
}

func (a *AdmissionController) resourcesAvailable() bool {
	if a.sampler == nil || (a.cpuCeiling <= 0 && a.memCeiling <= 0) {
		return true
	}
	cpuPct, memPct, err := a.sampler.Sample()
	if err != nil {
		// A failed sample never wedges the scheduler; fall back to
		// concurrency-only gating.
		return true
	}
	if a.cpuCeiling > 0 && cpuPct > a.cpuCeiling {
		return false
	}
	if a.memCeiling > 0 && memPct > a.memCeiling {
		return false
	}
	return true
}

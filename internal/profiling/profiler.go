// Package profiling writes pprof profiles for slow index or search
// runs. Profiles are opt-in via CLI flags.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

// Profiler manages profile files for one command invocation.
type Profiler struct {
	cpuFile *os.File
}

// NewProfiler creates an idle Profiler.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// StartCPU begins CPU profiling into path. The returned cleanup stops
// profiling and closes the file; call it exactly once.
func (p *Profiler) StartCPU(path string) (cleanup func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cpu profile %s: %w", path, err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}
	p.cpuFile = f

	return func() {
		pprof.StopCPUProfile()
		_ = p.cpuFile.Close()
		p.cpuFile = nil
	}, nil
}

// WriteHeap writes a point-in-time heap profile to path.
func (p *Profiler) WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	// Collect first so the snapshot reflects live objects.
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}
	return nil
}

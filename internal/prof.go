// Package internal holds helpers shared by the flisthub binaries and tests
package internal

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"go.uber.org/zap"
)

// Profiler collects runtime profiles for the duration of a command
type Profiler struct {
	cpu  *os.File
	heap string
	l    *zap.Logger
}

// StartProfiler starts CPU profiling to cpuPath, and arranges for a heap profile
// to be written to heapPath when stopped. Empty paths disable the corresponding profile.
func StartProfiler(cpuPath, heapPath string, l *zap.Logger) (*Profiler, error) {
	if l == nil {
		l = zap.NewNop()
	}
	p := &Profiler{heap: heapPath, l: l}
	if cpuPath == "" {
		return p, nil
	}

	f, err := os.Create(cpuPath)
	if err != nil {
		return nil, fmt.Errorf("creating cpu profile: %w", err)
	}
	if err = pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("starting cpu profile: %w", err)
	}
	p.cpu = f
	return p, nil
}

// Stop profiling, writing out pending profiles. Stop may be called several times.
func (p *Profiler) Stop() error {
	if p == nil {
		return nil
	}
	if p.cpu != nil {
		pprof.StopCPUProfile()
		err := p.cpu.Close()
		p.l.Debug("cpu profile written", zap.String("path", p.cpu.Name()), zap.Error(err))
		p.cpu = nil
		if err != nil {
			return err
		}
	}
	if p.heap == "" {
		return nil
	}

	heap := p.heap
	p.heap = ""
	f, err := os.Create(heap)
	if err != nil {
		return fmt.Errorf("creating heap profile: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	runtime.GC() // up-to-date statistics
	mstats := new(runtime.MemStats)
	runtime.ReadMemStats(mstats)
	p.l.Debug("heap profile",
		zap.Uint64("MiB for heap (un-GC)", mstats.Alloc/1024/1024),
		zap.Uint64("MiB for heap (max ever)", mstats.HeapSys/1024/1024),
		zap.Int("num go routines", runtime.NumGoroutine()),
	)
	return pprof.Lookup("heap").WriteTo(f, 0)
}

// Package prof backs the CLI's profiling flags with the runtime
// profilers.
package prof

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

// CPU starts a CPU profile writing to path and returns the function
// that stops it and closes the file. Only one CPU profile can run at a
// time.
func CPU(path string) (stop func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("cpuprofile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("cpuprofile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}

// Heap runs a garbage collection and writes the heap profile to path.
func Heap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("memprofile: %w", err)
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("memprofile: %w", err)
	}
	return f.Close()
}

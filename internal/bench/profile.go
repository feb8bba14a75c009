package bench

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
)

// Profiles captures CPU, mutex, and block profiles around a scenario.
// Mutex and block sampling are raised for the capture window and
// restored on Stop, since both cost something to keep on.
type Profiles struct {
	dir  string
	name string
	cpu  *os.File

	prevMutexFraction int
}

// StartProfiles begins a capture. Files land in dir as
// <name>.cpu.pprof, <name>.mutex.pprof, and <name>.block.pprof.
func StartProfiles(dir, name string) (*Profiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("profile dir: %w", err)
	}
	cpu, err := os.Create(filepath.Join(dir, name+".cpu.pprof"))
	if err != nil {
		return nil, fmt.Errorf("cpu profile: %w", err)
	}
	if err := pprof.StartCPUProfile(cpu); err != nil {
		cpu.Close()
		return nil, fmt.Errorf("cpu profile: %w", err)
	}
	p := &Profiles{dir: dir, name: name, cpu: cpu}
	p.prevMutexFraction = runtime.SetMutexProfileFraction(1)
	runtime.SetBlockProfileRate(1)
	return p, nil
}

// Stop ends the capture and writes the mutex and block profiles.
func (p *Profiles) Stop() error {
	pprof.StopCPUProfile()
	runtime.SetMutexProfileFraction(p.prevMutexFraction)
	runtime.SetBlockProfileRate(0)
	if err := p.cpu.Close(); err != nil {
		return fmt.Errorf("cpu profile: %w", err)
	}
	for _, profile := range []string{"mutex", "block"} {
		if err := p.write(profile); err != nil {
			return err
		}
	}
	return nil
}

func (p *Profiles) write(profile string) error {
	prof := pprof.Lookup(profile)
	if prof == nil {
		return fmt.Errorf("no %s profile", profile)
	}
	f, err := os.Create(filepath.Join(p.dir, p.name+"."+profile+".pprof"))
	if err != nil {
		return fmt.Errorf("%s profile: %w", profile, err)
	}
	defer f.Close()
	if err := prof.WriteTo(f, 0); err != nil {
		return fmt.Errorf("%s profile: %w", profile, err)
	}
	return nil
}

package selfmon

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/jpalmerr/watchboard"
	"github.com/jpalmerr/watchboard/event"
)

// Version is reported by the Version static. The CLI sets it at link time.
var Version = "dev"

var started = time.Now()

// Runtime owns the process-wide statics.
type Runtime struct{}

// Sampler holds the last memory statistics read from the runtime.
type Sampler struct {
	HeapAlloc  uint64          `monitor:"label=Heap,processor=Bytes,group=Memory,order=1"`
	Sys        uint64          `monitor:"label=System,processor=Bytes,group=Memory,order=2"`
	Objects    uint64          `monitor:"label=Live objects,group=Memory,order=3"`
	NumGC      uint32          `monitor:"label=GC cycles,event=Collected,group=GC,order=1"`
	PauseTotal time.Duration   `monitor:"label=GC pause total,group=GC,order=2"`
	Pauses     []time.Duration `monitor:"label=Recent pauses,processor=Pause,flags=index,group=GC,order=3"`

	// Collected fires when a sample observes a new GC cycle.
	Collected event.Event[uint32]
}

// Sample reads runtime.MemStats. It raises Collected when the GC count
// changed since the previous sample.
func (s *Sampler) Sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	s.HeapAlloc = ms.HeapAlloc
	s.Sys = ms.Sys
	s.Objects = ms.Mallocs - ms.Frees
	s.PauseTotal = time.Duration(ms.PauseTotalNs)

	// the last few pauses, newest first
	n := min(int(ms.NumGC), 4)
	s.Pauses = s.Pauses[:0]
	for i := 0; i < n; i++ {
		idx := (int(ms.NumGC) - 1 - i + len(ms.PauseNs)) % len(ms.PauseNs)
		s.Pauses = append(s.Pauses, time.Duration(ms.PauseNs[idx]))
	}

	if ms.NumGC != s.NumGC {
		s.NumGC = ms.NumGC
		s.Collected.Raise(s, ms.NumGC)
	}
}

// Bytes renders a byte count with a binary unit.
func (s *Sampler) Bytes(n uint64) string {
	return formatBytes(n)
}

// Pause renders one GC pause.
func (s *Sampler) Pause(d time.Duration) string {
	return d.Round(time.Microsecond).String()
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func goroutines() int { return runtime.NumGoroutine() }

func gomaxprocs() int { return runtime.GOMAXPROCS(0) }

func setGOMAXPROCS(n int) {
	if n > 0 {
		runtime.GOMAXPROCS(n)
	}
}

func uptime() time.Duration { return time.Since(started).Round(time.Second) }

// build returns the Go version and main module path of the binary.
func build() (goVersion, module string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return runtime.Version(), ""
	}
	return info.GoVersion, info.Main.Path
}

// Options returns the engine options that monitor the current process.
// sampler is registered as a target and refreshed after every pass.
func Options(sampler *Sampler) ([]watchboard.Option, error) {
	type decl struct {
		name string
		ref  any
		opts []watchboard.StaticOption
	}
	decls := []decl{
		{"Version", &Version, []watchboard.StaticOption{watchboard.WithTag("flags=readonly"), watchboard.WithGroup("Process"), watchboard.WithOrder(1)}},
		{"Uptime", uptime, []watchboard.StaticOption{watchboard.WithGroup("Process"), watchboard.WithOrder(2)}},
		{"Build", build, []watchboard.StaticOption{watchboard.WithGroup("Process"), watchboard.WithOrder(3)}},
		{"Goroutines", goroutines, []watchboard.StaticOption{watchboard.WithGroup("Scheduler"), watchboard.WithOrder(1)}},
		{"GOMAXPROCS", gomaxprocs, []watchboard.StaticOption{watchboard.WithGroup("Scheduler"), watchboard.WithOrder(2), watchboard.WithSetter(setGOMAXPROCS)}},
		{"NumCPU", runtime.NumCPU, []watchboard.StaticOption{watchboard.WithLabel("CPUs"), watchboard.WithGroup("Scheduler"), watchboard.WithOrder(3)}},
	}

	statics := make([]watchboard.Static, 0, len(decls))
	for _, d := range decls {
		s, err := watchboard.NewStatic(d.name, d.ref, d.opts...)
		if err != nil {
			return nil, err
		}
		statics = append(statics, s)
	}

	sampler.Sample()
	return []watchboard.Option{
		watchboard.WithStatic[Runtime](statics...),
		watchboard.WithType[Sampler](),
		watchboard.WithTarget(sampler),
		watchboard.WithValidator(sampler.Sample),
	}, nil
}

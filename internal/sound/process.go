package sound

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type processEntry struct {
	owner    string
	src      *Source
	frequent bool
}

// Process ticks every registered source at a fixed rate. Sources that do not
// need frequent updates are ticked on every fullCycle-th tick only.
type Process struct {
	limiter   *rate.Limiter
	fullCycle uint64

	mu      sync.Mutex
	entries []processEntry
	ticks   uint64
	sweep   func()
}

// NewProcess creates a process ticking every interval.
func NewProcess(interval time.Duration, fullCycle int) *Process {
	if fullCycle < 1 {
		fullCycle = 1
	}
	return &Process{
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		fullCycle: uint64(fullCycle),
	}
}

// NewProcessFromConfig creates a process using the tick settings of cfg.
func NewProcessFromConfig(cfg Config) *Process {
	return NewProcess(cfg.TickInterval, cfg.FullUpdateCycle)
}

// SetSweep sets a function run after the sources on every full-cycle tick.
func (p *Process) SetSweep(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweep = fn
}

// Register adds a source owned by owner.
func (p *Process) Register(owner string, src *Source, frequent bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, processEntry{owner: owner, src: src, frequent: frequent})
}

// Unregister removes and closes every source of owner. It returns how many
// sources were removed.
func (p *Process) Unregister(owner string) int {
	p.mu.Lock()
	var removed []*Source
	kept := p.entries[:0]
	for _, e := range p.entries {
		if e.owner == owner {
			removed = append(removed, e.src)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(p.entries); i++ {
		p.entries[i] = processEntry{}
	}
	p.entries = kept
	p.mu.Unlock()

	for _, src := range removed {
		src.Close()
	}
	return len(removed)
}

// Len returns the number of registered sources.
func (p *Process) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Tick updates the sources due this tick. A panic in a source update is
// recovered and returned as an error wrapping ErrTickPanic.
func (p *Process) Tick() (err error) {
	p.mu.Lock()
	p.ticks++
	full := p.ticks%p.fullCycle == 0
	due := make([]*Source, 0, len(p.entries))
	for _, e := range p.entries {
		if e.frequent || full {
			due = append(due, e.src)
		}
	}
	var sweep func()
	if full {
		sweep = p.sweep
	}
	p.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTickPanic, r)
			logger.Error("sound tick panicked", "err", r, "stack", string(debug.Stack()))
		}
	}()

	for _, src := range due {
		src.Update()
	}
	if sweep != nil {
		sweep()
	}
	return nil
}

// Run ticks until ctx is done or a tick fails.
func (p *Process) Run(ctx context.Context) error {
	for {
		// Wait only fails once ctx is done or its deadline falls before
		// the next tick.
		if err := p.limiter.Wait(ctx); err != nil {
			return nil
		}
		if err := p.Tick(); err != nil {
			return err
		}
	}
}

// Close unregisters and closes every source.
func (p *Process) Close() {
	p.mu.Lock()
	entries := p.entries
	p.entries = nil
	p.mu.Unlock()

	for _, e := range entries {
		e.src.Close()
	}
}

// Package clock provides the time source behind report generation and
// ingestion timestamp validation.
package clock

import (
	"sync"
	"time"

	"github.com/revlens/revlens/ports"
)

// Real reads the system clock.
type Real struct{}

var _ ports.Clock = Real{}

func (Real) Now() time.Time {
	return time.Now()
}

// Fake is a settable clock so tests can pin report generation dates and
// age out ingestion timestamps deterministically.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
}

var _ ports.Clock = (*Fake)(nil)

// NewFake creates a fake clock pinned to t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Set pins the clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

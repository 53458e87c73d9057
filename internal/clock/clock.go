// Package clock abstracts the wall clock so SLA deadlines, reopen windows
// and sweeps can be evaluated against a controlled instant in tests.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source used by services and workers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers ticks on C until Stop is called.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

func (t *Ticker) Stop() { t.stop() }

// Real returns a Clock backed by the time package. Now is reported in UTC.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func (realClock) NewTicker(d time.Duration) *Ticker {
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stop: ticker.Stop}
}

// Fake is a manually driven Clock. Time stands still until Set or Advance.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
}

// NewFake returns a Fake positioned at initial.
func NewFake(initial time.Time) *Fake {
	return &Fake{current: initial}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Set moves the clock to t. Tickers are not fired by Set.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
	for _, tk := range f.tickers {
		tk.next = t.Add(tk.interval)
	}
}

// Advance moves the clock forward by d and fires every ticker whose next
// tick falls inside the advanced span. Ticks are dropped when the
// receiver has not drained the previous one.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
	for _, tk := range f.tickers {
		if tk.stopped {
			continue
		}
		for !tk.next.After(f.current) {
			select {
			case tk.ch <- tk.next:
			default:
			}
			tk.next = tk.next.Add(tk.interval)
		}
	}
}

func (f *Fake) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tk := &fakeTicker{
		ch:       make(chan time.Time, 1),
		interval: d,
		next:     f.current.Add(d),
	}
	f.tickers = append(f.tickers, tk)
	return &Ticker{
		C: tk.ch,
		stop: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			tk.stopped = true
		},
	}
}

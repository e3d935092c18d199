// Package progress tracks how many dataset retrievals have settled.
package progress

import (
	"math"
	"sync"
)

// Func receives the new percentage after each settle.
type Func func(percent int)

// Tracker is a monotonic settled-count over a fixed total.
type Tracker struct {
	notify  sync.Mutex // serializes report+delivery so subscribers never see a value go down
	mu      sync.Mutex
	total   int
	settled int
	subs    []Func
}

// NewTracker creates a tracker expecting total settles.
func NewTracker(total int) *Tracker {
	if total < 0 {
		total = 0
	}
	return &Tracker{total: total}
}

// Report records one settle and notifies subscribers with the new percentage.
// Reports past the total are ignored so the count never exceeds it.
// Subscribers must not call Report.
func (t *Tracker) Report() int {
	t.notify.Lock()
	defer t.notify.Unlock()

	t.mu.Lock()
	if t.settled < t.total {
		t.settled++
	}
	pct := t.percentLocked()
	subs := append([]Func(nil), t.subs...)
	t.mu.Unlock()

	for _, fn := range subs {
		fn(pct)
	}
	return pct
}

// Percent returns round(settled/total*100). An empty total reads as 100.
func (t *Tracker) Percent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percentLocked()
}

func (t *Tracker) percentLocked() int {
	if t.total == 0 {
		return 100
	}
	return int(math.Round(float64(t.settled) / float64(t.total) * 100))
}

// Counts returns settled and total.
func (t *Tracker) Counts() (settled, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settled, t.total
}

// Done reports whether every expected settle has been observed.
func (t *Tracker) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settled == t.total
}

// Subscribe registers fn for future reports. Late subscribers only see
// later values; read Percent for the current one.
func (t *Tracker) Subscribe(fn Func) {
	t.mu.Lock()
	t.subs = append(t.subs, fn)
	t.mu.Unlock()
}

package clock

import (
	"sync"
	"time"
)

// Virtual is a Clock a test fully controls: Now() only moves when
// Advance is called, and every outstanding Ticker is sent a tick for
// each period elapsed as of the new time. A ticker's channel holds one
// tick; ticks that find it full are dropped, as with time.Ticker.
type Virtual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*virtualTicker
}

// NewVirtual creates a virtual clock starting at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Advance moves simulated time forward by d, delivering one tick to
// every registered ticker whose period has elapsed. Ticks are sent on
// a buffered channel so Advance never blocks on a slow/absent reader.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = v.now.Add(d)
	for _, t := range v.tickers {
		if t.stopped {
			continue
		}
		t.elapsed += d
		for t.elapsed >= t.period {
			t.elapsed -= t.period
			select {
			case t.ch <- v.now:
			default:
			}
		}
	}
}

func (v *Virtual) NewTicker(d time.Duration) Ticker {
	v.mu.Lock()
	defer v.mu.Unlock()
	t := &virtualTicker{period: d, ch: make(chan time.Time, 1), parent: v}
	v.tickers = append(v.tickers, t)
	return t
}

type virtualTicker struct {
	period  time.Duration
	elapsed time.Duration
	ch      chan time.Time
	stopped bool
	parent  *Virtual
}

func (t *virtualTicker) C() <-chan time.Time { return t.ch }

func (t *virtualTicker) Stop() {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	t.stopped = true
}

package softphone

import (
	"sync"
	"time"
)

// Clock schedules callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }

// poller runs fn every interval until fn reports done or Stop is called.
// Ticks never overlap: the next one is armed after fn returns.
type poller struct {
	clock Clock
	every time.Duration
	fn    func() (done bool)

	mu      sync.Mutex
	timer   Timer
	stopped bool
}

func startPoller(clock Clock, every time.Duration, fn func() bool) *poller {
	p := &poller{clock: clock, every: every, fn: fn}
	p.arm()
	return p
}

func (p *poller) arm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.timer = p.clock.AfterFunc(p.every, p.tick)
}

func (p *poller) tick() {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return
	}
	if p.fn() {
		p.Stop()
		return
	}
	p.arm()
}

func (p *poller) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
	}
}

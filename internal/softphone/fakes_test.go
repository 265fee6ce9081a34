package softphone

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"voice-ivr/internal/calls"
)

// --- clock ---

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now + d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance fires due timers in deadline order, including timers armed by
// callbacks that fall inside the window. Callbacks run without the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var live []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired {
				live = append(live, t)
			}
		}
		c.timers = live
		sort.SliceStable(live, func(i, j int) bool { return live[i].at < live[j].at })
		if len(live) == 0 || live[0].at > target {
			c.now = target
			c.mu.Unlock()
			return
		}
		next := live[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.fn()
	}
}

func (c *fakeClock) armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// --- calls ---

type fakeCall struct {
	mu        sync.Mutex
	status    calls.ClientStatus
	statusErr error
	params    map[string]string

	subs           map[int]func(Event)
	nextSub        int
	subscribeCalls int

	acceptErr    error
	accepted     int
	rejected     int
	disconnected int
	hungUp       int
}

func newFakeCall(status calls.ClientStatus) *fakeCall {
	return &fakeCall{status: status, subs: make(map[int]func(Event))}
}

func (c *fakeCall) Status() (calls.ClientStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.statusErr
}

func (c *fakeCall) Parameters() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

func (c *fakeCall) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subscribeCalls++
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *fakeCall) setStatus(st calls.ClientStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = st
}

func (c *fakeCall) invalidate(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusErr = err
}

func (c *fakeCall) subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *fakeCall) emit(kind EventKind) {
	c.mu.Lock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(Event{Kind: kind})
	}
}

func (c *fakeCall) counts() (accepted, rejected, disconnected, hungUp int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accepted, c.rejected, c.disconnected, c.hungUp
}

// fullCall supports every optional capability.
type fullCall struct{ *fakeCall }

func (c fullCall) Accept(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accepted++
	return c.acceptErr
}

func (c fullCall) Reject() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejected++
	return nil
}

func (c fullCall) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected++
	return nil
}

func (c fullCall) Hangup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hungUp++
	return nil
}

// hangupCall only knows Hangup.
type hangupCall struct{ *fakeCall }

func (c hangupCall) Hangup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hungUp++
	return nil
}

// heldCall dispatches events while holding its own mutex and takes the same
// mutex to unsubscribe, like SDKs that serialize listeners internally.
type heldCall struct {
	mu   sync.Mutex
	subs map[int]func(Event)
	next int
}

func newHeldCall() *heldCall {
	return &heldCall{subs: make(map[int]func(Event))}
}

func (c *heldCall) Status() (calls.ClientStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return calls.ClientStatusOpen, nil
}

func (c *heldCall) Parameters() map[string]string { return nil }

func (c *heldCall) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *heldCall) Disconnect() error { return nil }

func (c *heldCall) emitHolding(kind EventKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, fn := range c.subs {
		fn(Event{Kind: kind, Call: c})
	}
}

// lockWatch counts provider calls made while the session lock is held.
type lockWatch struct {
	s          *Session
	checks     atomic.Int32
	violations atomic.Int32
}

func (w *lockWatch) check() {
	if w.s == nil {
		return
	}
	w.checks.Add(1)
	if w.s.mu.TryLock() {
		w.s.mu.Unlock()
		return
	}
	w.violations.Add(1)
}

func (w *lockWatch) wrap(unsub func()) func() {
	return func() {
		w.check()
		unsub()
	}
}

// watchedCall reports every method invocation to a lockWatch.
type watchedCall struct {
	fullCall
	w *lockWatch
}

func newWatchedCall(w *lockWatch, status calls.ClientStatus) watchedCall {
	return watchedCall{fullCall: fullCall{newFakeCall(status)}, w: w}
}

func (c watchedCall) Status() (calls.ClientStatus, error) {
	c.w.check()
	return c.fullCall.Status()
}

func (c watchedCall) Parameters() map[string]string {
	c.w.check()
	return c.fullCall.Parameters()
}

func (c watchedCall) Subscribe(fn func(Event)) func() {
	c.w.check()
	return c.w.wrap(c.fullCall.Subscribe(fn))
}

func (c watchedCall) Accept(ctx context.Context) error {
	c.w.check()
	return c.fullCall.Accept(ctx)
}

func (c watchedCall) Reject() error {
	c.w.check()
	return c.fullCall.Reject()
}

func (c watchedCall) Disconnect() error {
	c.w.check()
	return c.fullCall.Disconnect()
}

// --- devices ---

type fakeDevice struct {
	mu      sync.Mutex
	subs    map[int]func(Event)
	nextSub int

	registerErr   error
	registered    int
	connectResult Call
	connectErr    error
	connectCalls  []map[string]string
	destroyed     bool
	disconnectAll int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{subs: make(map[int]func(Event))}
}

func (d *fakeDevice) Register(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registered++
	return d.registerErr
}

func (d *fakeDevice) Connect(ctx context.Context, params map[string]string) (Call, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectCalls = append(d.connectCalls, params)
	return d.connectResult, d.connectErr
}

func (d *fakeDevice) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = true
}

func (d *fakeDevice) Subscribe(fn func(Event)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, id)
	}
}

func (d *fakeDevice) emit(e Event) {
	d.mu.Lock()
	fns := make([]func(Event), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

func (d *fakeDevice) connects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.connectCalls)
}

type bulkDevice struct{ *fakeDevice }

func (d bulkDevice) DisconnectAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnectAll++
	return nil
}

type listDevice struct {
	*fakeDevice
	calls []Call
}

func (d listDevice) Calls() []Call { return d.calls }

// watchedDevice reports every method invocation to a lockWatch.
type watchedDevice struct {
	*fakeDevice
	w *lockWatch
}

func (d watchedDevice) Register(ctx context.Context) error {
	d.w.check()
	return d.fakeDevice.Register(ctx)
}

func (d watchedDevice) Connect(ctx context.Context, params map[string]string) (Call, error) {
	d.w.check()
	return d.fakeDevice.Connect(ctx, params)
}

func (d watchedDevice) Destroy() {
	d.w.check()
	d.fakeDevice.Destroy()
}

func (d watchedDevice) Subscribe(fn func(Event)) func() {
	d.w.check()
	return d.w.wrap(d.fakeDevice.Subscribe(fn))
}

// --- backend ---

type fakeBackend struct {
	mu         sync.Mutex
	tokenErr   error
	callErr    error
	identities []string
	requested  []string
}

func (b *fakeBackend) Token(ctx context.Context, identity string) (TokenResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.identities = append(b.identities, identity)
	if b.tokenErr != nil {
		return TokenResult{}, b.tokenErr
	}
	return TokenResult{Token: "tok-" + identity, Identity: identity}, nil
}

func (b *fakeBackend) RequestCall(ctx context.Context, to string) (CallResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requested = append(b.requested, to)
	if b.callErr != nil {
		return CallResult{}, b.callErr
	}
	return CallResult{CallSID: "CA1", Status: "queued", Direction: "outbound-api"}, nil
}

func (b *fakeBackend) requests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requested)
}

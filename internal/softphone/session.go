package softphone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"voice-ivr/internal/calls"
)

var (
	ErrDeviceNotReady      = errors.New("softphone: device not ready")
	ErrCallActive          = errors.New("softphone: a call is already active")
	ErrEmptyNumber         = errors.New("softphone: destination number is empty")
	ErrNoIncomingCall      = errors.New("softphone: no incoming call")
	ErrAlreadyInitialized  = errors.New("softphone: session already initialized")
	ErrUnsupported         = errors.New("softphone: capability not supported by call handle")
	ErrNoDisconnectOptions = errors.New("softphone: no disconnect capability available")
)

const (
	AutoRejectAfter      = 30 * time.Second
	AcceptSettle         = 100 * time.Millisecond
	AttachPollInterval   = time.Second
	LivenessPollInterval = 500 * time.Millisecond
)

// CallState is the local, non-authoritative label shown to the user.
type CallState string

const (
	StateIdle      CallState = ""
	StateRinging   CallState = "ringing"
	StateConnected CallState = "connected"
	StateIncoming  CallState = "incoming"
)

// Snapshot is a read-only copy of session state for rendering.
type Snapshot struct {
	Ready            bool
	DeviceError      string
	State            CallState
	HasActiveCall    bool
	HasIncomingCall  bool
	IncomingCallerID string
}

type Options struct {
	// Identity is the client identity the token is minted for.
	Identity string
	Backend  Backend
	Factory  DeviceFactory

	Clock  Clock
	Logger *slog.Logger
	// OnChange, when set, is called after every state transition. It runs
	// outside the session lock and may call Snapshot.
	OnChange func(Snapshot)
}

// pendingCall is an inbound handle that has not been accepted or rejected.
type pendingCall struct {
	timer Timer
	unsub func()
}

// Session owns one Device and at most one active Call handle.
// Device and call callbacks may arrive on any goroutine. The session lock is
// never held while calling into a Device or Call.
type Session struct {
	opts  Options
	clock Clock
	log   *slog.Logger

	mu          sync.Mutex
	device      Device
	unsubDevice func()
	ready       bool
	deviceErr   error

	active      Call
	activeState CallState
	// gen changes every time the active slot is taken or cleared, so a late
	// Subscribe result can tell whether it still belongs to the current call.
	gen         uint64
	unsubActive func()
	attachPoll  *poller
	livePoll    *poller
	// awaitingConnect is set while an outbound call waits for EventConnect.
	awaitingConnect bool
	// settling holds an accepted inbound handle until AcceptSettle elapses
	// and it becomes the active call.
	settling Call

	incoming Call
	callerID string
	pending  map[Call]*pendingCall
}

func New(opts Options) *Session {
	s := &Session{
		opts:    opts,
		clock:   opts.Clock,
		log:     opts.Logger,
		pending: make(map[Call]*pendingCall),
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "softphone", "identity", opts.Identity)
	return s
}

// release runs unsubscribe funcs collected under the lock.
func release(fns ...func()) {
	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
}

// Initialize fetches a token, builds the Device, subscribes to its events
// and registers it. Readiness is reported later via EventRegistered.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.device != nil {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.deviceErr = nil
	s.mu.Unlock()

	if s.opts.Backend == nil || s.opts.Factory == nil {
		return s.initFailed(errors.New("softphone: backend and device factory are required"))
	}

	tok, err := s.opts.Backend.Token(ctx, s.opts.Identity)
	if err != nil {
		return s.initFailed(fmt.Errorf("softphone: fetch token: %w", err))
	}
	dev, err := s.opts.Factory(tok.Token)
	if err != nil {
		return s.initFailed(fmt.Errorf("softphone: build device: %w", err))
	}

	s.mu.Lock()
	if s.device != nil {
		s.mu.Unlock()
		dev.Destroy()
		return ErrAlreadyInitialized
	}
	s.device = dev
	s.mu.Unlock()

	unsub := dev.Subscribe(s.onDeviceEvent)
	s.mu.Lock()
	owned := s.device == dev
	if owned {
		s.unsubDevice = unsub
	}
	s.mu.Unlock()
	if !owned {
		release(unsub)
		return errors.New("softphone: session closed during initialize")
	}

	if err := dev.Register(ctx); err != nil {
		return s.initFailed(fmt.Errorf("softphone: register: %w", err))
	}
	s.log.Info("device registering")
	return nil
}

func (s *Session) initFailed(err error) error {
	s.mu.Lock()
	s.deviceErr = err
	s.ready = false
	s.mu.Unlock()
	s.log.Error("device init failed", "err", err)
	s.changed()
	return err
}

// Close destroys the Device and stops every timer and poll.
func (s *Session) Close() {
	s.mu.Lock()
	dev := s.device
	unsubs := []func(){s.unsubDevice, s.clearActiveLocked()}
	s.unsubDevice = nil
	for c := range s.pending {
		unsubs = append(unsubs, s.resolvePendingLocked(c))
	}
	s.clearIncomingLocked()
	s.device = nil
	s.ready = false
	s.mu.Unlock()

	release(unsubs...)
	if dev != nil {
		dev.Destroy()
	}
	s.changed()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Ready:            s.ready,
		State:            s.stateLocked(),
		HasActiveCall:    s.active != nil,
		HasIncomingCall:  s.incoming != nil,
		IncomingCallerID: s.callerID,
	}
	if s.deviceErr != nil {
		snap.DeviceError = s.deviceErr.Error()
	}
	return snap
}

// stateLocked derives the label: a ringing inbound call wins, then whatever
// occupies the call slot, otherwise idle.
func (s *Session) stateLocked() CallState {
	switch {
	case s.incoming != nil:
		return StateIncoming
	case s.active != nil || s.awaitingConnect || s.settling != nil:
		return s.activeState
	}
	return StateIdle
}

func (s *Session) changed() {
	if s.opts.OnChange != nil {
		s.opts.OnChange(s.Snapshot())
	}
}

// --- Device events ---

func (s *Session) onDeviceEvent(e Event) {
	switch e.Kind {
	case EventRegistered:
		s.mu.Lock()
		s.ready = true
		s.deviceErr = nil
		s.mu.Unlock()
		s.log.Info("device registered")
		s.changed()
	case EventError:
		s.mu.Lock()
		s.ready = false
		s.deviceErr = e.Err
		if s.deviceErr == nil {
			s.deviceErr = errors.New("softphone: device error")
		}
		s.mu.Unlock()
		s.log.Error("device error", "err", e.Err)
		s.changed()
	case EventIncoming:
		s.deliverIncoming(e.Call)
	case EventConnect:
		s.attach(e.Call)
	case EventDisconnect:
		if e.Call != nil {
			s.reconcile(e.Call, true)
			return
		}
		s.mu.Lock()
		unsub := s.clearActiveLocked()
		s.mu.Unlock()
		release(unsub)
		s.changed()
	}
}

// --- Incoming calls ---

func (s *Session) deliverIncoming(c Call) {
	if c == nil {
		return
	}
	caller := callerID(c.Parameters())

	s.mu.Lock()
	if _, ok := s.pending[c]; ok {
		s.mu.Unlock()
		return
	}
	p := &pendingCall{}
	s.pending[c] = p
	s.incoming = c
	s.callerID = caller
	p.timer = s.clock.AfterFunc(AutoRejectAfter, func() { s.autoReject(c) })
	s.mu.Unlock()

	unsub := c.Subscribe(func(e Event) { s.onIncomingEvent(c, e) })
	s.mu.Lock()
	if s.pending[c] == p {
		p.unsub, unsub = unsub, nil
	}
	s.mu.Unlock()
	// Resolved while subscribing.
	release(unsub)

	s.log.Info("incoming call", "from", caller)
	s.changed()
}

func callerID(params map[string]string) string {
	for _, k := range []string{"From", "Caller"} {
		if v := strings.TrimSpace(params[k]); v != "" {
			return v
		}
	}
	return "Unknown"
}

// onIncomingEvent handles events for an inbound handle before it is accepted.
func (s *Session) onIncomingEvent(c Call, e Event) {
	if !e.Kind.Terminal() {
		return
	}
	s.mu.Lock()
	if _, ok := s.pending[c]; !ok {
		s.mu.Unlock()
		return
	}
	unsub := s.resolvePendingLocked(c)
	if s.incoming == c {
		s.clearIncomingLocked()
	}
	s.mu.Unlock()
	release(unsub)

	s.log.Info("incoming call ended before answer", "event", e.Kind)
	s.changed()
}

func (s *Session) autoReject(c Call) {
	s.mu.Lock()
	if _, ok := s.pending[c]; !ok {
		s.mu.Unlock()
		return
	}
	unsub := s.resolvePendingLocked(c)
	if s.incoming == c {
		s.clearIncomingLocked()
	}
	s.mu.Unlock()
	release(unsub)

	s.log.Info("incoming call timed out, rejecting", "after", AutoRejectAfter)
	s.rejectBestEffort(c)
	s.changed()
}

// AcceptIncoming answers the pending inbound call. The handle holds the call
// slot from here on; it becomes the active call after AcceptSettle.
func (s *Session) AcceptIncoming(ctx context.Context) error {
	s.mu.Lock()
	c := s.incoming
	switch {
	case c == nil:
		s.mu.Unlock()
		return ErrNoIncomingCall
	case s.device == nil || !s.ready:
		s.mu.Unlock()
		return ErrDeviceNotReady
	case s.active != nil || s.awaitingConnect || s.settling != nil:
		s.mu.Unlock()
		return ErrCallActive
	}
	unsub := s.resolvePendingLocked(c)
	s.settling = c
	s.activeState = StateRinging
	s.mu.Unlock()
	release(unsub)

	acceptor, ok := c.(Acceptor)
	err := ErrUnsupported
	if ok {
		err = acceptor.Accept(ctx)
	}
	if err != nil {
		s.mu.Lock()
		if s.settling == c {
			s.settling = nil
		}
		if s.incoming == c {
			s.clearIncomingLocked()
		}
		s.mu.Unlock()
		s.log.Error("accept failed", "err", err)
		s.changed()
		return fmt.Errorf("softphone: accept: %w", err)
	}

	s.log.Info("incoming call accepted")
	s.clock.AfterFunc(AcceptSettle, func() { s.promote(c) })
	return nil
}

// RejectIncoming declines the pending inbound call. Reject errors are logged only.
func (s *Session) RejectIncoming() error {
	s.mu.Lock()
	c := s.incoming
	if c == nil || c == s.settling {
		s.mu.Unlock()
		return ErrNoIncomingCall
	}
	unsub := s.resolvePendingLocked(c)
	s.clearIncomingLocked()
	s.mu.Unlock()
	release(unsub)

	s.rejectBestEffort(c)
	s.changed()
	return nil
}

func (s *Session) rejectBestEffort(c Call) {
	r, ok := c.(Rejecter)
	if !ok {
		s.log.Warn("reject not supported by call handle")
		return
	}
	if err := r.Reject(); err != nil {
		s.log.Warn("reject failed", "err", err)
	}
}

// resolvePendingLocked forgets c and returns its unsubscribe func, which the
// caller runs after unlocking.
func (s *Session) resolvePendingLocked(c Call) func() {
	p, ok := s.pending[c]
	if !ok {
		return nil
	}
	delete(s.pending, c)
	if p.timer != nil {
		p.timer.Stop()
	}
	return p.unsub
}

func (s *Session) clearIncomingLocked() {
	s.incoming = nil
	s.callerID = ""
}

// --- Active call ---

// attach tracks c as the active call, subscribes to its events and starts
// both status polls. It is a no-op when c is already attached or another
// handle holds the slot.
func (s *Session) attach(c Call) {
	s.take(c, false)
}

// promote turns the settling handle c into the active call. It does nothing
// if c was hung up or the session closed during the settle window.
func (s *Session) promote(c Call) {
	s.take(c, true)
}

func (s *Session) take(c Call, settled bool) {
	if c == nil {
		return
	}
	st, err := c.Status()

	s.mu.Lock()
	if settled {
		if s.incoming == c {
			s.clearIncomingLocked()
		}
		if s.settling != c {
			s.mu.Unlock()
			s.changed()
			return
		}
		s.settling = nil
	}
	if s.active != nil || s.settling != nil {
		s.mu.Unlock()
		return
	}
	s.active = c
	s.gen++
	gen := s.gen
	s.awaitingConnect = false
	s.activeState = StateRinging
	if err == nil && st.Live() {
		s.activeState = StateConnected
	}
	s.attachPoll = startPoller(s.clock, AttachPollInterval, func() bool { return s.reconcile(c, false) })
	s.livePoll = startPoller(s.clock, LivenessPollInterval, s.checkLiveness)
	state := s.activeState
	s.mu.Unlock()

	unsub := c.Subscribe(func(e Event) { s.onCallEvent(c, e) })
	s.mu.Lock()
	if s.gen == gen {
		s.unsubActive, unsub = unsub, nil
	}
	s.mu.Unlock()
	// Cleared while subscribing.
	release(unsub)

	s.log.Info("call attached", "state", state)
	s.changed()
}

func (s *Session) onCallEvent(c Call, e Event) {
	switch {
	case e.Kind == EventAccept:
		s.mu.Lock()
		if s.active != c {
			s.mu.Unlock()
			return
		}
		s.activeState = StateConnected
		s.mu.Unlock()
		s.changed()
	case e.Kind.Terminal():
		if e.Err != nil {
			s.log.Warn("call error", "err", e.Err)
		}
		s.reconcile(c, true)
	}
}

func (s *Session) checkLiveness() bool {
	s.mu.Lock()
	c := s.active
	s.mu.Unlock()
	if c == nil {
		return true
	}
	return s.reconcile(c, false)
}

// reconcile brings local state in line with the handle. ended marks an
// observed terminal event; otherwise the handle's status decides: terminal
// or unreadable clears the active call. Stale handles are ignored, so
// repeated terminal signals for one call produce one transition.
// It reports whether polling for c should stop.
func (s *Session) reconcile(c Call, ended bool) bool {
	var (
		st  calls.ClientStatus
		err error
	)
	if !ended {
		st, err = c.Status()
	}

	s.mu.Lock()
	if s.active != c {
		s.mu.Unlock()
		return true
	}
	if !ended && err == nil && !st.Terminal() {
		flipped := st.Live() && s.activeState == StateRinging
		if flipped {
			s.activeState = StateConnected
		}
		s.mu.Unlock()
		if flipped {
			s.changed()
		}
		return false
	}
	unsub := s.clearActiveLocked()
	s.mu.Unlock()
	release(unsub)

	switch {
	case ended:
		s.log.Info("call ended")
	case err != nil:
		s.log.Info("call handle invalid, clearing", "err", err)
	default:
		s.log.Info("call ended by status", "status", st)
	}
	s.changed()
	return true
}

// clearActiveLocked empties the call slot and returns the active handle's
// unsubscribe func for the caller to run after unlocking.
func (s *Session) clearActiveLocked() func() {
	unsub := s.unsubActive
	s.unsubActive = nil
	s.attachPoll.Stop()
	s.livePoll.Stop()
	s.attachPoll, s.livePoll = nil, nil
	s.active = nil
	s.gen++
	s.awaitingConnect = false
	s.settling = nil
	s.activeState = StateIdle
	return unsub
}

// PlaceCall dials number. Guards are checked before the backend or the
// Device is contacted. The backend notification is best-effort.
func (s *Session) PlaceCall(ctx context.Context, number string) error {
	number = strings.TrimSpace(number)

	s.mu.Lock()
	dev := s.device
	switch {
	case dev == nil || !s.ready:
		s.mu.Unlock()
		return ErrDeviceNotReady
	case s.active != nil || s.awaitingConnect || s.settling != nil:
		s.mu.Unlock()
		return ErrCallActive
	case number == "":
		s.mu.Unlock()
		return ErrEmptyNumber
	}
	// Reserve the slot so a concurrent PlaceCall fails fast.
	s.awaitingConnect = true
	s.activeState = StateRinging
	s.mu.Unlock()

	if s.opts.Backend != nil {
		if res, err := s.opts.Backend.RequestCall(ctx, number); err != nil {
			s.log.Warn("backend call request failed, continuing", "to", number, "err", err)
		} else {
			s.log.Info("backend call requested", "to", number, "call_sid", res.CallSID)
		}
	}

	c, err := dev.Connect(ctx, map[string]string{"To": number})
	if err != nil {
		s.mu.Lock()
		if s.active == nil {
			s.awaitingConnect = false
		}
		s.mu.Unlock()
		s.changed()
		return fmt.Errorf("softphone: connect: %w", err)
	}
	if c != nil {
		s.attach(c)
		return nil
	}

	s.log.Info("waiting for device connect event", "to", number)
	s.changed()
	return nil
}

// Disconnect hangs up the call holding the slot, settling or active, using
// the best capability available. Local state is cleared whatever the
// outcome; the error is informational.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	c, dev, settling := s.active, s.device, s.settling
	if c == nil {
		c = settling
	}
	s.mu.Unlock()

	var (
		method string
		err    error
	)
	if c != nil {
		method, err = hangUp(dev, c)
		if err != nil {
			s.log.Warn("disconnect failed, clearing state", "method", method, "err", err)
		} else {
			s.log.Info("call disconnected", "method", method)
		}
	}

	s.mu.Lock()
	unsub := s.clearActiveLocked()
	if settling != nil && s.incoming == settling {
		s.clearIncomingLocked()
	}
	s.mu.Unlock()
	release(unsub)
	s.changed()
	return err
}

// hangUp tries handle-level capabilities first, then device-level ones.
func hangUp(dev Device, c Call) (string, error) {
	if d, ok := c.(Disconnecter); ok {
		return "call.disconnect", d.Disconnect()
	}
	if h, ok := c.(Hanger); ok {
		return "call.hangup", h.Hangup()
	}
	if r, ok := c.(Rejecter); ok {
		return "call.reject", r.Reject()
	}
	if b, ok := dev.(BulkDisconnecter); ok {
		return "device.disconnect_all", b.DisconnectAll()
	}
	if d, ok := dev.(CallDisconnecter); ok {
		return "device.disconnect_call", d.DisconnectCall(c)
	}
	if l, ok := dev.(CallLister); ok {
		var errs []error
		for _, cc := range l.Calls() {
			if d, ok := cc.(Disconnecter); ok {
				errs = append(errs, d.Disconnect())
			}
		}
		return "device.calls", errors.Join(errs...)
	}
	return "", ErrNoDisconnectOptions
}

package softphone

import (
	"context"

	"voice-ivr/internal/calls"
)

// EventKind is the fixed set of notifications a Device or Call emits.
type EventKind string

const (
	EventRegistered EventKind = "registered"
	EventError      EventKind = "error"
	EventIncoming   EventKind = "incoming"
	EventConnect    EventKind = "connect"
	EventDisconnect EventKind = "disconnect"
	EventAccept     EventKind = "accept"
	EventCancel     EventKind = "cancel"
	EventReject     EventKind = "reject"
)

// Terminal reports whether the event ends the call it was emitted for.
func (k EventKind) Terminal() bool {
	switch k {
	case EventDisconnect, EventCancel, EventReject, EventError:
		return true
	default:
		return false
	}
}

// Event is delivered to subscribers. Call is set for incoming, connect and
// (when known) disconnect device events. Err is set for error events.
type Event struct {
	Kind EventKind
	Call Call
	Err  error
}

// Call is a provider-owned call handle. Status is authoritative; an error
// means the handle is no longer valid.
type Call interface {
	Status() (calls.ClientStatus, error)
	Parameters() map[string]string
	Subscribe(fn func(Event)) (cancel func())
}

// Optional call capabilities. Handles expose whichever the provider supports.
type (
	Acceptor interface {
		Accept(ctx context.Context) error
	}
	Rejecter interface {
		Reject() error
	}
	Disconnecter interface {
		Disconnect() error
	}
	Hanger interface {
		Hangup() error
	}
)

// Device is the registered endpoint that receives and places calls.
// Connect may return a nil Call; the handle then arrives with EventConnect.
type Device interface {
	Register(ctx context.Context) error
	Connect(ctx context.Context, params map[string]string) (Call, error)
	Destroy()
	Subscribe(fn func(Event)) (cancel func())
}

// Optional device capabilities used as disconnect fallbacks.
type (
	BulkDisconnecter interface {
		DisconnectAll() error
	}
	CallDisconnecter interface {
		DisconnectCall(c Call) error
	}
	CallLister interface {
		Calls() []Call
	}
)

// DeviceFactory builds a Device from an access token.
type DeviceFactory func(token string) (Device, error)

// Backend is the call-control service as seen by the softphone.
type Backend interface {
	Token(ctx context.Context, identity string) (TokenResult, error)
	RequestCall(ctx context.Context, to string) (CallResult, error)
}

type TokenResult struct {
	Token    string `json:"token"`
	Identity string `json:"identity"`
}

type CallResult struct {
	CallSID   string `json:"callSid"`
	Status    string `json:"status"`
	Direction string `json:"direction"`
}

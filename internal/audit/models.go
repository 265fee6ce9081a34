package audit

import "time"

// Event is an immutable, append-only record of a call-control action.
//
// Invariants:
// - Events are never updated or deleted.
// - ip and request id capture are best-effort; do not block call flows on audit failures.
// - Dial-status callbacks are not recorded; their outcome only selects a spoken message.

type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// Identity is the softphone identity a token was minted for.
	Identity string `json:"identity,omitempty" db:"identity"`

	// Outbound call fields.
	CallSID string `json:"call_sid,omitempty" db:"call_sid"`
	To      string `json:"to,omitempty" db:"to_number"`
	From    string `json:"from,omitempty" db:"from_number"`
	Status  string `json:"status,omitempty" db:"status"`

	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`
	RequestID string `json:"request_id,omitempty" db:"request_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeTokenIssued   EventType = "token_issued"
	EventTypeCallRequested EventType = "call_requested"
	EventTypeCallFailed    EventType = "call_failed"
)

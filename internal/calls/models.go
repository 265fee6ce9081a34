package calls

import (
	"fmt"
	"strconv"
	"strings"
)

// DialStatus is the DialCallStatus value Twilio posts to a <Dial action> callback.
type DialStatus string

const (
	DialStatusCompleted DialStatus = "completed"
	DialStatusAnswered  DialStatus = "answered"
	DialStatusNoAnswer  DialStatus = "no-answer"
	DialStatusBusy      DialStatus = "busy"
	DialStatusFailed    DialStatus = "failed"
	DialStatusCanceled  DialStatus = "canceled"
)

// ParseDialStatus wraps a raw DialCallStatus. Matching is exact: Twilio sends
// lowercase values, and anything else falls through to the generic outcome.
func ParseDialStatus(raw string) DialStatus {
	return DialStatus(raw)
}

// Connected reports whether the dialed leg was answered.
func (s DialStatus) Connected() bool {
	return s == DialStatusCompleted || s == DialStatusAnswered
}

// ParseDuration reads DialCallDuration. Missing or malformed values count as zero.
func ParseDuration(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Spoken outcomes for the dial-status callback.
const (
	MessageGoodbye  = "Thank you for calling. Goodbye."
	MessageNoAnswer = "Sorry, the agent did not answer. Please make sure the app is open and try again later."
	MessageBusy     = "Sorry, the agent is busy at the moment. Please try again later."
	MessageFailed   = "The call could not be completed. Please make sure the app is open and registered, then try again."
	MessageCanceled = "The call was canceled. Please try again."
	MessageEnded    = "The call has ended. Thank you for calling."
)

// OutcomeMessage maps a dial outcome to what the caller hears.
func OutcomeMessage(status DialStatus, durationSeconds int) string {
	switch status {
	case DialStatusCompleted, DialStatusAnswered:
		if durationSeconds > 0 {
			return fmt.Sprintf("Thank you for calling. The call lasted %d seconds. Goodbye.", durationSeconds)
		}
		return MessageGoodbye
	case DialStatusNoAnswer:
		return MessageNoAnswer
	case DialStatusBusy:
		return MessageBusy
	case DialStatusFailed:
		return MessageFailed
	case DialStatusCanceled:
		return MessageCanceled
	default:
		return MessageEnded
	}
}

// ClientStatus is the status a browser-side call handle reports.
// The set is open; the provider SDK adds values over time.
type ClientStatus string

const (
	ClientStatusPending      ClientStatus = "pending"
	ClientStatusConnecting   ClientStatus = "connecting"
	ClientStatusRinging      ClientStatus = "ringing"
	ClientStatusOpen         ClientStatus = "open"
	ClientStatusConnected    ClientStatus = "connected"
	ClientStatusReconnecting ClientStatus = "reconnecting"
	ClientStatusClosed       ClientStatus = "closed"
	ClientStatusCompleted    ClientStatus = "completed"
	ClientStatusFailed       ClientStatus = "failed"
	ClientStatusCanceled     ClientStatus = "canceled"
	ClientStatusDisconnected ClientStatus = "disconnected"
	ClientStatusEnded        ClientStatus = "ended"
)

// Terminal reports whether the handle has ended and must be dropped.
func (s ClientStatus) Terminal() bool {
	switch s {
	case ClientStatusClosed, ClientStatusCompleted, ClientStatusFailed,
		ClientStatusCanceled, ClientStatusDisconnected, ClientStatusEnded:
		return true
	default:
		return false
	}
}

// Live reports whether media is flowing.
func (s ClientStatus) Live() bool {
	return s == ClientStatusOpen || s == ClientStatusConnected
}

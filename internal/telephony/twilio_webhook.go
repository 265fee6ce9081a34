package telephony

import (
	"log/slog"
	"net/http"
	"strings"

	"voice-ivr/internal/calls"
)

// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/usage/webhooks/voice-webhooks
//
// Keep these minimal and provider-adapter-only.
// Decisions are made in internal/ivr and internal/calls.

// TwilioInboundForm captures the call fields common to every voice webhook.
type TwilioInboundForm struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	Direction  string
	CallStatus string
	Caller     string
}

// DigitsForm is the <Gather action> callback.
type DigitsForm struct {
	TwilioInboundForm
	// Digits is kept raw; the menu matches it exactly.
	Digits string
}

// DialStatusForm is the <Dial action> callback.
type DialStatusForm struct {
	TwilioInboundForm
	Status          calls.DialStatus
	DurationSeconds int
	DialCallSid     string
	Department      string
}

func ParseTwilioInboundCall(r *http.Request) (TwilioInboundForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioInboundForm{}, err
	}
	return inboundForm(r), nil
}

func ParseDigits(r *http.Request) (DigitsForm, error) {
	if err := r.ParseForm(); err != nil {
		return DigitsForm{}, err
	}
	return DigitsForm{TwilioInboundForm: inboundForm(r), Digits: r.PostFormValue("Digits")}, nil
}

// ParseDialStatus reads the dial outcome. department comes from the action URL
// query and defaults to defaultDepartment.
func ParseDialStatus(r *http.Request, defaultDepartment string) (DialStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return DialStatusForm{}, err
	}
	dep := strings.TrimSpace(r.URL.Query().Get("department"))
	if dep == "" {
		dep = defaultDepartment
	}
	return DialStatusForm{
		TwilioInboundForm: inboundForm(r),
		Status:            calls.ParseDialStatus(r.PostFormValue("DialCallStatus")),
		DurationSeconds:   calls.ParseDuration(r.PostFormValue("DialCallDuration")),
		DialCallSid:       r.PostFormValue("DialCallSid"),
		Department:        dep,
	}, nil
}

func inboundForm(r *http.Request) TwilioInboundForm {
	return TwilioInboundForm{
		CallSid:    r.PostFormValue("CallSid"),
		AccountSid: r.PostFormValue("AccountSid"),
		From:       normalizePhone(r.PostFormValue("From")),
		To:         normalizePhone(r.PostFormValue("To")),
		Direction:  r.PostFormValue("Direction"),
		CallStatus: r.PostFormValue("CallStatus"),
		Caller:     normalizePhone(r.PostFormValue("Caller")),
	}
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return s
}

// LogValue lets the form be logged as a single structured attribute.
func (f TwilioInboundForm) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("call_sid", f.CallSid),
		slog.String("from", f.From),
		slog.String("to", f.To),
		slog.String("direction", f.Direction),
		slog.String("call_status", f.CallStatus),
	)
}

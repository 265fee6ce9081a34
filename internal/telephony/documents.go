package telephony

import (
	"net/url"

	"voice-ivr/internal/calls"
	"voice-ivr/internal/ivr"
)

// Webhook paths. Twilio resolves relative action URLs against the request URL.
const (
	PathIncomingCall = "/incoming-call"
	PathHandleKey    = "/handle-key"
	PathCallStatus   = "/call-status"
	PathOutgoingIVR  = "/outgoing-ivr"
)

// OutgoingGreeting is spoken on calls created through POST /call.
const OutgoingGreeting = "Hello! This is an outgoing call from your IVR."

// MenuDocument presents the inbound menu.
func MenuDocument(m *ivr.Menu) (string, error) {
	return NewResponse().
		Gather(Gather{NumDigits: m.NumDigits(), Action: PathHandleKey, Prompt: m.Prompt}).
		Render()
}

// SelectionDocument executes a menu decision: ring the department's client or
// replay the menu.
func SelectionDocument(m *ivr.Menu, d ivr.Decision) (string, error) {
	r := NewResponse()
	switch d.Action {
	case ivr.ActionConnect:
		r.Say(d.Department.Announcement).
			Dial(Dial{
				Timeout: m.DialTimeout,
				Action:  CallStatusPath(d.Department.Key),
				Client:  d.Department.Identity,
			})
	default:
		r.Say(m.InvalidMessage).Redirect(PathIncomingCall)
	}
	return r.Render()
}

// CallStatusPath is the <Dial action> target carrying the department.
func CallStatusPath(department string) string {
	q := url.Values{}
	q.Set("department", department)
	return PathCallStatus + "?" + q.Encode()
}

// DialStatusDocument speaks the outcome of a department dial.
func DialStatusDocument(f DialStatusForm) (string, error) {
	return NewResponse().
		Say(calls.OutcomeMessage(f.Status, f.DurationSeconds)).
		Render()
}

// OutgoingIVRDocument greets the callee of an outbound call.
func OutgoingIVRDocument() (string, error) {
	return NewResponse().Say(OutgoingGreeting).Render()
}

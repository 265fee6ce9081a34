package ivr

// Decision is the provider-agnostic outcome of a menu selection.
//
// It carries only what the TwiML builder needs to execute the step.

type Decision struct {
	Action Action `json:"action"`

	// Department is set when Action == ActionConnect.
	Department Department `json:"department,omitempty"`

	// Digit is the raw input, kept for logs.
	Digit string `json:"digit"`
}

type Action string

const (
	ActionConnect Action = "connect"
	// ActionRetry replays the menu. There is no attempt cap; Twilio's own
	// gather timeout ends a silent call.
	ActionRetry Action = "retry"
)

package ivr

import (
	"strings"
	"time"
)

// Department is a menu target. Identity addresses the softphone registered for
// the department; the token endpoint and the dial step must agree on it.
type Department struct {
	Key          string `json:"key"`
	Identity     string `json:"identity"`
	Announcement string `json:"announcement"`
}

const (
	DepartmentSupport = "support"
	DepartmentSales   = "sales"

	IdentitySupport = "user-support"
	IdentitySales   = "user-sales"

	// DefaultIdentity is used when a token request names no identity.
	DefaultIdentity = IdentitySupport
)

// Menu is the single-digit inbound menu.
type Menu struct {
	Prompt         string
	InvalidMessage string

	// DialTimeout bounds how long a department client rings.
	DialTimeout time.Duration

	departments map[string]Department
}

// DefaultMenu returns the support/sales menu.
func DefaultMenu() *Menu {
	return &Menu{
		Prompt:         "Welcome to the IVR system. Press 1 for support. Press 2 for sales.",
		InvalidMessage: "Invalid choice. Please try again.",
		DialTimeout:    30 * time.Second,
		departments: map[string]Department{
			"1": {
				Key:          DepartmentSupport,
				Identity:     IdentitySupport,
				Announcement: "Connecting to support. Please wait while we connect you to an agent.",
			},
			"2": {
				Key:          DepartmentSales,
				Identity:     IdentitySales,
				Announcement: "Connecting to sales. Please wait while we connect you to a sales representative.",
			},
		},
	}
}

// NumDigits is the fixed gather length.
func (m *Menu) NumDigits() int { return 1 }

// Decide maps the gathered digits to a step. Only an exact "1" or "2" matches;
// whitespace, multi-digit input and empty input replay the menu.
func (m *Menu) Decide(digits string) Decision {
	if d, ok := m.departments[digits]; ok {
		return Decision{Action: ActionConnect, Department: d, Digit: digits}
	}
	return Decision{Action: ActionRetry, Digit: digits}
}

// Department looks a department up by key, e.g. from the call-status query.
func (m *Menu) Department(key string) (Department, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, d := range m.departments {
		if d.Key == key {
			return d, true
		}
	}
	return Department{}, false
}

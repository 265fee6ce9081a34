package calls

import (
	"strings"
	"testing"
)

func TestOutcomeMessage_CompletedIncludesDuration(t *testing.T) {
	msg := OutcomeMessage(ParseDialStatus("completed"), ParseDuration("45"))
	if !strings.Contains(msg, "45") {
		t.Fatalf("expected duration in message, got %q", msg)
	}
}

func TestOutcomeMessage_AnsweredWithoutDuration(t *testing.T) {
	if got := OutcomeMessage(DialStatusAnswered, 0); got != MessageGoodbye {
		t.Fatalf("expected goodbye, got %q", got)
	}
}

func TestOutcomeMessage_DistinctFailureOutcomes(t *testing.T) {
	statuses := []DialStatus{DialStatusNoAnswer, DialStatusBusy, DialStatusFailed, DialStatusCanceled, "other"}
	seen := map[string]DialStatus{}
	for _, s := range statuses {
		msg := OutcomeMessage(s, 10)
		if msg == "" {
			t.Fatalf("expected message for %q", s)
		}
		if prev, ok := seen[msg]; ok {
			t.Fatalf("%q and %q share message %q", prev, s, msg)
		}
		seen[msg] = s
	}
	if OutcomeMessage("queued", 0) != MessageEnded {
		t.Fatalf("expected generic message for unknown status")
	}
}

func TestParseDialStatus_ExactMatch(t *testing.T) {
	for _, raw := range []string{"Completed", "BUSY", " busy", "no-answer "} {
		if got := OutcomeMessage(ParseDialStatus(raw), 30); got != MessageEnded {
			t.Fatalf("%q: expected generic message, got %q", raw, got)
		}
	}
	if got := OutcomeMessage(ParseDialStatus("busy"), 0); got != MessageBusy {
		t.Fatalf("expected busy message, got %q", got)
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]int{"": 0, "abc": 0, "-3": 0, " 12 ": 12}
	for in, want := range cases {
		if got := ParseDuration(in); got != want {
			t.Fatalf("ParseDuration(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestClientStatusTerminal(t *testing.T) {
	terminal := []ClientStatus{
		ClientStatusClosed,
		ClientStatusCompleted,
		ClientStatusFailed,
		ClientStatusCanceled,
		ClientStatusDisconnected,
		ClientStatusEnded,
	}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("expected %q terminal", s)
		}
	}
	for _, s := range []ClientStatus{ClientStatusPending, ClientStatusRinging, ClientStatusOpen, ClientStatusReconnecting} {
		if s.Terminal() {
			t.Fatalf("expected %q non-terminal", s)
		}
	}
}

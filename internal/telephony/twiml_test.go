package telephony

import (
	"strings"
	"testing"
	"time"

	"voice-ivr/internal/calls"
	"voice-ivr/internal/ivr"
)

func TestRenderDialRequiresClient(t *testing.T) {
	_, err := NewResponse().Dial(Dial{Timeout: time.Second, Client: "  "}).Render()
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestRenderDialClient(t *testing.T) {
	xml, err := NewResponse().Dial(Dial{Timeout: 20 * time.Second, Action: "/call-status", Client: "user-support"}).Render()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := `<Dial timeout="20" action="/call-status">` + "\n    <Client>user-support</Client>"
	if !strings.Contains(xml, want) {
		t.Fatalf("expected %q in xml: %s", want, xml)
	}
}

func TestMenuDocument(t *testing.T) {
	xml, err := MenuDocument(ivr.DefaultMenu())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<Gather numDigits="1" action="/handle-key" method="POST">`,
		`<Say>Welcome to the IVR system. Press 1 for support. Press 2 for sales.</Say>`,
	} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in xml: %s", want, xml)
		}
	}
}

func TestSelectionDocument_Connect(t *testing.T) {
	m := ivr.DefaultMenu()
	xml, err := SelectionDocument(m, m.Decide("2"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	for _, want := range []string{
		`<Say>Connecting to sales.`,
		`<Dial timeout="30" action="/call-status?department=sales">`,
		`<Client>user-sales</Client>`,
	} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in xml: %s", want, xml)
		}
	}
}

func TestSelectionDocument_InvalidRedirects(t *testing.T) {
	m := ivr.DefaultMenu()
	xml, err := SelectionDocument(m, m.Decide("5"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !strings.Contains(xml, "<Say>Invalid choice. Please try again.</Say>") {
		t.Fatalf("expected error prompt: %s", xml)
	}
	if !strings.Contains(xml, `<Redirect method="POST">/incoming-call</Redirect>`) {
		t.Fatalf("expected redirect: %s", xml)
	}
	if strings.Contains(xml, "<Dial") {
		t.Fatalf("unexpected dial: %s", xml)
	}
}

func TestDialStatusDocument(t *testing.T) {
	xml, err := DialStatusDocument(DialStatusForm{Status: calls.DialStatusCompleted, DurationSeconds: 45})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !strings.Contains(xml, "The call lasted 45 seconds") {
		t.Fatalf("expected duration: %s", xml)
	}
}

func TestOutgoingIVRDocument(t *testing.T) {
	xml, err := OutgoingIVRDocument()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !strings.Contains(xml, "<Say>"+OutgoingGreeting+"</Say>") {
		t.Fatalf("expected greeting: %s", xml)
	}
}

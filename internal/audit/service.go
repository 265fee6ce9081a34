package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records call-control events. Callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	switch e.Type {
	case EventTypeTokenIssued:
		if e.Identity == "" {
			return ErrInvalidEvent
		}
	case EventTypeCallRequested, EventTypeCallFailed:
		if e.To == "" {
			return ErrInvalidEvent
		}
	default:
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Origin carries request metadata shared by every event.
type Origin struct {
	IPAddress string
	RequestID string
}

// LogTokenIssued records that a token was minted for identity.
func (s *Service) LogTokenIssued(ctx context.Context, o Origin, identity string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeTokenIssued,
		Identity:  identity,
		IPAddress: o.IPAddress,
		RequestID: o.RequestID,
		Message:   "access token issued",
	})
}

// LogCallRequested records a call accepted by the provider.
func (s *Service) LogCallRequested(ctx context.Context, o Origin, to, from, callSID, status string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeCallRequested,
		To:        to,
		From:      from,
		CallSID:   callSID,
		Status:    status,
		IPAddress: o.IPAddress,
		RequestID: o.RequestID,
		Message:   "outbound call created",
	})
}

// LogCallFailed records a call the provider refused.
func (s *Service) LogCallFailed(ctx context.Context, o Origin, to, from, reason string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeCallFailed,
		To:        to,
		From:      from,
		IPAddress: o.IPAddress,
		RequestID: o.RequestID,
		Message:   reason,
	})
}

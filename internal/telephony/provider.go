package telephony

import (
	"context"
)

// TelephonyProvider is the call-creation surface used by the JSON API.
//
// Rules:
// - No provider HTTP calls outside telephony adapters.
// - Keep request/response types provider-agnostic.
type TelephonyProvider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	CreateCall(ctx context.Context, req OutboundCallRequest) (OutboundCallResult, error)
}

// OutboundCallRequest asks the provider to dial To from From and fetch
// call instructions from URL once answered.
type OutboundCallRequest struct {
	// To and From are E.164 where possible.
	To   string `json:"to"`
	From string `json:"from"`

	URL string `json:"url"`
}

// OutboundCallResult mirrors the provider's call resource.
type OutboundCallResult struct {
	// ProviderCallID is the provider's unique identifier for this call.
	ProviderCallID string `json:"provider_call_id"`
	Status         string `json:"status"`
	Direction      string `json:"direction"`
}

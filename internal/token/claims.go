package token

import "github.com/golang-jwt/jwt/v5"

// contentType marks the JWT as a Twilio access token.
const contentType = "twilio-fpa;v=1"

// Claims is the Twilio access token payload.
// Identity lives inside Grants; Twilio ignores a top-level identity claim.
type Claims struct {
	jwt.RegisteredClaims

	Grants Grants `json:"grants"`
}

type Grants struct {
	Identity string      `json:"identity"`
	Voice    *VoiceGrant `json:"voice,omitempty"`
}

// VoiceGrant scopes what a softphone may do with the token.
type VoiceGrant struct {
	Incoming *IncomingGrant `json:"incoming,omitempty"`
	Outgoing *OutgoingGrant `json:"outgoing,omitempty"`
}

type IncomingGrant struct {
	Allow bool `json:"allow"`
}

type OutgoingGrant struct {
	ApplicationSID string            `json:"application_sid"`
	Params         map[string]string `json:"params,omitempty"`
}

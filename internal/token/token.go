package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"voice-ivr/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrIdentityRequired = errors.New("token: identity required")
	ErrNotConfigured    = errors.New("token: twilio credentials not configured")
)

// Issuer mints Twilio access tokens carrying a Voice grant.
//
// There is no check on which identity a caller may request; any client can
// mint a token for any department identity.
type Issuer struct {
	accountSID  string
	apiKey      string
	apiSecret   []byte
	twimlAppSID string
	ttl         time.Duration
}

func NewIssuer(cfg config.TwilioConfig, ttl time.Duration) (*Issuer, error) {
	if cfg.AccountSID == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrNotConfigured
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{
		accountSID:  cfg.AccountSID,
		apiKey:      cfg.APIKey,
		apiSecret:   []byte(cfg.APISecret),
		twimlAppSID: cfg.TwiMLAppSID,
		ttl:         ttl,
	}, nil
}

// Issued is a signed token and the identity it was minted for.
type Issued struct {
	Token     string
	Identity  string
	ExpiresAt time.Time
}

/* ===================== ISSUE ===================== */

func (i *Issuer) Issue(now time.Time, identity string) (Issued, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return Issued{}, ErrIdentityRequired
	}

	exp := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// Twilio expects jti = <api key sid>-<unix seconds>.
			ID:        fmt.Sprintf("%s-%d", i.apiKey, now.Unix()),
			Issuer:    i.apiKey,
			Subject:   i.accountSID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Grants: Grants{
			Identity: identity,
			Voice: &VoiceGrant{
				Incoming: &IncomingGrant{Allow: true},
			},
		},
	}
	if i.twimlAppSID != "" {
		claims.Grants.Voice.Outgoing = &OutgoingGrant{ApplicationSID: i.twimlAppSID}
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["cty"] = contentType

	signed, err := t.SignedString(i.apiSecret)
	if err != nil {
		return Issued{}, fmt.Errorf("token: sign: %w", err)
	}
	return Issued{Token: signed, Identity: identity, ExpiresAt: exp}, nil
}

/* ===================== VERIFY ===================== */

// Verify parses a token minted by this issuer. Twilio performs its own
// verification; this exists for diagnostics and tests.
func (i *Issuer) Verify(tokenString string, now time.Time) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30*time.Second),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.apiKey),
		jwt.WithSubject(i.accountSID),
	)

	t, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return i.apiSecret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	if cty, _ := t.Header["cty"].(string); cty != contentType {
		return Claims{}, errors.New("token: content type mismatch")
	}
	if claims.Grants.Identity == "" {
		return Claims{}, errors.New("token: identity missing")
	}
	return claims, nil
}

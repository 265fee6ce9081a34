package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"voice-ivr/internal/audit"
	"voice-ivr/internal/ivr"
	"voice-ivr/internal/telephony"
	"voice-ivr/internal/token"
	"voice-ivr/pkg/logger"

	"github.com/gin-gonic/gin"
)

// TokenIssuer mints softphone access tokens.
type TokenIssuer interface {
	Issue(now time.Time, identity string) (token.Issued, error)
}

// Handlers groups the JSON handlers used by the softphone.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Tokens   TokenIssuer
	Provider telephony.TelephonyProvider
	Audit    *audit.Service

	// OriginNumber is the caller id for outbound calls; empty fails POST /call.
	OriginNumber string
	// OutgoingIVRURL is the absolute URL Twilio fetches once the callee answers.
	OutgoingIVRURL string
	// AuditTimeout bounds each audit write; zero means DefaultAuditTimeout.
	AuditTimeout time.Duration

	Now func() time.Time
}

// DefaultAuditTimeout keeps a stalled audit backend from holding responses.
const DefaultAuditTimeout = 2 * time.Second

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Token ---

type tokenResponse struct {
	Token    string `json:"token"`
	Identity string `json:"identity"`
}

// Token issues an access token for ?identity=, defaulting to the support identity.
//
// NOTE: any caller may request any identity. Gating identities on caller
// authentication is an open product decision.
func (h Handlers) Token(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Tokens == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuer not configured"})
		return
	}
	identity := strings.TrimSpace(c.Query("identity"))
	if identity == "" {
		identity = ivr.DefaultIdentity
	}

	issued, err := h.Tokens.Issue(h.now(), identity)
	if err != nil {
		log.Error("token issuance failed", "identity", identity, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	log.Info("token issued", "identity", issued.Identity, "expires_at", issued.ExpiresAt)
	h.record(c, func(ctx context.Context, o audit.Origin) error {
		return h.Audit.LogTokenIssued(ctx, o, issued.Identity)
	})

	c.JSON(http.StatusOK, tokenResponse{Token: issued.Token, Identity: issued.Identity})
}

// --- Call ---

type callRequest struct {
	To string `json:"to" form:"to"`
}

type callResponse struct {
	CallSID   string `json:"callSid"`
	Status    string `json:"status"`
	Direction string `json:"direction"`
}

// CreateCall asks the provider to dial req.To from the configured origin number.
// One attempt; provider errors are surfaced with the provider's message.
func (h Handlers) CreateCall(c *gin.Context) {
	log := logger.FromGin(c)

	var req callRequest
	if err := c.ShouldBind(&req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	req.To = strings.TrimSpace(req.To)
	if req.To == "" {
		log.Warn("outbound call rejected", "reason", "missing to")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing 'to' parameter"})
		return
	}
	if h.OriginNumber == "" {
		log.Error("outbound call rejected", "reason", "TWILIO_NUMBER not set")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Server configuration error: TWILIO_NUMBER not set"})
		return
	}
	if h.Provider == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "telephony provider not configured"})
		return
	}

	res, err := h.Provider.CreateCall(c.Request.Context(), telephony.OutboundCallRequest{
		To:   req.To,
		From: h.OriginNumber,
		URL:  h.OutgoingIVRURL,
	})
	if err != nil {
		msg := telephony.ProviderMessage(err)
		log.Error("outbound call failed", "to", req.To, "provider", h.Provider.Name(), "err", err)
		h.record(c, func(ctx context.Context, o audit.Origin) error {
			return h.Audit.LogCallFailed(ctx, o, req.To, h.OriginNumber, msg)
		})
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msg})
		return
	}

	log.Info("outbound call created", "to", req.To, "call_sid", res.ProviderCallID, "status", res.Status, "direction", res.Direction)
	h.record(c, func(ctx context.Context, o audit.Origin) error {
		return h.Audit.LogCallRequested(ctx, o, req.To, h.OriginNumber, res.ProviderCallID, res.Status)
	})

	c.JSON(http.StatusOK, callResponse{CallSID: res.ProviderCallID, Status: res.Status, Direction: res.Direction})
}

// record writes an audit event; failures are logged and never reach the caller.
func (h Handlers) record(c *gin.Context, fn func(ctx context.Context, o audit.Origin) error) {
	if h.Audit == nil {
		return
	}
	timeout := h.AuditTimeout
	if timeout <= 0 {
		timeout = DefaultAuditTimeout
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	o := audit.Origin{IPAddress: c.ClientIP(), RequestID: logger.RequestID(c)}
	if err := fn(ctx, o); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}

// Register mounts the JSON routes.
func (h Handlers) Register(r gin.IRoutes) {
	r.GET("/token", h.Token)
	r.POST("/call", h.CreateCall)
}

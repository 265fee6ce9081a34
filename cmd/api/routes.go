package main

import (
	"context"
	"net/http"
	"time"

	"voice-ivr/internal/audit"
	"voice-ivr/internal/config"
	"voice-ivr/internal/httpapi"
	"voice-ivr/internal/ivr"
	"voice-ivr/internal/telephony"
	"voice-ivr/pkg/logger"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	cfg      config.Config
	issuer   httpapi.TokenIssuer
	provider telephony.TelephonyProvider
	audit    *audit.Service
	// checks are readiness probes keyed by dependency name.
	checks map[string]func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	r.Use(httpapi.CORS(d.cfg.App.CORSAllowOrigins))

	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", readiness(d))

	// Softphone JSON API.
	httpapi.Handlers{
		Tokens:         d.issuer,
		Provider:       d.provider,
		Audit:          d.audit,
		OriginNumber:   d.cfg.Twilio.PhoneNumber,
		OutgoingIVRURL: d.cfg.CallbackURL(telephony.PathOutgoingIVR),
	}.Register(r)

	// Provider webhooks. Signature validation is mandatory in production (enforced by config).
	var mw []gin.HandlerFunc
	if d.cfg.Twilio.ValidateWebhooks {
		mw = append(mw, telephony.RequireTwilioSignature(d.cfg.Twilio.AuthToken, d.cfg.App.PublicBaseURL))
	}
	telephony.NewVoiceWebhookHandler(ivr.DefaultMenu()).Register(r, mw...)
}

// readiness pings the audit backend and the provider.
func readiness(d routeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		out := gin.H{}
		probe := func(name string, fn func(context.Context) error) {
			if err := fn(ctx); err != nil {
				logger.FromGin(c).Warn("readiness probe failed", "dependency", name, "err", err)
				out[name] = err.Error()
				status = http.StatusServiceUnavailable
				return
			}
			out[name] = "ok"
		}
		for name, fn := range d.checks {
			probe(name, fn)
		}
		if d.provider != nil {
			probe(d.provider.Name(), d.provider.HealthCheck)
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": out})
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-ivr/internal/audit"
	"voice-ivr/internal/config"
	"voice-ivr/internal/telephony"
	"voice-ivr/internal/token"
	"voice-ivr/pkg/logger"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "voice-ivr")
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	issuer, err := token.NewIssuer(cfg.Twilio, cfg.Token.TTL)
	if err != nil {
		log.Error("token issuer init failed", "err", err)
		os.Exit(1)
	}

	provider, err := telephony.NewTwilioProvider(cfg.Twilio)
	if err != nil {
		log.Error("twilio provider init failed", "err", err)
		os.Exit(1)
	}

	ledger, err := openAuditLedger(rootCtx, cfg)
	if err != nil {
		log.Error("audit ledger init failed", "backend", cfg.Audit.Backend, "err", err)
		os.Exit(1)
	}
	defer ledger.Close()

	if cfg.Twilio.PhoneNumber == "" {
		log.Warn("TWILIO_NUMBER not set; POST /call will fail until configured")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		cfg:      cfg,
		issuer:   issuer,
		provider: provider,
		audit:    audit.NewService(ledger.repo),
		checks:   ledger.checks,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening",
			"addr", srv.Addr,
			"env", cfg.App.Env,
			"public_base_url", cfg.App.PublicBaseURL,
			"audit_backend", cfg.Audit.Backend,
			"validate_webhooks", cfg.Twilio.ValidateWebhooks,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

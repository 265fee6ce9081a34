package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"voice-ivr/internal/audit"
	"voice-ivr/internal/config"
	"voice-ivr/internal/telephony"
	"voice-ivr/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twilioSignature signs a single-valued form the way Twilio does.
func twilioSignature(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := fullURL
	for _, k := range keys {
		payload += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type stubProvider struct {
	healthErr error
	created   int
}

func (p *stubProvider) Name() string { return "stub" }
func (p *stubProvider) HealthCheck(ctx context.Context) error { return p.healthErr }
func (p *stubProvider) CreateCall(ctx context.Context, req telephony.OutboundCallRequest) (telephony.OutboundCallResult, error) {
	p.created++
	return telephony.OutboundCallResult{ProviderCallID: "CA1", Status: "queued", Direction: "outbound-api"}, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Config{
		App: config.AppConfig{Env: "local", Port: 8080, PublicBaseURL: "https://ivr.example.com"},
		Twilio: config.TwilioConfig{
			AccountSID:  "AC123",
			AuthToken:   "authtoken",
			APIKey:      "SK123",
			APISecret:   "secret",
			TwiMLAppSID: "AP123",
			PhoneNumber: "+15559990000",
		},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestRouter(t *testing.T, cfg config.Config, p *stubProvider, checks map[string]func(context.Context) error) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	issuer, err := token.NewIssuer(cfg.Twilio, cfg.Token.TTL)
	require.NoError(t, err)
	r := gin.New()
	registerRoutes(r, routeDeps{
		cfg:      cfg,
		issuer:   issuer,
		provider: p,
		audit:    audit.NewService(audit.NewMemoryRepo(0)),
		checks:   checks,
	})
	return r
}

func TestRoutes_AllEndpointsMounted(t *testing.T) {
	cfg := testConfig(t)
	r := newTestRouter(t, cfg, &stubProvider{}, nil)

	cases := []struct {
		method, path, ctype, body string
	}{
		{http.MethodGet, "/healthz", "", ""},
		{http.MethodGet, "/token", "", ""},
		{http.MethodPost, "/call", "application/json", `{"to":"+15550001111"}`},
		{http.MethodPost, "/incoming-call", "application/x-www-form-urlencoded", "CallSid=CA1"},
		{http.MethodPost, "/handle-key", "application/x-www-form-urlencoded", "Digits=2"},
		{http.MethodPost, "/call-status?department=sales", "application/x-www-form-urlencoded", "DialCallStatus=busy"},
		{http.MethodPost, "/outgoing-ivr", "application/x-www-form-urlencoded", "CallSid=CA1"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		if tc.ctype != "" {
			req.Header.Set("Content-Type", tc.ctype)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "%s %s: %s", tc.method, tc.path, w.Body.String())
	}
}

func TestRoutes_WebhookSignatureEnforcedWhenEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Twilio.ValidateWebhooks = true
	r := newTestRouter(t, cfg, &stubProvider{}, nil)

	form := url.Values{"Digits": {"1"}}
	req := httptest.NewRequest(http.MethodPost, "/handle-key", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/handle-key", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", twilioSignature("authtoken", "https://ivr.example.com/handle-key", form))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "<Client>user-support</Client>")
}

func TestRoutes_OutboundCallUsesPublicCallback(t *testing.T) {
	cfg := testConfig(t)
	p := &stubProvider{}
	r := newTestRouter(t, cfg, p, nil)

	req := httptest.NewRequest(http.MethodPost, "/call", strings.NewReader(`{"to":"+15550001111"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, p.created)
}

func TestReadiness(t *testing.T) {
	cfg := testConfig(t)
	okChecks := map[string]func(context.Context) error{"redis": func(context.Context) error { return nil }}

	w := httptest.NewRecorder()
	newTestRouter(t, cfg, &stubProvider{}, okChecks).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	p := &stubProvider{healthErr: errors.New("401 unauthorized")}
	newTestRouter(t, cfg, p, okChecks).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "401 unauthorized")
}

func TestOpenAuditLedger_MemoryDefault(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	l, err := openAuditLedger(ctx, cfg)
	require.NoError(t, err)
	defer l.Close()
	_, ok := l.repo.(*audit.MemoryRepo)
	assert.True(t, ok)
	assert.Empty(t, l.checks)
}

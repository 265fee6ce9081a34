package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voice-ivr/internal/config"
)

const defaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"

// TwilioProvider talks to the Twilio REST API with account credentials.
type TwilioProvider struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// TwilioOption configures a TwilioProvider.
type TwilioOption func(*TwilioProvider)

// WithBaseURL points the provider at another API root (tests, edge regions).
func WithBaseURL(u string) TwilioOption {
	return func(p *TwilioProvider) { p.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(c *http.Client) TwilioOption {
	return func(p *TwilioProvider) { p.httpClient = c }
}

func NewTwilioProvider(cfg config.TwilioConfig, opts ...TwilioOption) (*TwilioProvider, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("telephony: twilio account sid and auth token required")
	}
	p := &TwilioProvider{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		baseURL:    defaultTwilioBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *TwilioProvider) Name() string { return "twilio" }

// HealthCheck fetches the account resource, the cheapest authenticated call.
func (p *TwilioProvider) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s.json", p.baseURL, p.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return p.do(req, nil)
}

// twilioCall is the subset of the Calls resource we read.
type twilioCall struct {
	SID       string `json:"sid"`
	Status    string `json:"status"`
	Direction string `json:"direction"`
}

// CreateCall makes a single call-creation attempt. No retry.
func (p *TwilioProvider) CreateCall(ctx context.Context, in OutboundCallRequest) (OutboundCallResult, error) {
	if in.To == "" || in.From == "" {
		return OutboundCallResult{}, errors.New("telephony: to and from required")
	}
	if in.URL == "" {
		return OutboundCallResult{}, errors.New("telephony: call instructions url required")
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", p.baseURL, p.accountSID)
	data := url.Values{}
	data.Set("To", in.To)
	data.Set("From", in.From)
	data.Set("Url", in.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return OutboundCallResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var call twilioCall
	if err := p.do(req, &call); err != nil {
		return OutboundCallResult{}, err
	}
	return OutboundCallResult{ProviderCallID: call.SID, Status: call.Status, Direction: call.Direction}, nil
}

// APIError is a Twilio REST error body.
type APIError struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	MoreInfo   string `json:"more_info"`
	HTTPStatus int    `json:"status"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio error %d: %s", e.Code, e.Message)
}

// ProviderMessage extracts the message to surface to API callers.
func ProviderMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func (p *TwilioProvider) do(req *http.Request, result any) error {
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("twilio error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("telephony: parse twilio response: %w", err)
		}
	}
	return nil
}

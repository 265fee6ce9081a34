package softphone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ServiceError is a non-2xx answer from the call-control service.
type ServiceError struct {
	HTTPStatus int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("softphone: service returned %d: %s", e.HTTPStatus, e.Message)
}

// HTTPBackend calls the call-control service's JSON endpoints.
type HTTPBackend struct {
	baseURL    string
	httpClient *http.Client
	header     http.Header
}

type HTTPBackendOption func(*HTTPBackend)

func WithHTTPClient(c *http.Client) HTTPBackendOption {
	return func(b *HTTPBackend) { b.httpClient = c }
}

// WithHeader adds a header to every request, e.g. to get past a tunnel's
// browser interstitial.
func WithHeader(key, value string) HTTPBackendOption {
	return func(b *HTTPBackend) { b.header.Set(key, value) }
}

func NewHTTPBackend(baseURL string, opts ...HTTPBackendOption) (*HTTPBackend, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("softphone: service base url required")
	}
	b := &HTTPBackend{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		header:     make(http.Header),
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

func (b *HTTPBackend) Token(ctx context.Context, identity string) (TokenResult, error) {
	endpoint := b.baseURL + "/token"
	if identity != "" {
		endpoint += "?" + url.Values{"identity": {identity}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return TokenResult{}, err
	}
	var out TokenResult
	if err := b.do(req, &out); err != nil {
		return TokenResult{}, err
	}
	if out.Token == "" {
		return TokenResult{}, errors.New("softphone: service returned an empty token")
	}
	return out, nil
}

func (b *HTTPBackend) RequestCall(ctx context.Context, to string) (CallResult, error) {
	body, err := json.Marshal(map[string]string{"to": to})
	if err != nil {
		return CallResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return CallResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var out CallResult
	if err := b.do(req, &out); err != nil {
		return CallResult{}, err
	}
	return out, nil
}

func (b *HTTPBackend) do(req *http.Request, result any) error {
	for k, vs := range b.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &ServiceError{HTTPStatus: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("softphone: parse service response: %w", err)
	}
	return nil
}

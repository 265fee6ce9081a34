package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// sign builds the X-Twilio-Signature Twilio would send for a form POST.
func sign(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func signedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/call-status", RequireTwilioSignature("tok", "https://ivr.example.com/"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func postSigned(r http.Handler, target, body, sig string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sig != "" {
		req.Header.Set(signatureHeader, sig)
	}
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireTwilioSignature(t *testing.T) {
	r := signedRouter()
	body := "DialCallStatus=busy&CallSid=CA1"
	form, _ := url.ParseQuery(body)
	target := "/call-status?department=sales"
	sig := sign("tok", "https://ivr.example.com/call-status?department=sales", form)

	if code := postSigned(r, target, body, sig); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := postSigned(r, target, body, ""); code != http.StatusForbidden {
		t.Fatalf("expected 403 without signature, got %d", code)
	}
	if code := postSigned(r, target, "DialCallStatus=completed&CallSid=CA1", sig); code != http.StatusForbidden {
		t.Fatalf("expected 403 with tampered params, got %d", code)
	}
	if code := postSigned(r, target, body, sign("other", "https://ivr.example.com/call-status?department=sales", form)); code != http.StatusForbidden {
		t.Fatalf("expected 403 with other token, got %d", code)
	}
}

func TestRequireTwilioSignature_AcceptsExplicitPort(t *testing.T) {
	r := signedRouter()
	body := "DialCallStatus=busy"
	form, _ := url.ParseQuery(body)
	sig := sign("tok", "https://ivr.example.com:443/call-status", form)

	if code := postSigned(r, "/call-status", body, sig); code != http.StatusOK {
		t.Fatalf("expected 200 for URL signed with default port, got %d", code)
	}
}

func TestFormParams_FirstValue(t *testing.T) {
	got := formParams(url.Values{"Digits": {"1", "2"}, "Empty": {}})
	if len(got) != 1 || got["Digits"] != "1" {
		t.Fatalf("unexpected params: %v", got)
	}
}

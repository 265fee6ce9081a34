package telephony

import (
	"net/http"
	"net/url"
	"strings"

	"voice-ivr/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/client"
)

const signatureHeader = "X-Twilio-Signature"

// formParams flattens a POST form to the single-valued map Twilio signs.
// Twilio webhooks never repeat a field, so the first value is used.
func formParams(form url.Values) map[string]string {
	params := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

// RequireTwilioSignature rejects webhook requests not signed with authToken.
//
// publicBaseURL replaces scheme and host, since behind a tunnel or load balancer
// the request Host is not the URL Twilio signed. The validator also accepts the
// URL with or without the default port.
func RequireTwilioSignature(authToken, publicBaseURL string) gin.HandlerFunc {
	base := strings.TrimRight(publicBaseURL, "/")
	validator := client.NewRequestValidator(authToken)
	return func(c *gin.Context) {
		log := logger.FromGin(c)

		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
			return
		}
		sig := c.GetHeader(signatureHeader)
		fullURL := base + c.Request.URL.RequestURI()
		if sig == "" || !validator.Validate(fullURL, formParams(c.Request.PostForm), sig) {
			log.Warn("twilio signature rejected", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}

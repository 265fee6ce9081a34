package telephony

import (
	"net/http"

	"voice-ivr/internal/ivr"
	"voice-ivr/pkg/logger"

	"github.com/gin-gonic/gin"
)

// VoiceWebhookHandler serves the TwiML webhooks Twilio calls while a call is
// in the IVR. Handlers parse the form, ask internal/ivr or internal/calls what
// to do, and write TwiML. Stateless between requests.
type VoiceWebhookHandler struct {
	Menu *ivr.Menu
}

func NewVoiceWebhookHandler(menu *ivr.Menu) VoiceWebhookHandler {
	if menu == nil {
		menu = ivr.DefaultMenu()
	}
	return VoiceWebhookHandler{Menu: menu}
}

// Register mounts the webhook routes. mw runs ahead of every handler
// (signature validation in production).
func (h VoiceWebhookHandler) Register(r gin.IRoutes, mw ...gin.HandlerFunc) {
	route := func(path string, handler gin.HandlerFunc) {
		r.POST(path, append(append([]gin.HandlerFunc{}, mw...), handler)...)
	}
	route(PathIncomingCall, h.HandleIncomingCall)
	route(PathHandleKey, h.HandleKey)
	route(PathCallStatus, h.HandleCallStatus)
	route(PathOutgoingIVR, h.HandleOutgoingIVR)
}

func (h VoiceWebhookHandler) HandleIncomingCall(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseTwilioInboundCall(c.Request)
	if err != nil {
		log.Warn("twilio webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	log.Info("inbound call", "call", form)

	doc, err := MenuDocument(h.Menu)
	writeTwiML(c, doc, err)
}

func (h VoiceWebhookHandler) HandleKey(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseDigits(c.Request)
	if err != nil {
		log.Warn("twilio webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	d := h.Menu.Decide(form.Digits)
	switch d.Action {
	case ivr.ActionConnect:
		log.Info("menu selection", "call_sid", form.CallSid, "digit", d.Digit, "department", d.Department.Key, "identity", d.Department.Identity)
	default:
		log.Info("menu selection invalid", "call_sid", form.CallSid, "digit", d.Digit)
	}

	doc, err := SelectionDocument(h.Menu, d)
	writeTwiML(c, doc, err)
}

func (h VoiceWebhookHandler) HandleCallStatus(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseDialStatus(c.Request, ivr.DepartmentSupport)
	if err != nil {
		log.Warn("twilio webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	if _, ok := h.Menu.Department(form.Department); !ok {
		log.Warn("dial status for unknown department", "department", form.Department)
	}

	attrs := []any{
		"call_sid", form.CallSid,
		"dial_call_sid", form.DialCallSid,
		"dial_status", form.Status,
		"duration_s", form.DurationSeconds,
		"department", form.Department,
	}
	if form.Status.Connected() {
		log.Info("dial completed", attrs...)
	} else {
		log.Warn("dial not connected", attrs...)
	}

	doc, err := DialStatusDocument(form)
	writeTwiML(c, doc, err)
}

func (h VoiceWebhookHandler) HandleOutgoingIVR(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseTwilioInboundCall(c.Request)
	if err != nil {
		log.Warn("twilio webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	log.Info("outgoing ivr", "call_sid", form.CallSid, "to", form.To)

	doc, err := OutgoingIVRDocument()
	writeTwiML(c, doc, err)
}

func writeTwiML(c *gin.Context, doc string, err error) {
	if err != nil {
		logger.FromGin(c).Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, doc)
}

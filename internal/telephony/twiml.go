package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
	"time"
)

// TwiML is a minimal Twilio Markup Language response builder covering the
// verbs the IVR documents use: Say, Gather, Dial to a client, Redirect.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName   xml.Name  `xml:"Gather"`
	NumDigits int       `xml:"numDigits,attr,omitempty"`
	Action    string    `xml:"action,attr,omitempty"`
	Method    string    `xml:"method,attr,omitempty"`
	Say       *twimlSay `xml:"Say,omitempty"`
}

type twimlDial struct {
	XMLName xml.Name    `xml:"Dial"`
	Timeout int         `xml:"timeout,attr,omitempty"`
	Action  string      `xml:"action,attr,omitempty"`
	Client  twimlClient `xml:"Client"`
}

type twimlClient struct {
	Identity string `xml:",chardata"`
}

type twimlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Gather collects DTMF input and posts it to Action.
type Gather struct {
	NumDigits int
	Action    string
	Prompt    string
}

// Dial rings one registered client identity.
type Dial struct {
	Timeout time.Duration
	// Action receives DialCallStatus/DialCallDuration when the dialed leg ends.
	Action string
	Client string
}

// Response accumulates verbs in execution order.
type Response struct {
	verbs []any
	err   error
}

func NewResponse() *Response { return &Response{} }

func (r *Response) Say(text string) *Response {
	r.verbs = append(r.verbs, twimlSay{Text: text})
	return r
}

func (r *Response) Gather(g Gather) *Response {
	v := twimlGather{NumDigits: g.NumDigits, Action: g.Action, Method: "POST"}
	if g.Prompt != "" {
		v.Say = &twimlSay{Text: g.Prompt}
	}
	r.verbs = append(r.verbs, v)
	return r
}

func (r *Response) Dial(d Dial) *Response {
	if strings.TrimSpace(d.Client) == "" {
		r.err = errors.New("telephony: dial requires a client identity")
		return r
	}
	r.verbs = append(r.verbs, twimlDial{
		Timeout: int(d.Timeout / time.Second),
		Action:  d.Action,
		Client:  twimlClient{Identity: d.Client},
	})
	return r
}

func (r *Response) Redirect(url string) *Response {
	r.verbs = append(r.verbs, twimlRedirect{Method: "POST", URL: url})
	return r
}

// Render encodes the document with an XML header.
func (r *Response) Render() (string, error) {
	if r.err != nil {
		return "", r.err
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(twimlResponse{Verbs: r.verbs}); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}


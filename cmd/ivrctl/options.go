package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"voice-ivr/internal/calls"
	"voice-ivr/internal/ivr"
	"voice-ivr/internal/softphone"
	"voice-ivr/internal/telephony"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	URL               string        `short:"u" long:"url" env:"IVR_SERVICE_URL" default:"http://localhost:8080" description:"call-control service base url"`
	Timeout           time.Duration `long:"timeout" default:"15s" description:"request timeout"`
	SkipTunnelWarning bool          `long:"skip-tunnel-warning" description:"send ngrok-skip-browser-warning on every request"`

	Token  TokenCommand  `command:"token" description:"mint a softphone access token"`
	Call   CallCommand   `command:"call" description:"request an outbound call"`
	Render RenderCommand `command:"render" description:"print an IVR document without contacting Twilio"`

	out io.Writer
	log *slog.Logger
}

// Run parses args and executes the selected command, writing results to out.
func Run(args []string, out io.Writer, log *slog.Logger) error {
	opts := &Options{out: out, log: log}
	opts.Token.root = opts
	opts.Call.root = opts
	opts.Render.root = opts

	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	_, err := parser.ParseArgs(args)
	return err
}

func (o *Options) backend() (*softphone.HTTPBackend, error) {
	var bopts []softphone.HTTPBackendOption
	if o.SkipTunnelWarning {
		bopts = append(bopts, softphone.WithHeader("ngrok-skip-browser-warning", "true"))
	}
	return softphone.NewHTTPBackend(o.URL, bopts...)
}

func (o *Options) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), o.Timeout)
}

func (o *Options) printJSON(v any) error {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type TokenCommand struct {
	Identity string `short:"i" long:"identity" default:"user-support" description:"client identity to mint the token for"`

	root *Options
}

func (c *TokenCommand) Execute([]string) error {
	b, err := c.root.backend()
	if err != nil {
		return err
	}
	ctx, cancel := c.root.context()
	defer cancel()

	res, err := b.Token(ctx, c.Identity)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	c.root.log.Debug("token minted", "identity", res.Identity)
	return c.root.printJSON(res)
}

type CallCommand struct {
	To string `long:"to" required:"true" description:"destination number, E.164"`

	root *Options
}

func (c *CallCommand) Execute([]string) error {
	b, err := c.root.backend()
	if err != nil {
		return err
	}
	ctx, cancel := c.root.context()
	defer cancel()

	res, err := b.RequestCall(ctx, c.To)
	if err != nil {
		return fmt.Errorf("call: %w", err)
	}
	c.root.log.Debug("call requested", "to", c.To, "call_sid", res.CallSID)
	return c.root.printJSON(res)
}

type RenderCommand struct {
	Document   string `short:"d" long:"document" required:"true" choice:"menu" choice:"selection" choice:"status" choice:"outgoing" description:"document to render"`
	Digits     string `long:"digits" description:"pressed digits (selection)"`
	Status     string `long:"status" default:"completed" description:"DialCallStatus (status)"`
	Duration   string `long:"duration" description:"DialCallDuration in seconds (status)"`
	Department string `long:"department" default:"support" description:"department (status)"`

	root *Options
}

func (c *RenderCommand) Execute([]string) error {
	menu := ivr.DefaultMenu()

	var (
		doc string
		err error
	)
	switch c.Document {
	case "menu":
		doc, err = telephony.MenuDocument(menu)
	case "selection":
		doc, err = telephony.SelectionDocument(menu, menu.Decide(c.Digits))
	case "status":
		doc, err = telephony.DialStatusDocument(telephony.DialStatusForm{
			Status:          calls.ParseDialStatus(c.Status),
			DurationSeconds: calls.ParseDuration(c.Duration),
			Department:      c.Department,
		})
	case "outgoing":
		doc, err = telephony.OutgoingIVRDocument()
	default:
		return fmt.Errorf("render: unknown document %q", c.Document)
	}
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	_, err = fmt.Fprintln(c.root.out, doc)
	return err
}

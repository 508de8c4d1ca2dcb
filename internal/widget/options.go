package widget

import (
	"time"

	"github.com/google/uuid"

	"github.com/deepgram/chatroom/internal/config"
)

// Metrics receives outcome counts from a Controller. Outcomes are "ok",
// "error" and, for fetches, "malformed".
type Metrics interface {
	FetchCompleted(outcome string)
	SendCompleted(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) FetchCompleted(string) {}
func (nopMetrics) SendCompleted(string)  {}

type Options struct {
	WaitingTimeout   time.Duration
	PollingInterval  time.Duration
	RevealInterval   time.Duration
	MessageBlacklist []string
	WelcomeMessage   string

	Clock   Clock
	Metrics Metrics
	// NewID generates message ids; uuid.NewString when nil.
	NewID func() string
}

func DefaultOptions() Options {
	return Options{
		WaitingTimeout:   config.DefaultWaitingTimeout,
		PollingInterval:  config.DefaultPollingInterval,
		RevealInterval:   config.DefaultRevealInterval,
		MessageBlacklist: append([]string(nil), config.DefaultMessageBlacklist...),
	}
}

// OptionsFromConfig copies the widget settings out of cfg.
func OptionsFromConfig(cfg config.WidgetConfig) Options {
	opts := DefaultOptions()
	opts.WaitingTimeout = cfg.WaitingTimeout
	opts.PollingInterval = cfg.PollingInterval
	opts.RevealInterval = cfg.RevealInterval
	opts.MessageBlacklist = cfg.MessageBlacklist
	opts.WelcomeMessage = cfg.WelcomeMessage
	return opts
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.WaitingTimeout <= 0 {
		o.WaitingTimeout = d.WaitingTimeout
	}
	if o.PollingInterval <= 0 {
		o.PollingInterval = d.PollingInterval
	}
	if o.RevealInterval <= 0 {
		o.RevealInterval = d.RevealInterval
	}
	if o.MessageBlacklist == nil {
		o.MessageBlacklist = d.MessageBlacklist
	}
	if o.Clock == nil {
		o.Clock = RealClock()
	}
	if o.Metrics == nil {
		o.Metrics = nopMetrics{}
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

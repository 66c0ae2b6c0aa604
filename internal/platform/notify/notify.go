// Package notify delivers reminder notifications to patients over push and
// SMS transports with ordered fallback.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Channel names reported back to callers when a delivery succeeds.
const (
	ChannelPush = "push"
	ChannelSMS  = "sms"
)

// ErrAllChannelsFailed is returned by Deliver when every configured channel
// failed or timed out.
var ErrAllChannelsFailed = errors.New("all notification channels failed")

// Recipient holds the delivery addresses for one patient.
type Recipient struct {
	// PushKey is the push provider user key. Empty means the patient has no
	// push device registered.
	PushKey string
	// Phone is the SMS number in international format. Empty means no SMS.
	Phone string
}

// Message is a single notification to deliver.
type Message struct {
	Recipient Recipient
	Title     string
	Body      string
}

// Channel delivers a message over one transport. Send must respect ctx
// cancellation; a timed-out send counts as a failure.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Gateway tries channels in priority order and stops at the first success.
type Gateway struct {
	channels []Channel
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewGateway constructs a Gateway. Channels are attempted in the order given.
// timeout bounds each individual channel attempt, not the whole delivery.
func NewGateway(logger zerolog.Logger, timeout time.Duration, channels ...Channel) *Gateway {
	return &Gateway{
		channels: channels,
		timeout:  timeout,
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

// Deliver sends msg through the first channel that accepts it and returns that
// channel's name. A channel error or timeout falls through to the next
// channel. When every channel fails, ErrAllChannelsFailed is returned.
func (g *Gateway) Deliver(ctx context.Context, msg Message) (string, error) {
	if len(g.channels) == 0 {
		return "", ErrAllChannelsFailed
	}

	for _, ch := range g.channels {
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		err := ch.Send(attemptCtx, msg)
		cancel()

		if err == nil {
			return ch.Name(), nil
		}

		g.logger.Warn().
			Err(err).
			Str("channel", ch.Name()).
			Msg("channel delivery failed, trying next")

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", ErrAllChannelsFailed
}

// SendCall records a single call to a MockChannel.
type SendCall struct {
	Recipient Recipient
	Title     string
	Body      string
}

// MockChannel is a test double for Channel.
type MockChannel struct {
	ChannelName string
	ShouldFail  bool
	FailError   string
	Delay       time.Duration

	mu    sync.Mutex
	calls []SendCall
}

// Name returns the configured channel name.
func (m *MockChannel) Name() string {
	return m.ChannelName
}

// Send records the call, optionally sleeping and optionally failing.
func (m *MockChannel) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	m.calls = append(m.calls, SendCall{Recipient: msg.Recipient, Title: msg.Title, Body: msg.Body})
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded send calls.
func (m *MockChannel) Calls() []SendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SendCall, len(m.calls))
	copy(out, m.calls)
	return out
}

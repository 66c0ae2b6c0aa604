package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/gregdel/pushover"
)

// ErrNoPushKey means the recipient has no push device registered.
var ErrNoPushKey = errors.New("recipient has no push key")

// PushChannel delivers notifications through the Pushover API.
type PushChannel struct {
	app *pushover.Pushover
}

// NewPushChannel constructs a PushChannel from the application token.
func NewPushChannel(appToken string) *PushChannel {
	return &PushChannel{app: pushover.New(appToken)}
}

func (p *PushChannel) Name() string {
	return ChannelPush
}

// Send posts the message to Pushover. The client has no context support, so
// the request runs in a goroutine and the result is abandoned on ctx expiry.
func (p *PushChannel) Send(ctx context.Context, msg Message) error {
	if msg.Recipient.PushKey == "" {
		return ErrNoPushKey
	}

	recipient := pushover.NewRecipient(msg.Recipient.PushKey)
	message := pushover.NewMessageWithTitle(msg.Body, msg.Title)

	done := make(chan error, 1)
	go func() {
		_, err := p.app.SendMessage(message, recipient)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("pushover send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package notifier

import (
	"context"
	"log"
	"time"
)

// Popup shows a local desktop alert.
type Popup interface {
	Notify(ctx context.Context, title, body string) error
}

// Sender delivers a message to a chat.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Dispatcher delivers already-gated alerts to every enabled channel.
// A nil channel is skipped; one channel failing never stops the other.
type Dispatcher struct {
	Desktop Popup
	Chat    Sender
	Now     func() time.Time
}

// Dispatch sends body under title to each channel, best effort.
func (d *Dispatcher) Dispatch(ctx context.Context, title, body string) {
	log.Printf("[INFO] ALERT: %s", firstLine(body))

	if d.Desktop != nil {
		if err := d.Desktop.Notify(ctx, title, body); err != nil {
			log.Printf("[WARN] desktop alert unavailable: %v", err)
		}
	}
	if d.Chat != nil {
		now := time.Now
		if d.Now != nil {
			now = d.Now
		}
		if err := d.Chat.Send(ctx, Envelope(title, body, now())); err != nil {
			log.Printf("[ERROR] telegram alert: %v", err)
		}
	}
}

// Reply sends text to the chat channel only, unwrapped.
func (d *Dispatcher) Reply(ctx context.Context, text string) {
	if d.Chat == nil {
		return
	}
	if err := d.Chat.Send(ctx, text); err != nil {
		log.Printf("[ERROR] telegram message: %v", err)
	}
}

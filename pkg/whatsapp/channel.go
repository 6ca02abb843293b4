package whatsapp

import (
	"context"
	"errors"
	"fmt"

	"PersonalAssistant/pkg/notification"
)

var ErrNotConnected = errors.New("whatsapp not connected")

// Channel forwards reminders to the user's own WhatsApp number. Deliveries
// marked suppressed are skipped.
type Channel struct {
	sender IWhatsappSender
	phone  string
}

func NewChannel(sender IWhatsappSender, phone string) *Channel {
	return &Channel{sender: sender, phone: phone}
}

func (c *Channel) Name() string {
	return "whatsapp"
}

func (c *Channel) Deliver(ctx context.Context, d notification.Delivery) error {
	if d.Suppressed {
		return nil
	}
	if !c.sender.IsConnected() {
		return ErrNotConnected
	}
	return c.sender.SendMessage(ctx, c.phone, FormatReminder(d))
}

func FormatReminder(d notification.Delivery) string {
	if d.Request.Body == "" {
		return fmt.Sprintf("*%s*", d.Request.Title)
	}
	return fmt.Sprintf("*%s*\n%s", d.Request.Title, d.Request.Body)
}

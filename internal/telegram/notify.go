// Package telegram posts captures to a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ttvsnap/ttvsnap/internal/models"
)

// Notifier sends saved captures as photos. By default only the first capture
// of each live session is sent.
type Notifier struct {
	api          BotAPI
	chatID       int64
	everyCapture bool
}

// NewNotifier creates a Notifier for chatID.
func NewNotifier(api BotAPI, chatID int64, everyCapture bool) *Notifier {
	return &Notifier{api: api, chatID: chatID, everyCapture: everyCapture}
}

// Name identifies the sink in logs and metrics.
func (n *Notifier) Name() string {
	return "telegram"
}

// Publish sends c unless it is filtered out by the session rule.
func (n *Notifier) Publish(ctx context.Context, c models.Capture) error {
	if !n.everyCapture && !c.FirstOfSession {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := c.Path
	if c.ThumbnailPath != "" && !c.FirstOfSession {
		path = c.ThumbnailPath
	}
	if err := n.api.SendPhoto(n.chatID, path, Caption(c)); err != nil {
		return fmt.Errorf("send photo to chat %d: %w", n.chatID, err)
	}
	return nil
}

// Caption renders the photo caption: "<channel> <captured_at>". The first
// capture of a session is marked live and carries the stream title and game.
func Caption(c models.Capture) string {
	caption := c.Channel + " " + c.CapturedAt.UTC().Format(time.RFC3339)
	if !c.FirstOfSession {
		return caption
	}
	caption += " (live)"
	if c.Title != "" {
		caption += "\n" + c.Title
	}
	if c.GameName != "" {
		caption += " [" + c.GameName + "]"
	}
	return caption
}

// Notify sends a one-off text message through api. Empty text is ignored.
func Notify(api BotAPI, chatID int64, text string) error {
	if api == nil || chatID == 0 || strings.TrimSpace(text) == "" {
		return nil
	}
	return api.SendMessage(chatID, text)
}

// Alerter sends operational text messages to one chat.
type Alerter struct {
	api    BotAPI
	chatID int64
}

// NewAlerter creates an Alerter for chatID.
func NewAlerter(api BotAPI, chatID int64) *Alerter {
	return &Alerter{api: api, chatID: chatID}
}

// Alert sends text unless ctx is already done.
func (a *Alerter) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := Notify(a.api, a.chatID, text); err != nil {
		return fmt.Errorf("send message to chat %d: %w", a.chatID, err)
	}
	return nil
}

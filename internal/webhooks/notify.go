package webhooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// Notifier tells the permitting team about automation events.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string) error { return nil }

// ShoutrrrNotifier fans a message out to every configured shoutrrr URL.
type ShoutrrrNotifier struct {
	sender *router.ServiceRouter
}

func NewShoutrrrNotifier(urls []string, timeout time.Duration) (*ShoutrrrNotifier, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one notification URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("create notification sender: %w", err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &ShoutrrrNotifier{sender: sender}, nil
}

func (n *ShoutrrrNotifier) Notify(ctx context.Context, title, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := types.Params{}
	if title != "" {
		params.SetTitle(title)
	}
	for _, err := range n.sender.Send(message, &params) {
		if err != nil {
			return fmt.Errorf("send notification: %w", err)
		}
	}
	return nil
}

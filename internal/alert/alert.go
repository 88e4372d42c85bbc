// Package alert delivers operational alerts for the validation pipeline.
// Delivery is best-effort: a broken notification channel must never stop the
// worker, so every failure is logged and swallowed.
package alert

import (
	"fmt"
	"io"
	stdlog "log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/brandonolsen23/cleo-pipeline/internal/logger"
)

// Notifier sends pipeline alerts to the configured channels.
type Notifier interface {
	Notify(title, message string)
}

// shoutrrrNotifier fans alerts out over shoutrrr service URLs
// (slack://..., discord://..., smtp://..., and so on).
type shoutrrrNotifier struct {
	sender *router.ServiceRouter
	log    *logger.Logger
}

// noopNotifier drops all alerts. Used when alerting is disabled.
type noopNotifier struct{}

func (noopNotifier) Notify(title, message string) {}

// NewNotifier creates a notifier for the given shoutrrr URLs. With no URLs
// (or alerting disabled) it returns a no-op notifier.
func NewNotifier(enabled bool, urls []string, log *logger.Logger) (Notifier, error) {
	if !enabled || len(urls) == 0 {
		return noopNotifier{}, nil
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert sender: %w", err)
	}
	sender.Timeout = 10 * time.Second
	sender.SetLogger(stdlog.New(io.Discard, "", 0))

	return &shoutrrrNotifier{
		sender: sender,
		log:    log.WithComponent("alerts"),
	}, nil
}

func (n *shoutrrrNotifier) Notify(title, message string) {
	params := types.Params{}
	params.SetTitle(title)

	for _, err := range n.sender.Send(message, &params) {
		if err != nil {
			n.log.Warn("Alert delivery failed", map[string]interface{}{
				"title": title,
				"error": err.Error(),
			})
		}
	}
}

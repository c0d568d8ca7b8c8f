package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/codeready-toolchain/medik/pkg/models"
)

// SlackNotifier posts messages to Slack channels via the Web API.
type SlackNotifier struct {
	api     *goslack.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewSlackNotifier creates a Slack notifier. Returns nil when token is
// empty (notifications disabled).
func NewSlackNotifier(token string) *SlackNotifier {
	if token == "" {
		return nil
	}
	return &SlackNotifier{
		api:     goslack.New(token),
		timeout: 10 * time.Second,
		logger:  slog.Default().With("component", "slack-notifier"),
	}
}

// NewSlackNotifierWithAPIURL targets a custom API URL. Useful for testing
// with a mock server.
func NewSlackNotifierWithAPIURL(token, apiURL string) *SlackNotifier {
	return &SlackNotifier{
		api:     goslack.New(token, goslack.OptionAPIURL(apiURL)),
		timeout: 10 * time.Second,
		logger:  slog.Default().With("component", "slack-notifier"),
	}
}

// Notify posts the message to the target channel.
func (s *SlackNotifier) Notify(ctx context.Context, target models.ReplyTarget, message string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, _, err := s.api.PostMessageContext(ctx, target.ChannelID,
		goslack.MsgOptionText(message, false))
	if err != nil {
		return fmt.Errorf("chat.postMessage to %s failed: %w", target.ChannelID, err)
	}
	return nil
}

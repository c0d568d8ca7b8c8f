// Package notify delivers human-facing messages to chat channels.
// Delivery is fail-open everywhere it is consumed: callers log notifier
// errors and continue.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codeready-toolchain/medik/pkg/models"
)

// Notifier sends a message to a reply target.
type Notifier interface {
	Notify(ctx context.Context, target models.ReplyTarget, message string) error
}

// Router dispatches notifications to the backend registered for the
// target's channel type.
type Router struct {
	mu       sync.RWMutex
	backends map[string]Notifier
	logger   *slog.Logger
}

// NewRouter creates an empty notification router.
func NewRouter() *Router {
	return &Router{
		backends: make(map[string]Notifier),
		logger:   slog.Default().With("component", "notify-router"),
	}
}

// Register binds a backend to a channel type (e.g. "slack").
func (r *Router) Register(channelType string, backend Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[channelType] = backend
	r.logger.Info("Notification backend registered", "channel_type", channelType)
}

// Notify routes the message by the target's channel type.
func (r *Router) Notify(ctx context.Context, target models.ReplyTarget, message string) error {
	r.mu.RLock()
	backend, ok := r.backends[target.ChannelType]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no notification backend for channel type %q", target.ChannelType)
	}
	return backend.Notify(ctx, target, message)
}

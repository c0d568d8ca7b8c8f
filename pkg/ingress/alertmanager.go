// Package ingress accepts Alertmanager webhook deliveries, authenticates
// them, and normalizes alerts into cluster events for the rule engine.
package ingress

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/medik/pkg/metrics"
	"github.com/codeready-toolchain/medik/pkg/models"
)

// Payload is the Alertmanager webhook body.
type Payload struct {
	Receiver string  `json:"receiver"`
	Status   string  `json:"status"`
	Alerts   []Alert `json:"alerts"`
}

// Alert is a single alert inside a webhook delivery.
type Alert struct {
	Status      string            `json:"status"`
	StartsAt    time.Time         `json:"startsAt"`
	EndsAt      time.Time         `json:"endsAt"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
}

// Sink receives normalized events. Implemented by the dispatcher.
type Sink interface {
	HandleEvent(ctx context.Context, event models.ClusterEvent) error
}

// Processor authenticates webhook deliveries and feeds normalized alerts
// into the sink.
type Processor struct {
	secret          string
	signatureHeader string
	timestampHeader string
	sink            Sink
	logger          *slog.Logger
	now             func() time.Time
}

// NewProcessor creates a webhook processor. An empty secret disables
// signature and replay checks.
func NewProcessor(secret, signatureHeader, timestampHeader string, sink Sink) *Processor {
	return &Processor{
		secret:          secret,
		signatureHeader: signatureHeader,
		timestampHeader: timestampHeader,
		sink:            sink,
		logger:          slog.Default().With("component", "alert-ingress"),
		now:             time.Now,
	}
}

// SignatureHeader returns the configured signature header name.
func (p *Processor) SignatureHeader() string { return p.signatureHeader }

// TimestampHeader returns the configured timestamp header name.
func (p *Processor) TimestampHeader() string { return p.timestampHeader }

// Authenticate verifies the request signature and, when a timestamp header
// was supplied, the replay window against the raw body. Skipped entirely
// when no secret is configured.
func (p *Processor) Authenticate(body []byte, signature, timestamp string) error {
	if p.secret == "" {
		return nil
	}
	if err := VerifySignature(p.secret, body, signature); err != nil {
		return err
	}
	// The timestamp header is optional; senders that omit it skip the
	// replay check, but a malformed one still rejects the delivery.
	if timestamp == "" {
		return nil
	}
	return CheckReplay(timestamp, p.now())
}

// Process normalizes every alert in the payload and hands the events to
// the sink. Sink failures are logged, not returned, so one bad alert does
// not reject the delivery. Returns the number of alerts processed.
func (p *Processor) Process(ctx context.Context, payload Payload) int {
	processed := 0
	for _, alert := range payload.Alerts {
		event := Normalize(alert, p.now().UTC())
		metrics.EventsEmitted.WithLabelValues(string(event.Type), "alertmanager").Inc()
		if err := p.sink.HandleEvent(ctx, event); err != nil {
			p.logger.Error("Failed to handle alert event",
				"alertname", alert.Labels["alertname"], "error", err)
		}
		processed++
	}
	p.logger.Info("Webhook delivery processed", "alerts", processed)
	return processed
}

// Normalize converts an Alertmanager alert into a cluster event. Missing
// labels fall back to defaults rather than failing: severity defaults to
// warning, status to firing, and the resource keeps whatever identifying
// labels the alert carried.
func Normalize(alert Alert, now time.Time) models.ClusterEvent {
	name := alert.Labels["pod"]
	if name == "" {
		name = alert.Labels["instance"]
	}

	message := alert.Annotations["summary"]
	if message == "" {
		message = alert.Annotations["description"]
	}
	if message == "" {
		message = alert.Labels["alertname"]
	}

	detectedAt := alert.StartsAt
	if detectedAt.IsZero() {
		detectedAt = now
	}

	return models.ClusterEvent{
		Type:     models.EventTypeAlertmanagerFiring,
		Severity: models.ParseSeverity(alert.Labels["severity"]),
		Resource: models.ResourceRef{
			Name:      name,
			Namespace: alert.Labels["namespace"],
		},
		Message:    message,
		Labels:     alert.Labels,
		DetectedAt: detectedAt,
		Status:     models.ParseAlertStatus(alert.Status),
	}
}

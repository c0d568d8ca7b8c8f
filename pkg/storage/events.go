package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeready-toolchain/medik/pkg/models"
)

// StoredEvent is a persisted cluster event row.
type StoredEvent struct {
	ID         int64               `json:"id"`
	Event      models.ClusterEvent `json:"event"`
	RecordedAt time.Time           `json:"recorded_at"`
}

// AppendEvent persists one cluster event to the history table.
func (c *Client) AppendEvent(ctx context.Context, event models.ClusterEvent) error {
	labels, err := json.Marshal(event.Labels)
	if err != nil {
		return fmt.Errorf("encoding event labels: %w", err)
	}
	if event.Labels == nil {
		labels = []byte("{}")
	}

	_, err = c.pool.Exec(ctx, `
		INSERT INTO cluster_events
			(event_type, severity, resource_kind, resource_name, resource_namespace,
			 message, labels, alert_status, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(event.Type), string(event.Severity),
		event.Resource.Kind, event.Resource.Name, event.Resource.Namespace,
		event.Message, labels, string(event.Status), event.DetectedAt)
	if err != nil {
		return fmt.Errorf("inserting cluster event: %w", err)
	}
	return nil
}

// RecentEvents returns the most recently detected events, newest first.
func (c *Client) RecentEvents(ctx context.Context, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.pool.Query(ctx, `
		SELECT id, event_type, severity, resource_kind, resource_name,
		       resource_namespace, message, labels, alert_status,
		       detected_at, recorded_at
		FROM cluster_events
		ORDER BY detected_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying cluster events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var (
			stored StoredEvent
			labels []byte
		)
		if err := rows.Scan(
			&stored.ID,
			&stored.Event.Type,
			&stored.Event.Severity,
			&stored.Event.Resource.Kind,
			&stored.Event.Resource.Name,
			&stored.Event.Resource.Namespace,
			&stored.Event.Message,
			&labels,
			&stored.Event.Status,
			&stored.Event.DetectedAt,
			&stored.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning cluster event: %w", err)
		}
		if len(labels) > 0 {
			if err := json.Unmarshal(labels, &stored.Event.Labels); err != nil {
				return nil, fmt.Errorf("decoding event labels: %w", err)
			}
		}
		events = append(events, stored)
	}
	return events, rows.Err()
}

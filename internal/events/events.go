// Package events publishes domain events to Kafka, or to the log when Kafka is disabled.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Topics
const (
	TopicTransferPosted      = "ledger.transfer_posted"
	TopicBalanceRecalculated = "ledger.balance_recalculated"
	TopicCampaignCompleted   = "campaign.completed"
)

// Event is the envelope written for every topic
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OrgID      string    `json:"org_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// New builds an event with a fresh id
func New(topic, orgID string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       topic,
		OrgID:      orgID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher delivers events. Publishing is best effort: callers log failures and move on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"veloryn/internal/model"
	"veloryn/internal/pubsub"
)

// TierChange is published whenever a reconciliation moves a user to another tier.
type TierChange struct {
	UserID         string     `json:"user_id"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	OldTier        model.Tier `json:"old_tier"`
	NewTier        model.Tier `json:"new_tier"`
	Status         string     `json:"status"`
	DroppedTickers []string   `json:"dropped_tickers,omitempty"`
	ChangedAt      time.Time  `json:"changed_at"`
}

// TierChangeNotifier tells downstream consumers (daily update mailer, analytics) about tier moves.
type TierChangeNotifier interface {
	NotifyTierChanged(ctx context.Context, change TierChange) error
}

type pubSubTierNotifier struct {
	publisher pubsub.Publisher
	topic     string
}

// NewPubSubTierNotifier publishes TierChange messages as JSON to topic.
func NewPubSubTierNotifier(publisher pubsub.Publisher, topic string) TierChangeNotifier {
	return &pubSubTierNotifier{publisher: publisher, topic: topic}
}

func (n *pubSubTierNotifier) NotifyTierChanged(ctx context.Context, change TierChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal tier change for user %s: %w", change.UserID, err)
	}
	if _, err := n.publisher.Publish(ctx, n.topic, payload); err != nil {
		return err
	}
	return nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyTierChanged(context.Context, TierChange) error { return nil }

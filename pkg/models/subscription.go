package models

import "time"

// SubscriptionState represents the state of a webhook subscription.
type SubscriptionState string

const (
	SubscriptionStateActive    SubscriptionState = "active"
	SubscriptionStateExpired   SubscriptionState = "expired"
	SubscriptionStateSuspended SubscriptionState = "suspended"
)

// WebhookSubscription is a registration with an upstream system asking it to
// deliver change notifications to TargetAddress. Subscriptions are renewed in
// place before Expiration; the ID never changes across renewals.
type WebhookSubscription struct {
	ID            string            `json:"id"`
	ChannelID     string            `json:"channel_id"`
	TargetAddress string            `json:"target_address"`
	ResourceID    string            `json:"resource_id"`
	ResourceType  string            `json:"resource_type"`
	Expiration    time.Time         `json:"expiration"`
	State         SubscriptionState `json:"state"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ExpiresWithin reports whether the subscription expires before now+window.
func (s *WebhookSubscription) ExpiresWithin(now time.Time, window time.Duration) bool {
	return !s.Expiration.After(now.Add(window))
}

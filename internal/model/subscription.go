// internal/model/subscription.go
package model

import (
    "encoding/json"
    "time"
)

// Subscription is a contact's opt-in state for one channel. At most one row
// exists per (contact_id, channel_id); reactivation flips the existing row
// instead of inserting a duplicate.
type Subscription struct {
    ID             int64      `db:"id" json:"id"`
    ContactID      int64      `db:"contact_id" json:"contact_id"`
    ChannelID      int64      `db:"channel_id" json:"channel_id"`
    Active         bool       `db:"active" json:"active"`
    SubscribedAt   time.Time  `db:"subscribed_at" json:"subscribed_at"`
    UnsubscribedAt *time.Time `db:"unsubscribed_at" json:"unsubscribed_at,omitempty"`
}

const (
    ActionSubscribe   = "subscribe"
    ActionUnsubscribe = "unsubscribe"
)

// SubscriptionEvent is the append-only audit record of one state flip.
type SubscriptionEvent struct {
    ID         int64           `db:"id" json:"id"`
    Action     string          `db:"action" json:"action"`
    ContactID  int64           `db:"contact_id" json:"contact_id"`
    ChannelID  int64           `db:"channel_id" json:"channel_id"`
    ExternalID string          `db:"external_id" json:"external_id"`
    Payload    json.RawMessage `db:"payload" json:"payload,omitempty"`
    CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/unclebandit/smsleopard-dispatch/internal/model"
)

// TransitionResult reports which contacts actually changed state. A contact
// already in the requested state appears in Untouched and emits no event.
type TransitionResult struct {
	Created     []int64 `json:"created"`
	Reactivated []int64 `json:"reactivated"`
	Deactivated []int64 `json:"deactivated"`
	Untouched   int     `json:"untouched"`
}

// Flipped is the total number of rows that changed state in this call.
func (t *TransitionResult) Flipped() int {
	return len(t.Created) + len(t.Reactivated) + len(t.Deactivated)
}

type SubscriptionRepositoryInterface interface {
	Activate(ctx context.Context, contactIDs []int64, channelID int64, externalID string, payload json.RawMessage) (*TransitionResult, error)
	Deactivate(ctx context.Context, contactIDs []int64, channelID int64, externalID string, payload json.RawMessage) (*TransitionResult, error)
	ChannelID(ctx context.Context, name string) (int64, error)
}

type SubscriptionRepository struct {
	DB *sql.DB
}

// ====================== Transitions ======================

// Activate flips inactive rows back to active and inserts rows for contacts
// with no row at all. Contacts already active are untouched. The whole call
// runs in one transaction so state flips and their audit events commit
// together; the unique index on (contact_id, channel_id) guards the insert
// path against concurrent activations.
func (r *SubscriptionRepository) Activate(ctx context.Context, contactIDs []int64, channelID int64, externalID string, payload json.RawMessage) (*TransitionResult, error) {
	result := &TransitionResult{Created: []int64{}, Reactivated: []int64{}, Deactivated: []int64{}}
	if len(contactIDs) == 0 {
		return result, nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. Which of these contacts already have a row for this channel?
	rows, err := tx.QueryContext(ctx, `
        SELECT contact_id, active
        FROM subscriptions
        WHERE channel_id = $1 AND contact_id = ANY($2)
    `, channelID, pq.Array(contactIDs))
	if err != nil {
		return nil, err
	}

	seen := map[int64]bool{}
	inactive := []int64{}
	for rows.Next() {
		var contactID int64
		var active bool
		if err := rows.Scan(&contactID, &active); err != nil {
			rows.Close()
			return nil, err
		}
		seen[contactID] = true
		if !active {
			inactive = append(inactive, contactID)
		} else {
			result.Untouched++
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	missing := []int64{}
	for _, id := range contactIDs {
		if !seen[id] {
			missing = append(missing, id)
		}
	}

	// 2. Flip existing inactive rows
	if len(inactive) > 0 {
		flipRows, err := tx.QueryContext(ctx, `
            UPDATE subscriptions
            SET active = TRUE, subscribed_at = NOW(), unsubscribed_at = NULL
            WHERE channel_id = $1 AND contact_id = ANY($2) AND active = FALSE
            RETURNING contact_id
        `, channelID, pq.Array(inactive))
		if err != nil {
			return nil, err
		}
		result.Reactivated, err = scanIDs(flipRows)
		if err != nil {
			return nil, err
		}
	}

	// 3. Insert rows for contacts with no row at all. ON CONFLICT DO NOTHING
	// plus RETURNING means a concurrent activate cannot produce a second row,
	// and we only count inserts that actually happened.
	if len(missing) > 0 {
		insRows, err := tx.QueryContext(ctx, `
            INSERT INTO subscriptions (contact_id, channel_id, active, subscribed_at)
            SELECT unnest($1::bigint[]), $2, TRUE, NOW()
            ON CONFLICT (contact_id, channel_id) DO NOTHING
            RETURNING contact_id
        `, pq.Array(missing), channelID)
		if err != nil {
			return nil, err
		}
		result.Created, err = scanIDs(insRows)
		if err != nil {
			return nil, err
		}
		result.Untouched += len(missing) - len(result.Created)
	}

	flipped := append(append([]int64{}, result.Reactivated...), result.Created...)
	if err := r.recordEvents(ctx, tx, model.ActionSubscribe, flipped, channelID, externalID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// Deactivate is the symmetric operation: only currently-active rows flip.
func (r *SubscriptionRepository) Deactivate(ctx context.Context, contactIDs []int64, channelID int64, externalID string, payload json.RawMessage) (*TransitionResult, error) {
	result := &TransitionResult{Created: []int64{}, Reactivated: []int64{}, Deactivated: []int64{}}
	if len(contactIDs) == 0 {
		return result, nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	flipRows, err := tx.QueryContext(ctx, `
        UPDATE subscriptions
        SET active = FALSE, unsubscribed_at = NOW()
        WHERE channel_id = $1 AND contact_id = ANY($2) AND active = TRUE
        RETURNING contact_id
    `, channelID, pq.Array(contactIDs))
	if err != nil {
		return nil, err
	}
	result.Deactivated, err = scanIDs(flipRows)
	if err != nil {
		return nil, err
	}
	result.Untouched = len(contactIDs) - len(result.Deactivated)

	if err := r.recordEvents(ctx, tx, model.ActionUnsubscribe, result.Deactivated, channelID, externalID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// ChannelID resolves a channel name to its row ID
func (r *SubscriptionRepository) ChannelID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT id FROM channels WHERE name = $1`, name).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("channel %q not found", name)
		}
		return 0, err
	}
	return id, nil
}

// recordEvents appends one audit event per flipped contact, inside the same
// transaction as the flips.
func (r *SubscriptionRepository) recordEvents(ctx context.Context, tx *sql.Tx, action string, contactIDs []int64, channelID int64, externalID string, payload json.RawMessage) error {
	if len(contactIDs) == 0 {
		return nil
	}
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}
	_, err := tx.ExecContext(ctx, `
        INSERT INTO subscription_events (action, contact_id, channel_id, external_id, payload, created_at)
        SELECT $1, unnest($2::bigint[]), $3, $4, $5, NOW()
    `, action, pq.Array(contactIDs), channelID, externalID, string(payload))
	return err
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ SubscriptionRepositoryInterface = (*SubscriptionRepository)(nil)

// internal/service/subscriptions.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/unclebandit/smsleopard-dispatch/internal/repository"
)

// SubscriptionService is the transition engine entry point used by the
// import pipelines. Both operations are idempotent: re-running a call with
// the same inputs flips nothing and emits no further events.
type SubscriptionService struct {
	SubscriptionRepo repository.SubscriptionRepositoryInterface
}

func (s *SubscriptionService) Activate(ctx context.Context, contactIDs []int64, channelID int64, externalID string, payload json.RawMessage) (*repository.TransitionResult, error) {
	ids := dedupIDs(contactIDs)
	if len(ids) == 0 {
		return &repository.TransitionResult{Created: []int64{}, Reactivated: []int64{}, Deactivated: []int64{}}, nil
	}

	result, err := s.SubscriptionRepo.Activate(ctx, ids, channelID, externalID, payload)
	if err != nil {
		// Store unreachable means nothing was committed: the repository
		// transaction keeps flips and events atomic.
		return nil, fmt.Errorf("activate subscriptions: %w", err)
	}

	log.Printf("[Subscriptions] activate channel=%d created=%d reactivated=%d untouched=%d",
		channelID, len(result.Created), len(result.Reactivated), result.Untouched)
	return result, nil
}

func (s *SubscriptionService) Deactivate(ctx context.Context, contactIDs []int64, channelID int64, externalID string, payload json.RawMessage) (*repository.TransitionResult, error) {
	ids := dedupIDs(contactIDs)
	if len(ids) == 0 {
		return &repository.TransitionResult{Created: []int64{}, Reactivated: []int64{}, Deactivated: []int64{}}, nil
	}

	result, err := s.SubscriptionRepo.Deactivate(ctx, ids, channelID, externalID, payload)
	if err != nil {
		return nil, fmt.Errorf("deactivate subscriptions: %w", err)
	}

	log.Printf("[Subscriptions] deactivate channel=%d deactivated=%d untouched=%d",
		channelID, len(result.Deactivated), result.Untouched)
	return result, nil
}

// ChannelID resolves a channel name for callers that only know the name
func (s *SubscriptionService) ChannelID(ctx context.Context, name string) (int64, error) {
	return s.SubscriptionRepo.ChannelID(ctx, name)
}

func dedupIDs(in []int64) []int64 {
	seen := map[int64]bool{}
	out := []int64{}
	for _, id := range in {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// internal/service/resolver.go
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	appErrors "github.com/unclebandit/smsleopard-dispatch/internal/errors"
	"github.com/unclebandit/smsleopard-dispatch/internal/model"
	"github.com/unclebandit/smsleopard-dispatch/internal/repository"
)

// Diagnostics distinguishes "zero recipients because the audience is empty"
// from "zero recipients because the lookup collaborator failed". Callers must
// never fan out when OK is false.
type Diagnostics struct {
	OK    bool
	Err   error
	Pages int
	Raw   int // recipient count before dedup
}

type Resolution struct {
	Recipients  []model.Recipient
	Diagnostics Diagnostics
}

// RecipientIDs returns the deduplicated recipient IDs in resolution order.
func (r *Resolution) RecipientIDs() []int64 {
	ids := make([]int64, len(r.Recipients))
	for i, rc := range r.Recipients {
		ids[i] = rc.ID
	}
	return ids
}

// TargetResolver turns a dispatch target into the concrete recipient set
type TargetResolver struct {
	ContactRepo   repository.ContactRepositoryInterface
	LookupTimeout time.Duration
}

// Resolve produces the deduplicated audience for a target. Direct contact
// targets pass through without any lookup; list and organization targets
// drain the paged lookup to the last page before returning.
func (t *TargetResolver) Resolve(ctx context.Context, target model.DispatchTarget) *Resolution {
	switch target.Kind {
	case model.TargetContact:
		recipients := dedupRecipients(directRecipients(target.ContactIDs))
		return &Resolution{
			Recipients:  recipients,
			Diagnostics: Diagnostics{OK: true, Raw: len(target.ContactIDs)},
		}

	case model.TargetList, model.TargetOrganization:
		return t.resolveLookup(ctx, target)

	default:
		err := fmt.Errorf("unknown target kind %q", target.Kind)
		return &Resolution{Recipients: []model.Recipient{}, Diagnostics: Diagnostics{Err: err}}
	}
}

func (t *TargetResolver) resolveLookup(ctx context.Context, target model.DispatchTarget) *Resolution {
	ref := target.ListID
	if target.Kind == model.TargetOrganization {
		ref = target.OrgID
	}

	raw := []model.Recipient{}
	pages := 0
	pageToken := ""
	for {
		pageCtx, cancel := context.WithTimeout(ctx, t.lookupTimeout())
		page, err := t.ContactRepo.FetchPage(pageCtx, target.Kind, ref, pageToken)
		cancel()
		if err != nil {
			// A lookup failure is not a valid empty audience; the caller
			// must not proceed.
			lookupErr := appErrors.NewTargetLookup(string(target.Kind), ref, err)
			log.Printf("[Resolver] %v", lookupErr)
			return &Resolution{
				Recipients:  []model.Recipient{},
				Diagnostics: Diagnostics{Err: lookupErr, Pages: pages},
			}
		}

		raw = append(raw, page.Contacts...)
		pages++
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	recipients := dedupRecipients(raw)
	if len(recipients) == 0 {
		log.Printf("[Resolver] %s %d resolved to an empty audience", target.Kind, ref)
	}
	return &Resolution{
		Recipients:  recipients,
		Diagnostics: Diagnostics{OK: true, Pages: pages, Raw: len(raw)},
	}
}

func (t *TargetResolver) lookupTimeout() time.Duration {
	if t.LookupTimeout > 0 {
		return t.LookupTimeout
	}
	return 10 * time.Second
}

func directRecipients(ids []int64) []model.Recipient {
	out := make([]model.Recipient, len(ids))
	for i, id := range ids {
		out[i] = model.Recipient{ID: id}
	}
	return out
}

// dedupRecipients keeps the first occurrence of each contact, preserving
// order so expansion stays deterministic.
func dedupRecipients(in []model.Recipient) []model.Recipient {
	seen := map[int64]bool{}
	out := []model.Recipient{}
	for _, rc := range in {
		if seen[rc.ID] {
			continue
		}
		seen[rc.ID] = true
		out = append(out, rc)
	}
	return out
}

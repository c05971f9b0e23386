package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/unclebandit/smsleopard-dispatch/internal/errors"
	"github.com/unclebandit/smsleopard-dispatch/internal/model"
	"github.com/unclebandit/smsleopard-dispatch/internal/repository"
	"github.com/unclebandit/smsleopard-dispatch/internal/service"
)

// mockContactRepo serves canned pages keyed by page token
type mockContactRepo struct {
	pages     map[string]*repository.ContactPage
	err       error
	failToken string // FetchPage fails when asked for this token
	calls     int
}

func (m *mockContactRepo) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	return nil, nil
}

func (m *mockContactRepo) FetchPage(ctx context.Context, kind model.TargetKind, ref int64, pageToken string) (*repository.ContactPage, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.failToken != "" && pageToken == m.failToken {
		return nil, fmt.Errorf("boom")
	}
	page, ok := m.pages[pageToken]
	if !ok {
		return &repository.ContactPage{Contacts: []model.Recipient{}}, nil
	}
	return page, nil
}

func TestResolveContactPassThrough(t *testing.T) {
	resolver := &service.TargetResolver{ContactRepo: &mockContactRepo{}}

	res := resolver.Resolve(context.Background(), model.DispatchTarget{
		Kind:       model.TargetContact,
		ContactIDs: []int64{7, 3, 7},
	})

	assert.True(t, res.Diagnostics.OK)
	assert.Equal(t, []int64{7, 3}, res.RecipientIDs(), "duplicates collapse, order preserved")
}

func TestResolveListDrainsAllPages(t *testing.T) {
	repo := &mockContactRepo{pages: map[string]*repository.ContactPage{
		"": {
			Contacts:      []model.Recipient{{ID: 1, Email: "a@x.com"}, {ID: 2, Email: "b@x.com"}},
			NextPageToken: "2",
		},
		"2": {
			Contacts: []model.Recipient{{ID: 3, Email: "c@x.com"}, {ID: 1, Email: "a@x.com"}},
		},
	}}
	resolver := &service.TargetResolver{ContactRepo: repo}

	res := resolver.Resolve(context.Background(), model.DispatchTarget{
		Kind:   model.TargetList,
		ListID: 42,
	})

	assert.True(t, res.Diagnostics.OK)
	assert.Equal(t, 2, res.Diagnostics.Pages)
	assert.Equal(t, 4, res.Diagnostics.Raw)
	assert.Equal(t, []int64{1, 2, 3}, res.RecipientIDs(), "second page drained, repeat dropped")
}

func TestResolveEmptyListIsValid(t *testing.T) {
	resolver := &service.TargetResolver{ContactRepo: &mockContactRepo{}}

	res := resolver.Resolve(context.Background(), model.DispatchTarget{
		Kind:   model.TargetList,
		ListID: 42,
	})

	assert.True(t, res.Diagnostics.OK, "empty audience is not an error")
	assert.NoError(t, res.Diagnostics.Err)
	assert.Empty(t, res.Recipients)
}

func TestResolveLookupFailureIsNotEmpty(t *testing.T) {
	resolver := &service.TargetResolver{ContactRepo: &mockContactRepo{err: fmt.Errorf("db down")}}

	res := resolver.Resolve(context.Background(), model.DispatchTarget{
		Kind:   model.TargetList,
		ListID: 42,
	})

	assert.False(t, res.Diagnostics.OK, "a failed lookup must be distinguishable from an empty audience")
	assert.Error(t, res.Diagnostics.Err)
	assert.Empty(t, res.Recipients)

	var lookupErr *appErrors.ErrTargetLookup
	assert.ErrorAs(t, res.Diagnostics.Err, &lookupErr)
	assert.Equal(t, int64(42), lookupErr.Ref)
}

func TestResolveLookupFailureOnLaterPage(t *testing.T) {
	repo := &mockContactRepo{
		pages: map[string]*repository.ContactPage{
			"": {
				Contacts:      []model.Recipient{{ID: 1}},
				NextPageToken: "1",
			},
		},
		failToken: "1",
	}
	resolver := &service.TargetResolver{ContactRepo: repo}

	res := resolver.Resolve(context.Background(), model.DispatchTarget{
		Kind:  model.TargetOrganization,
		OrgID: 9,
	})

	assert.False(t, res.Diagnostics.OK)
	assert.Empty(t, res.Recipients, "a partially drained lookup must not leak a partial audience")
}

func TestResolveUnknownKind(t *testing.T) {
	resolver := &service.TargetResolver{ContactRepo: &mockContactRepo{}}

	res := resolver.Resolve(context.Background(), model.DispatchTarget{Kind: "segment"})

	assert.False(t, res.Diagnostics.OK)
	assert.Error(t, res.Diagnostics.Err)
}

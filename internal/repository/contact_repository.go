package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/unclebandit/smsleopard-dispatch/internal/model"
)

// lookupPageSize is how many contacts one FetchPage call returns at most.
const lookupPageSize = 500

// ContactPage is one page of a target lookup. An empty NextPageToken means
// the lookup is fully drained.
type ContactPage struct {
	Contacts      []model.Recipient
	NextPageToken string
}

// ContactRepositoryInterface defines the contact-lookup collaborator used by
// the target resolver
type ContactRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*model.Contact, error)
	FetchPage(ctx context.Context, kind model.TargetKind, ref int64, pageToken string) (*ContactPage, error)
}

// ContactRepository is the concrete implementation
type ContactRepository struct {
	DB *sql.DB
}

// GetByID fetches a contact by ID
func (r *ContactRepository) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	query := `
        SELECT id, email, name, organization_id
        FROM contacts
        WHERE id = $1
    `
	row := r.DB.QueryRowContext(ctx, query, id)

	var c model.Contact
	if err := row.Scan(&c.ID, &c.Email, &c.Name, &c.OrganizationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &c, nil
}

// FetchPage returns one page of the list or organization membership. The page
// token is the offset of the next page; callers loop until it comes back empty.
func (r *ContactRepository) FetchPage(ctx context.Context, kind model.TargetKind, ref int64, pageToken string) (*ContactPage, error) {
	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return nil, fmt.Errorf("invalid page token %q: %w", pageToken, err)
		}
		offset = n
	}

	var query string
	switch kind {
	case model.TargetList:
		query = `
            SELECT c.id, c.email, c.name
            FROM contacts c
            JOIN list_memberships m ON m.contact_id = c.id
            WHERE m.list_id = $1
            ORDER BY c.id
            LIMIT $2 OFFSET $3
        `
	case model.TargetOrganization:
		query = `
            SELECT id, email, name
            FROM contacts
            WHERE organization_id = $1
            ORDER BY id
            LIMIT $2 OFFSET $3
        `
	default:
		return nil, fmt.Errorf("fetch page does not support target kind %q", kind)
	}

	rows, err := r.DB.QueryContext(ctx, query, ref, lookupPageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := &ContactPage{Contacts: []model.Recipient{}}
	for rows.Next() {
		var rc model.Recipient
		if err := rows.Scan(&rc.ID, &rc.Email, &rc.Name); err != nil {
			return nil, err
		}
		page.Contacts = append(page.Contacts, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(page.Contacts) == lookupPageSize {
		page.NextPageToken = strconv.Itoa(offset + lookupPageSize)
	}
	return page, nil
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/smsleopard-dispatch/internal/errors"
	"github.com/unclebandit/smsleopard-dispatch/internal/model"
)

type JobRepositoryInterface interface {
	Create(ctx context.Context, job *model.DispatchJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.DispatchJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	ListBulk(ctx context.Context, offset, limit int) ([]*model.DispatchJob, int, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]*model.DispatchJob, error)
}

type JobRepository struct {
	DB *sql.DB
}

// ====================== Job tracking ======================

func (r *JobRepository) Create(ctx context.Context, job *model.DispatchJob) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	query := `
        INSERT INTO dispatch_jobs (id, parent_job_id, kind, recipient_id, channel, payload_ref, label, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err := r.DB.ExecContext(ctx, query,
		job.ID, job.ParentJobID, job.Kind, job.RecipientID,
		job.Channel, job.PayloadRef, job.Label, job.Status, job.CreatedAt,
	)
	return err
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.DispatchJob, error) {
	query := `
        SELECT id, parent_job_id, kind, recipient_id, channel, payload_ref, label, status, created_at
        FROM dispatch_jobs WHERE id = $1
    `
	var j model.DispatchJob
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&j.ID, &j.ParentJobID, &j.Kind, &j.RecipientID,
		&j.Channel, &j.PayloadRef, &j.Label, &j.Status, &j.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewJobNotFound(id.String())
		}
		return nil, err
	}
	return &j, nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE dispatch_jobs SET status = $1 WHERE id = $2`
	_, err := r.DB.ExecContext(ctx, query, status, id)
	return err
}

// ListBulk returns a page of parent jobs, newest first
func (r *JobRepository) ListBulk(ctx context.Context, offset, limit int) ([]*model.DispatchJob, int, error) {
	jobs := []*model.DispatchJob{}
	query := `
        SELECT id, parent_job_id, kind, recipient_id, channel, payload_ref, label, status, created_at
        FROM dispatch_jobs
        WHERE kind = 'bulk'
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2
    `
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		j := &model.DispatchJob{}
		if err := rows.Scan(
			&j.ID, &j.ParentJobID, &j.Kind, &j.RecipientID,
			&j.Channel, &j.PayloadRef, &j.Label, &j.Status, &j.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM dispatch_jobs WHERE kind = 'bulk'`).Scan(&total); err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

// ListChildren returns the atomic jobs fanned out from one parent. The
// parent reference is lookup-only; deleting a parent never cascades here.
func (r *JobRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*model.DispatchJob, error) {
	query := `
        SELECT id, parent_job_id, kind, recipient_id, channel, payload_ref, label, status, created_at
        FROM dispatch_jobs
        WHERE parent_job_id = $1
        ORDER BY created_at, id
    `
	rows, err := r.DB.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*model.DispatchJob{}
	for rows.Next() {
		j := &model.DispatchJob{}
		if err := rows.Scan(
			&j.ID, &j.ParentJobID, &j.Kind, &j.RecipientID,
			&j.Channel, &j.PayloadRef, &j.Label, &j.Status, &j.CreatedAt,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

var _ JobRepositoryInterface = (*JobRepository)(nil)

// internal/service/dispatch_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/smsleopard-dispatch/internal/model"
	"github.com/unclebandit/smsleopard-dispatch/internal/queue"
	"github.com/unclebandit/smsleopard-dispatch/internal/repository"
)

type DispatchService struct {
	Resolver   *TargetResolver
	Expander   *FanOutExpander
	Reconciler *ReconcileEngine
	JobRepo    repository.JobRepositoryInterface
	Logs       queue.LogStore
}

// JobSummary is the admin-facing job status shape: the raw logs verbatim
// plus the best-effort structured failure tables, computed fresh per request.
type JobSummary struct {
	ID             uuid.UUID                  `json:"id"`
	Label          string                     `json:"label"`
	CreatedAt      time.Time                  `json:"created_at"`
	Type           string                     `json:"type"`
	Status         string                     `json:"status"`
	Logs           []string                   `json:"logs"`
	FailedContacts []model.FailedContact      `json:"failed_contacts"`
	FailedOrgs     []model.FailedOrganization `json:"failed_orgs"`
}

// Accept validates and records the bulk request, returning the parent job.
// It does not wait for fan-out; callers run Run in the background.
func (s *DispatchService) Accept(ctx context.Context, target model.DispatchTarget, channels []string, payloadRef, label string) (*model.DispatchRequest, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("at least one channel is required")
	}

	req := &model.DispatchRequest{
		ID:         uuid.New(),
		Target:     target,
		Channels:   channels,
		PayloadRef: payloadRef,
		Label:      label,
		CreatedAt:  time.Now(),
	}

	parent := &model.DispatchJob{
		ID:         req.ID,
		Kind:       model.JobKindBulk,
		PayloadRef: payloadRef,
		Label:      label,
		Status:     model.JobStatusAccepted,
		CreatedAt:  req.CreatedAt,
	}
	if err := s.JobRepo.Create(ctx, parent); err != nil {
		return nil, fmt.Errorf("failed to record dispatch request: %w", err)
	}
	return req, nil
}

// Run resolves the audience and fans it out. It is the long-running half of
// a dispatch and is meant to run off the request path.
func (s *DispatchService) Run(ctx context.Context, req *model.DispatchRequest) {
	res := s.Resolver.Resolve(ctx, req.Target)
	if !res.Diagnostics.OK {
		log.Printf("[Dispatch] request %s: resolution failed: %v", req.ID, res.Diagnostics.Err)
		s.setStatus(req.ID, model.JobStatusFailed)
		s.appendLog(req.ID, fmt.Sprintf("failed to resolve target: %v", res.Diagnostics.Err))
		return
	}

	if len(res.Recipients) == 0 {
		// A genuinely empty audience is a valid outcome: nothing to enqueue.
		log.Printf("[Dispatch] request %s: empty audience, nothing to enqueue", req.ID)
		s.setStatus(req.ID, model.JobStatusDispatched)
		s.appendLog(req.ID, "audience resolved to zero recipients")
		return
	}

	s.setStatus(req.ID, model.JobStatusSending)
	result := s.Expander.Expand(ctx, req, res.Recipients)

	// Partial enqueue failures leave the batch dispatched, not failed.
	s.setStatus(req.ID, model.JobStatusDispatched)
	if result.Failed > 0 {
		s.appendLog(req.ID, fmt.Sprintf("dispatched with %d enqueue failures", result.Failed))
	}
}

// JobStatus returns one page of bulk jobs with reconciliation applied to
// each, in bounded parallel.
func (s *DispatchService) JobStatus(ctx context.Context, page, pageSize int) ([]JobSummary, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	jobs, total, err := s.JobRepo.ListBulk(ctx, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID.String()
	}
	reports := s.Reconciler.ReconcileAll(ctx, ids)

	summaries := make([]JobSummary, len(jobs))
	for i, j := range jobs {
		summaries[i] = summarize(j, reports[j.ID.String()])
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return summaries, pagination, nil
}

// JobStatusByID reconciles a single job.
func (s *DispatchService) JobStatusByID(ctx context.Context, id uuid.UUID) (*JobSummary, error) {
	job, err := s.JobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := summarize(job, s.Reconciler.Reconcile(ctx, job.ID.String()))
	return &summary, nil
}

func summarize(job *model.DispatchJob, report model.JobReport) JobSummary {
	return JobSummary{
		ID:             job.ID,
		Label:          job.Label,
		CreatedAt:      job.CreatedAt,
		Type:           job.Kind,
		Status:         job.Status,
		Logs:           report.Logs,
		FailedContacts: report.FailedContacts,
		FailedOrgs:     report.FailedOrgs,
	}
}

func (s *DispatchService) setStatus(id uuid.UUID, status string) {
	if err := s.JobRepo.UpdateStatus(context.Background(), id, status); err != nil {
		log.Printf("[Dispatch] failed to update job %s status to %s: %v", id, status, err)
	}
}

func (s *DispatchService) appendLog(id uuid.UUID, line string) {
	if err := s.Logs.Append(context.Background(), id.String(), line); err != nil {
		log.Printf("[Dispatch] failed to append log for job %s: %v", id, err)
	}
}

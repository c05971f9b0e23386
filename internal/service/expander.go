// internal/service/expander.go
package service

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/smsleopard-dispatch/internal/model"
	"github.com/unclebandit/smsleopard-dispatch/internal/queue"
	"github.com/unclebandit/smsleopard-dispatch/internal/repository"
)

// FanOutExpander turns one accepted request into its atomic delivery jobs,
// one per (recipient, channel) pair, each stamped with the parent job ID.
type FanOutExpander struct {
	JobRepo        repository.JobRepositoryInterface
	Queue          queue.Enqueuer
	QueueName      string
	Workers        int
	EnqueueTimeout time.Duration
}

type ExpandResult struct {
	Enqueued int64 `json:"enqueued"`
	Failed   int64 `json:"failed"`
}

// Expand walks recipients × channels in recipient-major order. Each pair is
// recorded and enqueued independently: one failure is logged with enough
// context for manual replay and never aborts the rest of the product.
// Cancelling ctx stops further enqueues but lets in-flight ones finish.
func (e *FanOutExpander) Expand(ctx context.Context, req *model.DispatchRequest, recipients []model.Recipient) *ExpandResult {
	result := &ExpandResult{}
	if len(recipients) == 0 || len(req.Channels) == 0 {
		return result
	}

	g := &errgroup.Group{}
	g.SetLimit(e.workers())

pairs:
	for _, rc := range recipients {
		for _, channel := range req.Channels {
			if ctx.Err() != nil {
				log.Printf("[Expander] request %s cancelled, stopping further enqueues", req.ID)
				break pairs
			}
			rc, channel := rc, channel
			g.Go(func() error {
				e.dispatchOne(req, rc, channel, result)
				return nil
			})
		}
	}

	g.Wait()
	log.Printf("[Expander] request %s: enqueued=%d failed=%d", req.ID, result.Enqueued, result.Failed)
	return result
}

func (e *FanOutExpander) dispatchOne(req *model.DispatchRequest, rc model.Recipient, channel string, result *ExpandResult) {
	recipientID := rc.ID
	job := &model.DispatchJob{
		ID:          uuid.New(),
		ParentJobID: &req.ID,
		Kind:        model.JobKindAtomic,
		RecipientID: &recipientID,
		Channel:     channel,
		PayloadRef:  req.PayloadRef,
		Label:       req.Label,
		Status:      model.JobStatusQueued,
	}

	// Once a pair is scheduled it runs to completion; cancellation only
	// stops pairs that have not started yet.
	jobCtx, cancelJob := context.WithTimeout(context.Background(), e.enqueueTimeout())
	defer cancelJob()

	if err := e.JobRepo.Create(jobCtx, job); err != nil {
		log.Printf("[Expander] failed to record job: request=%s recipient=%d channel=%s: %v",
			req.ID, rc.ID, channel, err)
		atomic.AddInt64(&result.Failed, 1)
		return
	}

	payload := model.DeliveryPayload{
		JobID:       job.ID,
		ParentJobID: req.ID,
		RecipientID: rc.ID,
		Email:       rc.Email,
		Name:        rc.Name,
		Channel:     channel,
		PayloadRef:  req.PayloadRef,
	}

	enqCtx, cancel := context.WithTimeout(context.Background(), e.enqueueTimeout())
	err := e.Queue.Enqueue(enqCtx, e.QueueName, payload)
	cancel()
	if err != nil {
		transient := queue.IsTransient(err)
		log.Printf("[Expander] failed to enqueue job: request=%s recipient=%d channel=%s transient=%v: %v",
			req.ID, rc.ID, channel, transient, err)
		if uerr := e.JobRepo.UpdateStatus(context.Background(), job.ID, model.JobStatusFailed); uerr != nil {
			log.Printf("[Expander] failed to mark job %s failed: %v", job.ID, uerr)
		}
		atomic.AddInt64(&result.Failed, 1)
		return
	}

	atomic.AddInt64(&result.Enqueued, 1)
}

func (e *FanOutExpander) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return 8
}

func (e *FanOutExpander) enqueueTimeout() time.Duration {
	if e.EnqueueTimeout > 0 {
		return e.EnqueueTimeout
	}
	return 5 * time.Second
}

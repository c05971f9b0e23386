// internal/model/dispatch.go
package model

import (
    "time"

    "github.com/google/uuid"
)

type TargetKind string

const (
    TargetContact      TargetKind = "contact"
    TargetList         TargetKind = "list"
    TargetOrganization TargetKind = "organization"
)

// DispatchTarget is the closed set of ways a bulk request can address its
// audience. Exactly one of the ref fields is meaningful, selected by Kind.
type DispatchTarget struct {
    Kind       TargetKind `json:"kind"`
    ContactIDs []int64    `json:"contact_ids,omitempty"`
    ListID     int64      `json:"list_id,omitempty"`
    OrgID      int64      `json:"org_id,omitempty"`
}

// DispatchRequest is the accepted bulk intent. It is transient: once the
// parent job row exists and fan-out has run, only the jobs remain.
type DispatchRequest struct {
    ID         uuid.UUID      `json:"id"`
    Target     DispatchTarget `json:"target"`
    Channels   []string       `json:"channels"`
    PayloadRef string         `json:"payload_ref"`
    Label      string         `json:"label"`
    CreatedAt  time.Time      `json:"created_at"`
}

const (
    JobKindBulk   = "bulk"
    JobKindAtomic = "atomic"
)

const (
    JobStatusAccepted   = "accepted"
    JobStatusSending    = "sending"
    JobStatusDispatched = "dispatched"
    JobStatusQueued     = "queued"
    JobStatusSent       = "sent"
    JobStatusFailed     = "failed"
)

// DispatchJob is one row in the job-tracking table. A bulk row is the parent
// of its atomic children via ParentJobID; the reference is non-owning and
// never cascades.
type DispatchJob struct {
    ID          uuid.UUID  `db:"id" json:"id"`
    ParentJobID *uuid.UUID `db:"parent_job_id" json:"parent_job_id,omitempty"`
    Kind        string     `db:"kind" json:"kind"`
    RecipientID *int64     `db:"recipient_id" json:"recipient_id,omitempty"`
    Channel     string     `db:"channel" json:"channel,omitempty"`
    PayloadRef  string     `db:"payload_ref" json:"payload_ref"`
    Label       string     `db:"label" json:"label"`
    Status      string     `db:"status" json:"status"`
    CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// DeliveryPayload is the broker message body for one atomic job. Recipient
// identity is attached at expansion time so the delivery worker never has to
// re-resolve the audience.
type DeliveryPayload struct {
    JobID       uuid.UUID `json:"job_id"`
    ParentJobID uuid.UUID `json:"parent_job_id"`
    RecipientID int64     `json:"recipient_id"`
    Email       string    `json:"email,omitempty"`
    Name        string    `json:"name,omitempty"`
    Channel     string    `json:"channel"`
    PayloadRef  string    `json:"payload_ref"`
}

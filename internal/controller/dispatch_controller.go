// internal/controller/dispatch_controller.go
package controller

import (
    "context"
    "encoding/json"
    "log"
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"
    "github.com/google/uuid"

    appErrors "github.com/unclebandit/smsleopard-dispatch/internal/errors"
    "github.com/unclebandit/smsleopard-dispatch/internal/model"
    "github.com/unclebandit/smsleopard-dispatch/internal/service"
)

type DispatchController struct {
    DispatchService *service.DispatchService
}

type dispatchBody struct {
    TargetKind string          `json:"target_kind"`
    TargetRef  json.RawMessage `json:"target_ref"`
    Channels   []string        `json:"channels"`
    PayloadRef string          `json:"payload_ref"`
    Label      string          `json:"label"`
}

// Dispatch accepts a bulk request and returns 202 with the parent job ID.
// Resolution and fan-out happen in the background.
func (c *DispatchController) Dispatch(w http.ResponseWriter, r *http.Request) {
    var body dispatchBody
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }

    target, err := parseTarget(body.TargetKind, body.TargetRef)
    if err != nil {
        http.Error(w, err.Error(), http.StatusBadRequest)
        return
    }
    if len(body.Channels) == 0 {
        http.Error(w, "channels must not be empty", http.StatusBadRequest)
        return
    }
    for _, ch := range body.Channels {
        if ch == "" {
            http.Error(w, "channel names must not be empty", http.StatusBadRequest)
            return
        }
    }

    req, err := c.DispatchService.Accept(r.Context(), target, body.Channels, body.PayloadRef, body.Label)
    if err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }

    go c.DispatchService.Run(context.Background(), req)

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusAccepted)
    json.NewEncoder(w).Encode(map[string]interface{}{
        "job_id": req.ID,
        "status": "accepted",
    })
}

// ListJobs returns paginated bulk job summaries with reconciliation applied
func (c *DispatchController) ListJobs(w http.ResponseWriter, r *http.Request) {
    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 20
    }

    summaries, pagination, err := c.DispatchService.JobStatus(r.Context(), page, pageSize)
    if err != nil {
        log.Println("failed to list jobs:", err)
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "data":       summaries,
        "pagination": pagination,
    })
}

// GetJob returns one job's summary
func (c *DispatchController) GetJob(w http.ResponseWriter, r *http.Request) {
    idStr := chi.URLParam(r, "id")
    id, err := uuid.Parse(idStr)
    if err != nil {
        http.Error(w, "invalid job id", http.StatusBadRequest)
        return
    }

    summary, err := c.DispatchService.JobStatusByID(r.Context(), id)
    if err != nil {
        if _, ok := err.(*appErrors.ErrJobNotFound); ok {
            http.Error(w, err.Error(), http.StatusNotFound)
            return
        }
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(summary)
}

// parseTarget resolves the request into exactly one closed dispatch variant.
// Payloads that fit none of the variants are rejected here rather than
// falling through to a second direct-send path.
func parseTarget(kind string, ref json.RawMessage) (model.DispatchTarget, error) {
    switch model.TargetKind(kind) {
    case model.TargetContact:
        // target_ref is a single ID or an array of IDs
        var one int64
        if err := json.Unmarshal(ref, &one); err == nil {
            return model.DispatchTarget{Kind: model.TargetContact, ContactIDs: []int64{one}}, nil
        }
        var many []int64
        if err := json.Unmarshal(ref, &many); err == nil && len(many) > 0 {
            return model.DispatchTarget{Kind: model.TargetContact, ContactIDs: many}, nil
        }
        return model.DispatchTarget{}, errBadTarget("contact target_ref must be an ID or array of IDs")

    case model.TargetList:
        var id int64
        if err := json.Unmarshal(ref, &id); err != nil {
            return model.DispatchTarget{}, errBadTarget("list target_ref must be an ID")
        }
        return model.DispatchTarget{Kind: model.TargetList, ListID: id}, nil

    case model.TargetOrganization:
        var id int64
        if err := json.Unmarshal(ref, &id); err != nil {
            return model.DispatchTarget{}, errBadTarget("organization target_ref must be an ID")
        }
        return model.DispatchTarget{Kind: model.TargetOrganization, OrgID: id}, nil

    default:
        return model.DispatchTarget{}, errBadTarget("target_kind must be contact, list or organization")
    }
}

type badTargetError string

func (e badTargetError) Error() string { return string(e) }

func errBadTarget(msg string) error { return badTargetError(msg) }

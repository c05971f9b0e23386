package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/smsleopard-dispatch/internal/controller"
	appErrors "github.com/unclebandit/smsleopard-dispatch/internal/errors"
	"github.com/unclebandit/smsleopard-dispatch/internal/model"
	"github.com/unclebandit/smsleopard-dispatch/internal/repository"
	"github.com/unclebandit/smsleopard-dispatch/internal/service"
)

// --- Mock collaborators ---

type mockJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*model.DispatchJob
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{jobs: map[uuid.UUID]*model.DispatchJob{}}
}

func (m *mockJobRepo) Create(ctx context.Context, job *model.DispatchJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *mockJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.DispatchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, appErrors.NewJobNotFound(id.String())
	}
	return job, nil
}

func (m *mockJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = status
	}
	return nil
}

func (m *mockJobRepo) ListBulk(ctx context.Context, offset, limit int) ([]*model.DispatchJob, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.DispatchJob{}
	for _, j := range m.jobs {
		if j.Kind == model.JobKindBulk {
			out = append(out, j)
		}
	}
	return out, len(out), nil
}

func (m *mockJobRepo) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*model.DispatchJob, error) {
	return nil, nil
}

type mockContactRepo struct{}

func (m *mockContactRepo) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	return nil, nil
}

func (m *mockContactRepo) FetchPage(ctx context.Context, kind model.TargetKind, ref int64, pageToken string) (*repository.ContactPage, error) {
	return &repository.ContactPage{Contacts: []model.Recipient{}}, nil
}

type mockEnqueuer struct{}

func (m *mockEnqueuer) Enqueue(ctx context.Context, queueName string, payload model.DeliveryPayload) error {
	return nil
}

type mockLogStore struct {
	mu   sync.Mutex
	logs map[string][]string
}

func (m *mockLogStore) FetchLogs(ctx context.Context, jobID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logs[jobID], nil
}

func (m *mockLogStore) Append(ctx context.Context, jobID string, lines ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.logs == nil {
		m.logs = map[string][]string{}
	}
	m.logs[jobID] = append(m.logs[jobID], lines...)
	return nil
}

// --- Helpers ---

func newRouter(jobs *mockJobRepo, logs *mockLogStore) *chi.Mux {
	svc := &service.DispatchService{
		Resolver:   &service.TargetResolver{ContactRepo: &mockContactRepo{}},
		Expander:   &service.FanOutExpander{JobRepo: jobs, Queue: &mockEnqueuer{}, QueueName: "dispatch_sends"},
		Reconciler: &service.ReconcileEngine{Logs: logs},
		JobRepo:    jobs,
		Logs:       logs,
	}
	c := &controller.DispatchController{DispatchService: svc}

	r := chi.NewRouter()
	r.Post("/dispatch", c.Dispatch)
	r.Get("/jobs", c.ListJobs)
	r.Get("/jobs/{id}", c.GetJob)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// --- Tests ---

func TestDispatchAccepted(t *testing.T) {
	r := newRouter(newMockJobRepo(), &mockLogStore{})

	w := postJSON(t, r, "/dispatch", map[string]interface{}{
		"target_kind": "list",
		"target_ref":  42,
		"channels":    []string{"email", "sms"},
		"payload_ref": "comp-1",
	})

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	_, err := uuid.Parse(resp.JobID)
	assert.NoError(t, err)
}

func TestDispatchContactArrayRef(t *testing.T) {
	jobs := newMockJobRepo()
	r := newRouter(jobs, &mockLogStore{})

	w := postJSON(t, r, "/dispatch", map[string]interface{}{
		"target_kind": "contact",
		"target_ref":  []int64{1, 2},
		"channels":    []string{"email"},
	})

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestDispatchRejectsUnknownKind(t *testing.T) {
	r := newRouter(newMockJobRepo(), &mockLogStore{})

	w := postJSON(t, r, "/dispatch", map[string]interface{}{
		"target_kind": "segment",
		"target_ref":  42,
		"channels":    []string{"email"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDispatchRejectsEmptyChannels(t *testing.T) {
	r := newRouter(newMockJobRepo(), &mockLogStore{})

	w := postJSON(t, r, "/dispatch", map[string]interface{}{
		"target_kind": "list",
		"target_ref":  42,
		"channels":    []string{},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListJobsIncludesReconciledFailures(t *testing.T) {
	jobs := newMockJobRepo()
	logs := &mockLogStore{}
	parentID := uuid.New()
	jobs.jobs[parentID] = &model.DispatchJob{
		ID:     parentID,
		Kind:   model.JobKindBulk,
		Label:  "spring-sale",
		Status: model.JobStatusDispatched,
	}
	logs.Append(context.Background(), parentID.String(),
		"failed email: a@x.com - reason: bounced")

	r := newRouter(jobs, logs)

	req := httptest.NewRequest(http.MethodGet, "/jobs?page=1&page_size=10", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []struct {
			ID             string                `json:"id"`
			Label          string                `json:"label"`
			Logs           []string              `json:"logs"`
			FailedContacts []model.FailedContact `json:"failed_contacts"`
		} `json:"data"`
		Pagination map[string]int `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "spring-sale", resp.Data[0].Label)
	require.Len(t, resp.Data[0].FailedContacts, 1)
	assert.Equal(t, "bounced", resp.Data[0].FailedContacts[0].Reason)
	assert.Equal(t, 1, resp.Pagination["total_count"])
}

func TestGetJobInvalidID(t *testing.T) {
	r := newRouter(newMockJobRepo(), &mockLogStore{})

	req := httptest.NewRequest(http.MethodGet, "/jobs/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJobNotFound(t *testing.T) {
	r := newRouter(newMockJobRepo(), &mockLogStore{})

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lucasfdcampos/lead-scraper/internal/api"
	"github.com/lucasfdcampos/lead-scraper/internal/domain"
	"github.com/lucasfdcampos/lead-scraper/internal/site"
)

type fakeTasks struct {
	tasks    map[string]*domain.Task
	leads    map[string][]domain.Lead
	created  []domain.Task
	updates  []domain.TaskUpdate
	exported []string
	listed   struct {
		status string
		limit  int64
	}
	stats *domain.Stats
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{
		tasks: map[string]*domain.Task{
			"6710a1b2c3d4e5f6a7b8c9d0": {ID: "6710a1b2c3d4e5f6a7b8c9d0", Keyword: "plumber", Location: "Houston, TX", Site: site.Angi, Status: domain.TaskWarning},
			"6710a1b2c3d4e5f6a7b8c9d1": {ID: "6710a1b2c3d4e5f6a7b8c9d1", Keyword: "roofer", Location: "Miami, FL", Site: site.YellowPages, Status: domain.TaskCompleted},
		},
		leads: map[string][]domain.Lead{
			"6710a1b2c3d4e5f6a7b8c9d0": {{Name: "Lopez Plumbing", Phone: "(713) 555-0100", Source: site.Angi}},
			"6710a1b2c3d4e5f6a7b8c9d1": {
				{Name: "Techos Hispano", Phone: "(305) 555-0123", Source: site.YellowPages},
				{Name: "No Phone Roofing", Source: site.YellowPages},
			},
		},
	}
}

func (f *fakeTasks) CreateTask(_ context.Context, t *domain.Task) (string, error) {
	t.ID = "6710a1b2c3d4e5f6a7b8c9ff"
	t.Status = domain.TaskPending
	f.created = append(f.created, *t)
	return t.ID, nil
}

func (f *fakeTasks) GetTask(_ context.Context, id string) (*domain.Task, error) {
	return f.tasks[id], nil
}

func (f *fakeTasks) ListTasks(_ context.Context, status string, limit int64) ([]domain.Task, error) {
	f.listed.status, f.listed.limit = status, limit
	var out []domain.Task
	for _, t := range f.tasks {
		if status == "" || t.Status == status {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTasks) UpdateTask(_ context.Context, id string, u domain.TaskUpdate) (bool, error) {
	t, ok := f.tasks[id]
	if !ok {
		return false, nil
	}
	f.updates = append(f.updates, u)
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.ReviewReason != nil {
		t.ReviewReason = *u.ReviewReason
	}
	return true, nil
}

func (f *fakeTasks) TaskLeads(_ context.Context, ids []string) ([]domain.Lead, error) {
	var out []domain.Lead
	for _, id := range ids {
		out = append(out, f.leads[id]...)
	}
	return out, nil
}

func (f *fakeTasks) MarkTasksExported(_ context.Context, ids []string) error {
	f.exported = append(f.exported, ids...)
	return nil
}

func (f *fakeTasks) Stats(context.Context, time.Time) (*domain.Stats, error) {
	if f.stats == nil {
		return &domain.Stats{}, nil
	}
	return f.stats, nil
}

func taskRoutes(f *fakeTasks, process api.ProcessFunc) http.Handler {
	return api.Routes(api.NewHandler(nil, nil, nil).WithTasks(f, process))
}

func TestCreateTask(t *testing.T) {
	t.Parallel()

	t.Run("trims input and resolves the site", func(t *testing.T) {
		t.Parallel()

		f := newFakeTasks()
		rec := do(t, taskRoutes(f, nil), http.MethodPost, "/api/v1/tasks",
			`{"keyword":"  plumber ","location":" Houston, TX ","site":"yellowpages","notes":" weekly "}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		require.Len(t, f.created, 1)
		assert.Equal(t, "plumber", f.created[0].Keyword)
		assert.Equal(t, "Houston, TX", f.created[0].Location)
		assert.Equal(t, site.YellowPages, f.created[0].Site)
		assert.Equal(t, "weekly", f.created[0].Notes)

		var got domain.Task
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, domain.TaskPending, got.Status)
		assert.NotEmpty(t, got.ID)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name, body, want string
		}{
			{"bad json", `{`, "invalid JSON body"},
			{"blank keyword", `{"keyword":"  ","location":"Houston, TX"}`, "keyword and location are required"},
			{"unknown site", `{"keyword":"plumber","location":"Houston, TX","site":"craigslist"}`, "unknown site"},
		}
		for _, tt := range tests {
			f := newFakeTasks()
			rec := do(t, taskRoutes(f, nil), http.MethodPost, "/api/v1/tasks", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, tt.name)
			assert.Contains(t, rec.Body.String(), tt.want, tt.name)
			assert.Empty(t, f.created, tt.name)
		}
	})

	t.Run("without mongo", func(t *testing.T) {
		t.Parallel()

		rec := do(t, api.Routes(api.NewHandler(nil, nil, nil)), http.MethodPost, "/api/v1/tasks", `{}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestListTasks(t *testing.T) {
	t.Parallel()

	f := newFakeTasks()
	rec := do(t, taskRoutes(f, nil), http.MethodGet, "/api/v1/tasks?status=completed&limit=9999", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", f.listed.status)
	assert.Equal(t, int64(500), f.listed.limit)

	var body struct {
		Tasks []domain.Task `json:"tasks"`
		Count int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "roofer", body.Tasks[0].Keyword)

	rec = do(t, taskRoutes(f, nil), http.MethodGet, "/api/v1/tasks?status=done", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, taskRoutes(f, nil), http.MethodGet, "/api/v1/tasks?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, taskRoutes(f, nil), http.MethodDelete, "/api/v1/tasks", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetAndUpdateTask(t *testing.T) {
	t.Parallel()

	const id = "6710a1b2c3d4e5f6a7b8c9d0"

	t.Run("get", func(t *testing.T) {
		t.Parallel()

		rec := do(t, taskRoutes(newFakeTasks(), nil), http.MethodGet, "/api/v1/tasks/"+id, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"keyword":"plumber"`)

		rec = do(t, taskRoutes(newFakeTasks(), nil), http.MethodGet, "/api/v1/tasks/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("requeue", func(t *testing.T) {
		t.Parallel()

		f := newFakeTasks()
		rec := do(t, taskRoutes(f, nil), http.MethodPatch, "/api/v1/tasks/"+id, `{"status":"pending"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		require.Len(t, f.updates, 1)
		assert.Equal(t, domain.TaskPending, *f.updates[0].Status)
		assert.Nil(t, f.updates[0].ReviewReason)
		assert.Contains(t, rec.Body.String(), `"status":"pending"`)
	})

	t.Run("rejects bad updates", func(t *testing.T) {
		t.Parallel()

		f := newFakeTasks()
		h := taskRoutes(f, nil)
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPatch, "/api/v1/tasks/"+id, `{"status":"finished"}`).Code)
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPatch, "/api/v1/tasks/"+id, `{}`).Code)
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPatch, "/api/v1/tasks/missing", `{"status":"pending"}`).Code)
		assert.Empty(t, f.updates)
	})
}

func TestExportTask(t *testing.T) {
	t.Parallel()

	f := newFakeTasks()
	rec := do(t, taskRoutes(f, nil), http.MethodGet, "/api/v1/tasks/6710a1b2c3d4e5f6a7b8c9d0/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="leads-6710a1b2.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	body := strings.TrimPrefix(rec.Body.String(), "\xEF\xBB\xBF")
	assert.True(t, strings.HasPrefix(body, "#,Name,Phone"))
	assert.Contains(t, body, "Lopez Plumbing")

	delete(f.leads, "6710a1b2c3d4e5f6a7b8c9d0")
	rec = do(t, taskRoutes(f, nil), http.MethodGet, "/api/v1/tasks/6710a1b2c3d4e5f6a7b8c9d0/export", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no leads")
}

func TestBulkExport(t *testing.T) {
	t.Parallel()

	f := newFakeTasks()
	rec := do(t, taskRoutes(f, nil), http.MethodPost, "/api/v1/tasks/bulk-export",
		`{"task_ids":["6710a1b2c3d4e5f6a7b8c9d0"," 6710a1b2c3d4e5f6a7b8c9d1 ",""]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "leads-bulk-2tasks-")
	assert.Equal(t, []string{"6710a1b2c3d4e5f6a7b8c9d0", "6710a1b2c3d4e5f6a7b8c9d1"}, f.exported)

	wb, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Leads")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Lopez Plumbing", rows[1][1])
	assert.Equal(t, "No", rows[1][15])
	assert.Equal(t, "Techos Hispano", rows[2][1])
	assert.Equal(t, "Yes", rows[2][15])

	rec = do(t, taskRoutes(f, nil), http.MethodPost, "/api/v1/tasks/bulk-export", `{"task_ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessPending(t *testing.T) {
	t.Parallel()

	t.Run("reports processed tasks", func(t *testing.T) {
		t.Parallel()

		var gotLimit int64
		process := func(_ context.Context, limit int64) ([]domain.TaskReport, error) {
			gotLimit = limit
			return []domain.TaskReport{{ID: "a", Status: domain.TaskCompleted, Cycles: 2, Leads: 1000}}, nil
		}
		rec := do(t, taskRoutes(newFakeTasks(), process), http.MethodPost, "/api/v1/tasks/process-pending?limit=5", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(5), gotLimit)
		assert.Contains(t, rec.Body.String(), `"processed":1`)
		assert.Contains(t, rec.Body.String(), `"status":"completed"`)
	})

	t.Run("defaults and failures", func(t *testing.T) {
		t.Parallel()

		var gotLimit int64
		process := func(_ context.Context, limit int64) ([]domain.TaskReport, error) {
			gotLimit = limit
			return nil, errors.New("mongo down")
		}
		rec := do(t, taskRoutes(newFakeTasks(), process), http.MethodPost, "/api/v1/tasks/process-pending", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, int64(20), gotLimit)

		rec = do(t, taskRoutes(newFakeTasks(), nil), http.MethodPost, "/api/v1/tasks/process-pending", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestStats(t *testing.T) {
	t.Parallel()

	f := newFakeTasks()
	f.stats = &domain.Stats{TotalTasks: 4, RunningTasks: 1, TotalLeads: 900, LeadsToday: 12}
	rec := do(t, taskRoutes(f, nil), http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got.TotalTasks)
	assert.Equal(t, 12, got.LeadsToday)
	assert.Contains(t, rec.Body.String(), `"daily_history":[]`)
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lucasfdcampos/lead-scraper/internal/domain"
	"github.com/lucasfdcampos/lead-scraper/internal/output"
	"github.com/lucasfdcampos/lead-scraper/internal/site"
)

// TaskStore manages the task queue. *store.Client implements it.
type TaskStore interface {
	CreateTask(ctx context.Context, t *domain.Task) (string, error)
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	ListTasks(ctx context.Context, status string, limit int64) ([]domain.Task, error)
	UpdateTask(ctx context.Context, id string, u domain.TaskUpdate) (bool, error)
	TaskLeads(ctx context.Context, taskIDs []string) ([]domain.Lead, error)
	MarkTasksExported(ctx context.Context, ids []string) error
	Stats(ctx context.Context, now time.Time) (*domain.Stats, error)
}

// ProcessFunc works up to limit pending tasks. pipeline.ProcessPending bound
// to a config is the production implementation.
type ProcessFunc func(ctx context.Context, limit int64) ([]domain.TaskReport, error)

// WithTasks enables the task routes. Without it they answer 503.
func (h *Handler) WithTasks(tasks TaskStore, process ProcessFunc) *Handler {
	h.tasks = tasks
	h.process = process
	return h
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) tasksReady(w http.ResponseWriter) bool {
	if h.tasks == nil {
		errResponse(w, http.StatusServiceUnavailable, "mongo not configured")
		return false
	}
	return true
}

// positiveLimit parses the limit query param, capped at ceiling.
func positiveLimit(r *http.Request, fallback, ceiling int64) (int64, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return fallback, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, ceiling), true
}

type createTaskRequest struct {
	Keyword  string `json:"keyword"`
	Location string `json:"location"`
	Site     string `json:"site"`
	Notes    string `json:"notes"`
}

// CreateTask godoc
//
//	POST /api/v1/tasks
//
//	Request body: { "keyword": "...", "location": "...", "site": "angi", "notes": "..." }
//	Response:     201 with the pending task
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	if !h.tasksReady(w) {
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResponse(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	req.Keyword = strings.TrimSpace(req.Keyword)
	req.Location = strings.TrimSpace(req.Location)
	if req.Keyword == "" || req.Location == "" {
		errResponse(w, http.StatusBadRequest, "keyword and location are required")
		return
	}
	s, err := site.Lookup(req.Site)
	if err != nil {
		errResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	t := &domain.Task{
		Keyword:  req.Keyword,
		Location: req.Location,
		Site:     s.Name,
		Notes:    strings.TrimSpace(req.Notes),
	}
	if _, err := h.tasks.CreateTask(r.Context(), t); err != nil {
		errResponse(w, http.StatusInternalServerError, "failed to create task: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// ListTasks godoc
//
//	GET /api/v1/tasks?status=pending&limit=50
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	if !h.tasksReady(w) {
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && !domain.ValidTaskStatus(status) {
		errResponse(w, http.StatusBadRequest, "unknown status "+strconv.Quote(status))
		return
	}
	limit, ok := positiveLimit(r, 50, 500)
	if !ok {
		errResponse(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	tasks, err := h.tasks.ListTasks(r.Context(), status, limit)
	if err != nil {
		errResponse(w, http.StatusInternalServerError, "failed to list tasks: "+err.Error())
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "count": len(tasks)})
}

// GetTask godoc
//
//	GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	if !h.tasksReady(w) {
		return
	}
	t, ok := h.lookupTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) lookupTask(w http.ResponseWriter, r *http.Request) (*domain.Task, bool) {
	t, err := h.tasks.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		errResponse(w, http.StatusInternalServerError, "failed to get task: "+err.Error())
		return nil, false
	}
	if t == nil {
		errResponse(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	return t, true
}

type updateTaskRequest struct {
	Status       *string `json:"status"`
	ReviewReason *string `json:"review_reason"`
}

// UpdateTask godoc
//
//	PATCH /api/v1/tasks/{id}
//
//	Request body: { "status": "pending", "review_reason": "..." }
//	Setting status back to pending requeues the task.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	if !h.tasksReady(w) {
		return
	}

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResponse(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Status == nil && req.ReviewReason == nil {
		errResponse(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if req.Status != nil && !domain.ValidTaskStatus(*req.Status) {
		errResponse(w, http.StatusBadRequest, "unknown status "+strconv.Quote(*req.Status))
		return
	}

	id := r.PathValue("id")
	found, err := h.tasks.UpdateTask(r.Context(), id, domain.TaskUpdate{Status: req.Status, ReviewReason: req.ReviewReason})
	if err != nil {
		errResponse(w, http.StatusInternalServerError, "failed to update task: "+err.Error())
		return
	}
	if !found {
		errResponse(w, http.StatusNotFound, "task not found")
		return
	}
	h.GetTask(w, r)
}

// ExportTask godoc
//
//	GET /api/v1/tasks/{id}/export
//
//	Response: CSV of the task's leads
func (h *Handler) ExportTask(w http.ResponseWriter, r *http.Request) {
	if !h.tasksReady(w) {
		return
	}
	t, ok := h.lookupTask(w, r)
	if !ok {
		return
	}

	leads, err := h.tasks.TaskLeads(r.Context(), []string{t.ID})
	if err != nil {
		errResponse(w, http.StatusInternalServerError, "failed to load leads: "+err.Error())
		return
	}
	if len(leads) == 0 {
		errResponse(w, http.StatusNotFound, "task has no leads")
		return
	}

	var buf bytes.Buffer
	if err := output.WriteCSV(&buf, leads); err != nil {
		errResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leads-%s.csv"`, shortID(t.ID)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type bulkExportRequest struct {
	TaskIDs []string `json:"task_ids"`
}

// BulkExport godoc
//
//	POST /api/v1/tasks/bulk-export
//
//	Request body: { "task_ids": ["...", "..."] }
//	Response:     workbook of the tasks' phone-bearing leads; the tasks are
//	              flagged as exported
func (h *Handler) BulkExport(w http.ResponseWriter, r *http.Request) {
	if !h.tasksReady(w) {
		return
	}

	var req bulkExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResponse(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	ids := make([]string, 0, len(req.TaskIDs))
	for _, id := range req.TaskIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		errResponse(w, http.StatusBadRequest, "task_ids is required")
		return
	}

	leads, err := h.tasks.TaskLeads(r.Context(), ids)
	if err != nil {
		errResponse(w, http.StatusInternalServerError, "failed to load leads: "+err.Error())
		return
	}
	var buf bytes.Buffer
	if err := output.WriteBulkXLSX(&buf, leads); err != nil {
		errResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.tasks.MarkTasksExported(r.Context(), ids); err != nil {
		zap.L().Warn("api: mark tasks exported", zap.Strings("task_ids", ids), zap.Error(err))
	}

	name := fmt.Sprintf("leads-bulk-%dtasks-%s.xlsx", len(ids), time.Now().UTC().Format("2006-01-02T15-04-05"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ProcessPending godoc
//
//	POST /api/v1/tasks/process-pending?limit=20
//
//	Response: { "processed": n, "reports": [...] }
func (h *Handler) ProcessPending(w http.ResponseWriter, r *http.Request) {
	if !h.tasksReady(w) {
		return
	}
	if h.process == nil {
		errResponse(w, http.StatusServiceUnavailable, "task processing not configured")
		return
	}
	limit, ok := positiveLimit(r, 20, 100)
	if !ok {
		errResponse(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	reports, err := h.process(r.Context(), limit)
	if err != nil {
		errResponse(w, http.StatusInternalServerError, "failed to process tasks: "+err.Error())
		return
	}
	if reports == nil {
		reports = []domain.TaskReport{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"processed": len(reports), "reports": reports})
}

// Stats godoc
//
//	GET /api/v1/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.tasksReady(w) {
		return
	}
	stats, err := h.tasks.Stats(r.Context(), time.Now().UTC())
	if err != nil {
		errResponse(w, http.StatusInternalServerError, "failed to compute stats: "+err.Error())
		return
	}
	if stats.DailyHistory == nil {
		stats.DailyHistory = []domain.DailyCount{}
	}
	writeJSON(w, http.StatusOK, stats)
}

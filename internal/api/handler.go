package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lucasfdcampos/lead-scraper/internal/cache"
	"github.com/lucasfdcampos/lead-scraper/internal/domain"
	"github.com/lucasfdcampos/lead-scraper/internal/site"
)

// RunFunc executes a query. pipeline.Run bound to a config is the
// production implementation; its only error is an unknown site.
type RunFunc func(ctx context.Context, q domain.Query) (*domain.Result, error)

// CacheDeleter removes a cached result. *cache.Client implements it.
type CacheDeleter interface {
	Delete(ctx context.Context, key string) error
}

// QueryLister lists recent query runs. *store.Client implements it.
type QueryLister interface {
	RecentQueries(ctx context.Context, limit int64) ([]domain.StoredQuery, error)
}

// Handler holds the HTTP dependencies. redis, mongo and tasks may be nil.
type Handler struct {
	run     RunFunc
	redis   CacheDeleter
	mongo   QueryLister
	tasks   TaskStore
	process ProcessFunc
}

// NewHandler creates a new Handler.
func NewHandler(run RunFunc, redis CacheDeleter, mongo QueryLister) *Handler {
	return &Handler{run: run, redis: redis, mongo: mongo}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errResponse writes a JSON error body.
func errResponse(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Health godoc
//
//	GET /health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// Scrape godoc
//
//	POST /api/v1/scrape
//
//	Request body: { "keyword": "...", "location": "...", "limit": 25, "site": "angi", "require_phone": false }
//	Response:     Result JSON; the HTTP status mirrors result.status
func (h *Handler) Scrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var q domain.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		errResponse(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	q.Keyword = strings.TrimSpace(q.Keyword)
	q.Location = strings.TrimSpace(q.Location)
	if q.Keyword == "" {
		errResponse(w, http.StatusBadRequest, "keyword is required")
		return
	}
	if q.Location == "" {
		errResponse(w, http.StatusBadRequest, "location is required")
		return
	}

	res, err := h.run(r.Context(), q)
	if err != nil {
		errResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// InvalidateCache godoc
//
//	DELETE /api/v1/scrape/cache
//
//	Query params: keyword, location, limit, site, require_phone (0|1)
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.redis == nil {
		errResponse(w, http.StatusServiceUnavailable, "redis not configured")
		return
	}

	p := r.URL.Query()
	q := domain.Query{
		Keyword:      p.Get("keyword"),
		Location:     p.Get("location"),
		RequirePhone: p.Get("require_phone") == "1",
	}
	if q.Keyword == "" || q.Location == "" {
		errResponse(w, http.StatusBadRequest, "keyword and location are required")
		return
	}
	if v := p.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errResponse(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		q.Limit = n
	}
	s, err := site.Lookup(p.Get("site"))
	if err != nil {
		errResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	key := cache.ResultKey(s.Name, q.Normalized())
	if err := h.redis.Delete(r.Context(), key); err != nil {
		errResponse(w, http.StatusInternalServerError, "failed to delete cache key: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "key": key})
}

// Queries godoc
//
//	GET /api/v1/queries?limit=20
func (h *Handler) Queries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.mongo == nil {
		errResponse(w, http.StatusServiceUnavailable, "mongo not configured")
		return
	}

	limit := int64(20)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			errResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 200)
	}

	queries, err := h.mongo.RecentQueries(r.Context(), limit)
	if err != nil {
		errResponse(w, http.StatusInternalServerError, "failed to list queries: "+err.Error())
		return
	}
	if queries == nil {
		queries = []domain.StoredQuery{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": queries, "count": len(queries)})
}

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasfdcampos/lead-scraper/internal/api"
	"github.com/lucasfdcampos/lead-scraper/internal/cache"
	"github.com/lucasfdcampos/lead-scraper/internal/domain"
)

type fakeCache struct {
	deleted []string
	err     error
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.err
}

type fakeLister struct {
	queries []domain.StoredQuery
	limit   int64
}

func (f *fakeLister) RecentQueries(_ context.Context, limit int64) ([]domain.StoredQuery, error) {
	f.limit = limit
	return f.queries, nil
}

func runReturning(res *domain.Result, err error, got *domain.Query) api.RunFunc {
	return func(_ context.Context, q domain.Query) (*domain.Result, error) {
		if got != nil {
			*got = q
		}
		return res, err
	}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := do(t, api.Routes(api.NewHandler(nil, nil, nil)), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestID_KeepsCallerValue(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec := httptest.NewRecorder()
	api.Routes(api.NewHandler(nil, nil, nil)).ServeHTTP(rec, req)
	assert.Equal(t, "abc123", rec.Header().Get("X-Request-ID"))
}

func TestScrape(t *testing.T) {
	t.Parallel()

	t.Run("mirrors result status", func(t *testing.T) {
		t.Parallel()

		for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusForbidden} {
			res := &domain.Result{Leads: []domain.Lead{}, Status: status, Mode: domain.ModeSingle}
			var got domain.Query
			h := api.Routes(api.NewHandler(runReturning(res, nil, &got), nil, nil))

			rec := do(t, h, http.MethodPost, "/api/v1/scrape",
				`{"keyword":" plumber ","location":"Houston, TX","limit":5,"site":"yellow_pages","require_phone":true}`)
			assert.Equal(t, status, rec.Code)
			assert.Equal(t, domain.Query{Keyword: "plumber", Location: "Houston, TX", Limit: 5, Site: "yellow_pages", RequirePhone: true}, got)

			var body domain.Result
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, status, body.Status)
		}
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		h := api.Routes(api.NewHandler(runReturning(&domain.Result{}, nil, nil), nil, nil))
		for body, want := range map[string]string{
			`{`:                               "invalid JSON",
			`{"location":"Miami"}`:            "keyword is required",
			`{"keyword":"plumber"}`:           "location is required",
			`{"keyword":"  ","location":"x"}`: "keyword is required",
		} {
			rec := do(t, h, http.MethodPost, "/api/v1/scrape", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
			assert.Contains(t, rec.Body.String(), want, body)
		}
	})

	t.Run("unknown site is a bad request", func(t *testing.T) {
		t.Parallel()

		h := api.Routes(api.NewHandler(runReturning(nil, errors.New(`site: unknown site "craigslist"`), nil), nil, nil))
		rec := do(t, h, http.MethodPost, "/api/v1/scrape", `{"keyword":"plumber","location":"Miami, FL","site":"craigslist"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "unknown site")
	})

	t.Run("method", func(t *testing.T) {
		t.Parallel()

		rec := do(t, api.Routes(api.NewHandler(nil, nil, nil)), http.MethodGet, "/api/v1/scrape", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestInvalidateCache(t *testing.T) {
	t.Parallel()

	t.Run("deletes the normalized key", func(t *testing.T) {
		t.Parallel()

		fc := &fakeCache{}
		h := api.Routes(api.NewHandler(nil, fc, nil))
		rec := do(t, h, http.MethodDelete, "/api/v1/scrape/cache?keyword=plumber&location=Houston,+TX&site=yp", "")

		require.Equal(t, http.StatusOK, rec.Code)
		want := cache.ResultKey("yellow_pages", domain.Query{Keyword: "plumber", Location: "Houston, TX", Limit: domain.DefaultLimit})
		assert.Equal(t, []string{want}, fc.deleted)
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, http.StatusServiceUnavailable,
			do(t, api.Routes(api.NewHandler(nil, nil, nil)), http.MethodDelete, "/api/v1/scrape/cache?keyword=a&location=b", "").Code)

		h := api.Routes(api.NewHandler(nil, &fakeCache{}, nil))
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodDelete, "/api/v1/scrape/cache?keyword=a", "").Code)
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodDelete, "/api/v1/scrape/cache?keyword=a&location=b&limit=x", "").Code)
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodDelete, "/api/v1/scrape/cache?keyword=a&location=b&site=craigslist", "").Code)

		failing := api.Routes(api.NewHandler(nil, &fakeCache{err: errors.New("conn refused")}, nil))
		assert.Equal(t, http.StatusInternalServerError, do(t, failing, http.MethodDelete, "/api/v1/scrape/cache?keyword=a&location=b", "").Code)
	})
}

func TestQueries(t *testing.T) {
	t.Parallel()

	fl := &fakeLister{queries: []domain.StoredQuery{{ID: "q1", Keyword: "plumber", Status: 200}}}
	h := api.Routes(api.NewHandler(nil, nil, fl))

	rec := do(t, h, http.MethodGet, "/api/v1/queries?limit=500", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(200), fl.limit)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/queries?limit=-2", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		do(t, api.Routes(api.NewHandler(nil, nil, nil)), http.MethodGet, "/api/v1/queries", "").Code)
}

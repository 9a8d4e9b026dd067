package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasfdcampos/lead-scraper/internal/dedup"
	"github.com/lucasfdcampos/lead-scraper/internal/domain"
	"github.com/lucasfdcampos/lead-scraper/internal/fetch"
	"github.com/lucasfdcampos/lead-scraper/internal/location"
	"github.com/lucasfdcampos/lead-scraper/internal/pipeline"
	"github.com/lucasfdcampos/lead-scraper/internal/walker"
)

// fakeWalker serves canned leads per location and admits them through the
// shared set the way the real walker does.
type fakeWalker struct {
	leads map[string][]domain.Lead
	errs  map[string]error

	mu    sync.Mutex
	calls []walker.Target
}

func (f *fakeWalker) Walk(_ context.Context, t walker.Target, seen *dedup.Set) walker.Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, t)
	f.mu.Unlock()

	if err := f.errs[t.Location]; err != nil {
		return walker.Outcome{Err: err, Status: http.StatusForbidden}
	}
	var out walker.Outcome
	for _, l := range f.leads[t.Location] {
		if len(out.Leads) >= t.Limit {
			break
		}
		switch seen.Admit(dedup.Key(l, dedup.KeyName)) {
		case dedup.Admitted:
			out.Leads = append(out.Leads, l)
		case dedup.Full:
			return out
		}
	}
	if len(out.Leads) > 0 {
		out.PagesScraped = 1
	}
	return out
}

func (f *fakeWalker) locations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Location
	}
	return out
}

func leadsFor(loc string, n int) []domain.Lead {
	out := make([]domain.Lead, n)
	for i := range out {
		out[i] = domain.Lead{Name: fmt.Sprintf("%s Pro %d", loc, i), Location: loc}
	}
	return out
}

func assertUnique(t *testing.T, leads []domain.Lead) {
	t.Helper()
	seen := map[string]bool{}
	for _, l := range leads {
		k := dedup.Key(l, dedup.KeyName)
		assert.False(t, seen[k], "duplicate lead %q", l.Name)
		seen[k] = true
	}
}

var blockedErr = &fetch.BlockedError{URL: "https://example.com", Reason: fetch.ReasonFallbackFailed, Attempts: 4}

func TestController_Single(t *testing.T) {
	t.Parallel()

	t.Run("houston plumber limit 5 needs no fallback", func(t *testing.T) {
		t.Parallel()

		w := &fakeWalker{leads: map[string][]domain.Lead{"Houston, TX": leadsFor("Houston", 8)}}
		res := pipeline.NewController(w, location.Default()).Run(context.Background(),
			domain.Query{Keyword: "plumber", Location: "Houston, TX", Limit: 5})

		assert.Equal(t, domain.ModeSingle, res.Mode)
		assert.Equal(t, http.StatusOK, res.Status)
		assert.Equal(t, 5, res.Count)
		assert.Len(t, res.Leads, 5)
		assert.Equal(t, []string{"Houston, TX"}, res.Locations)
		assert.Empty(t, res.Error)
	})

	t.Run("fallback equal to the input city is not fetched", func(t *testing.T) {
		t.Parallel()

		w := &fakeWalker{leads: map[string][]domain.Lead{"Houston, TX": leadsFor("Houston", 2)}}
		res := pipeline.NewController(w, location.Default()).Run(context.Background(),
			domain.Query{Keyword: "plumber", Location: "houston, tx", Limit: 5})

		assert.Equal(t, domain.ModeSingle, res.Mode)
		assert.Equal(t, []string{"houston, tx"}, w.locations())
	})

	t.Run("runs the state fallback when under limit", func(t *testing.T) {
		t.Parallel()

		houston := append(leadsFor("Houston", 4), domain.Lead{Name: "Dallas Pro 0"})
		w := &fakeWalker{leads: map[string][]domain.Lead{
			"Dallas, TX":  leadsFor("Dallas", 2),
			"Houston, TX": houston,
		}}
		res := pipeline.NewController(w, location.Default()).Run(context.Background(),
			domain.Query{Keyword: "plumber", Location: "Dallas, TX", Limit: 5})

		assert.Equal(t, domain.ModeSingleFallback, res.Mode)
		assert.Equal(t, []string{"Dallas, TX", "Houston, TX"}, res.Locations)
		assert.Equal(t, 5, res.Count)
		assertUnique(t, res.Leads)
		assert.Equal(t, 2, res.PagesScraped)

		require.Len(t, w.calls, 2)
		assert.Equal(t, 3, w.calls[1].Limit)
	})

	t.Run("skips the fallback once the limit is met", func(t *testing.T) {
		t.Parallel()

		w := &fakeWalker{leads: map[string][]domain.Lead{"Dallas, TX": leadsFor("Dallas", 5)}}
		res := pipeline.NewController(w, location.Default()).Run(context.Background(),
			domain.Query{Keyword: "plumber", Location: "Dallas, TX", Limit: 5})

		assert.Equal(t, domain.ModeSingle, res.Mode)
		assert.Equal(t, []string{"Dallas, TX"}, w.locations())
	})

	t.Run("electrician in XX never attempts a fallback", func(t *testing.T) {
		t.Parallel()

		w := &fakeWalker{}
		res := pipeline.NewController(w, location.Default()).Run(context.Background(),
			domain.Query{Keyword: "electrician", Location: "XX", Limit: 10})

		assert.Equal(t, domain.ModeSingle, res.Mode)
		assert.Equal(t, []string{"XX"}, w.locations())
		assert.Equal(t, http.StatusNotFound, res.Status)
		assert.NotNil(t, res.Leads)
		assert.Empty(t, res.Leads)
	})

	t.Run("unparsable region code means no fallback", func(t *testing.T) {
		t.Parallel()

		for _, loc := range []string{"Springfield, Ill", "Kansas City, MO, USA", "Paris"} {
			w := &fakeWalker{}
			pipeline.NewController(w, location.Default()).Run(context.Background(),
				domain.Query{Keyword: "roofer", Location: loc, Limit: 10})
			assert.Equal(t, []string{loc}, w.locations(), loc)
		}
	})

	t.Run("first page blocked everywhere is a 403 with an error", func(t *testing.T) {
		t.Parallel()

		w := &fakeWalker{errs: map[string]error{"Dallas, TX": blockedErr, "Houston, TX": blockedErr}}
		res := pipeline.NewController(w, location.Default()).Run(context.Background(),
			domain.Query{Keyword: "plumber", Location: "Dallas, TX", Limit: 10})

		assert.NotEmpty(t, res.Error)
		assert.Equal(t, http.StatusForbidden, res.Status)
		assert.NotNil(t, res.Leads)
		assert.Empty(t, res.Leads)
		assert.Zero(t, res.Count)
	})

	t.Run("blocked primary with no fallback is a 403", func(t *testing.T) {
		t.Parallel()

		w := &fakeWalker{errs: map[string]error{"Houston, TX": blockedErr}}
		res := pipeline.NewController(w, location.Default()).Run(context.Background(),
			domain.Query{Keyword: "plumber", Location: "Houston, TX", Limit: 10})

		assert.Equal(t, http.StatusForbidden, res.Status)
		assert.Contains(t, res.Error, "fallback failed")
	})

	t.Run("fallback leads rescue a blocked primary", func(t *testing.T) {
		t.Parallel()

		w := &fakeWalker{
			errs:  map[string]error{"Dallas, TX": blockedErr},
			leads: map[string][]domain.Lead{"Houston, TX": leadsFor("Houston", 3)},
		}
		res := pipeline.NewController(w, location.Default()).Run(context.Background(),
			domain.Query{Keyword: "plumber", Location: "Dallas, TX", Limit: 10})

		assert.Equal(t, http.StatusOK, res.Status)
		assert.Empty(t, res.Error)
		assert.Equal(t, 3, res.Count)
		assert.Equal(t, domain.ModeSingleFallback, res.Mode)
	})

	t.Run("clamps the limit", func(t *testing.T) {
		t.Parallel()

		w := &fakeWalker{leads: map[string][]domain.Lead{"Houston, TX": leadsFor("Houston", 30)}}
		res := pipeline.NewController(w, location.Default()).Run(context.Background(),
			domain.Query{Keyword: "plumber", Location: "Houston, TX"})

		assert.Equal(t, domain.DefaultLimit, res.Count)
	})
}

func TestController_Batch(t *testing.T) {
	t.Parallel()

	batchLeads := func() map[string][]domain.Lead {
		m := map[string][]domain.Lead{}
		for _, loc := range location.Default().Batch {
			// every city also lists the same statewide chain
			m[loc] = append(leadsFor(loc, 3), domain.Lead{Name: "Statewide Plumbing Co"})
		}
		return m
	}

	t.Run("us_latino sweeps the curated list", func(t *testing.T) {
		t.Parallel()

		tables := location.Default()
		w := &fakeWalker{leads: batchLeads()}
		res := pipeline.NewController(w, tables).Run(context.Background(),
			domain.Query{Keyword: "plumber", Location: "US_Latino", Limit: 1000})

		assert.Equal(t, domain.ModeBatch, res.Mode)
		assert.Equal(t, tables.Batch, res.Locations)
		assert.Len(t, res.Locations, len(tables.Batch))
		assert.Equal(t, 3*len(tables.Batch)+1, res.Count)
		assertUnique(t, res.Leads)
		assert.Equal(t, http.StatusOK, res.Status)
	})

	t.Run("stops early at the aggregate limit but reports every location", func(t *testing.T) {
		t.Parallel()

		tables := location.Default()
		w := &fakeWalker{leads: batchLeads()}
		res := pipeline.NewController(w, tables).Run(context.Background(),
			domain.Query{Keyword: "plumber", Location: "usa_es", Limit: 10})

		assert.Equal(t, 10, res.Count)
		assert.Len(t, res.Locations, len(tables.Batch))
		assert.Less(t, len(w.calls), len(tables.Batch))
		assertUnique(t, res.Leads)
	})

	t.Run("a failing location does not abort the sweep", func(t *testing.T) {
		t.Parallel()

		tables := location.Tables{
			Batch:     []string{"A, CA", "B, TX", "C, FL"},
			Sentinels: []string{"sweep"},
		}
		w := &fakeWalker{
			leads: map[string][]domain.Lead{"A, CA": leadsFor("A", 2), "C, FL": leadsFor("C", 2)},
			errs:  map[string]error{"B, TX": errors.New("blocked")},
		}
		res := pipeline.NewController(w, tables).Run(context.Background(),
			domain.Query{Keyword: "plumber", Location: "sweep", Limit: 50})

		assert.Equal(t, 4, res.Count)
		assert.Empty(t, res.Error)
		assert.Equal(t, []string{"A, CA", "B, TX", "C, FL"}, w.locations())
	})

	t.Run("empty sweep is a 404", func(t *testing.T) {
		t.Parallel()

		w := &fakeWalker{}
		res := pipeline.NewController(w, location.Default()).Run(context.Background(),
			domain.Query{Keyword: "plumber", Location: "all_us_latino", Limit: 10})

		assert.Equal(t, http.StatusNotFound, res.Status)
		assert.Equal(t, domain.ModeBatch, res.Mode)
	})

	t.Run("concurrent workers respect the limit and uniqueness", func(t *testing.T) {
		t.Parallel()

		tables := location.Default()
		for _, limit := range []int{7, 50, 1000} {
			w := &fakeWalker{leads: batchLeads()}
			res := pipeline.NewController(w, tables, pipeline.WithWorkers(8)).Run(context.Background(),
				domain.Query{Keyword: "plumber", Location: "us_latino", Limit: limit})

			assert.LessOrEqual(t, res.Count, limit)
			assert.Len(t, res.Leads, res.Count)
			assertUnique(t, res.Leads)
			assert.Equal(t, tables.Batch, res.Locations)
		}
	})
}

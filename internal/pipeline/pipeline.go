// Package pipeline orchestrates a complete scrape request.
//
// Phases:
//  1. Cache check  – Redis L1 then MongoDB L2; return immediately on hit
//  2. Scrape       – Controller: single location, state fallback or batch sweep
//  3. Persist      – query run + results to MongoDB, leads upserted on (name, phone)
//  4. Cache        – successful results warm Redis
package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lucasfdcampos/lead-scraper/internal/cache"
	"github.com/lucasfdcampos/lead-scraper/internal/domain"
	"github.com/lucasfdcampos/lead-scraper/internal/filter"
	"github.com/lucasfdcampos/lead-scraper/internal/location"
	"github.com/lucasfdcampos/lead-scraper/internal/site"
	"github.com/lucasfdcampos/lead-scraper/internal/walker"
)

// Cache is the L1 result cache. *cache.Client implements it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, v any) error
}

// Store is the persistence layer. *store.Client implements it.
type Store interface {
	SaveQuery(ctx context.Context, q *domain.StoredQuery) (string, error)
	SaveResults(ctx context.Context, queryID string, leads []domain.Lead) error
	FindQuery(ctx context.Context, site string, q domain.Query) (*domain.StoredQuery, error)
	FindResults(ctx context.Context, queryID string) ([]domain.Lead, error)
	UpsertLeads(ctx context.Context, leads []domain.Lead) (int, error)
}

// Config holds injectable dependencies.
type Config struct {
	Redis Cache
	Mongo Store
	// Resolver returns the page resolver for a site.
	Resolver func(s *site.Site) walker.Resolver
	// Tables holds the location overrides. Unset fields fall back to
	// location.Default(); an empty Batch sweeps the site's own list.
	Tables        location.Tables
	Workers       int
	WalkerOptions []walker.Option
}

// Run executes the full pipeline for q. The only error is an unknown site;
// scrape failures are reported inside the result.
func Run(ctx context.Context, q domain.Query, cfg Config) (*domain.Result, error) {
	start := time.Now()
	q = q.Normalized()

	s, err := site.Lookup(q.Site)
	if err != nil {
		return nil, err
	}
	q.Site = s.Name
	log := zap.L().With(
		zap.String("site", s.Name),
		zap.String("keyword", q.Keyword),
		zap.String("location", q.Location),
		zap.Int("limit", q.Limit),
	)

	// ── Phase 1a: Redis result cache (L1) ────────────────────────────────────
	var cacheKey string
	if cfg.Redis != nil {
		cacheKey = cache.ResultKey(s.Name, q)
		if !q.NoCache {
			if raw, err := cfg.Redis.Get(ctx, cacheKey); err == nil && len(raw) > 0 {
				var res domain.Result
				if err := json.Unmarshal(raw, &res); err == nil {
					res.Cached = true
					log.Info("pipeline: redis hit")
					return &res, nil
				}
			} else if err != nil {
				log.Warn("pipeline: redis get", zap.Error(err))
			}
		}
	}

	// ── Phase 1b: MongoDB (L2) ───────────────────────────────────────────────
	if cfg.Mongo != nil && !q.NoCache {
		if res := fromStore(ctx, cfg.Mongo, s.Name, q); res != nil {
			log.Info("pipeline: mongo hit", zap.String("query_id", res.QueryID))
			if cfg.Redis != nil {
				if err := cfg.Redis.Set(ctx, cacheKey, res); err != nil {
					log.Warn("pipeline: redis warm", zap.Error(err))
				}
			}
			return res, nil
		}
	}

	// ── Phase 2: Scrape ──────────────────────────────────────────────────────
	tables := cfg.Tables.WithDefaults()
	if len(tables.Batch) == 0 {
		tables.Batch = append([]string(nil), s.Batch...)
	}
	opts := make([]walker.Option, 0, len(cfg.WalkerOptions)+1)
	opts = append(opts, cfg.WalkerOptions...)
	opts = append(opts, walker.WithFilter(filter.For(q)))

	w := walker.New(s, cfg.Resolver(s), opts...)
	res := NewController(w, tables, WithWorkers(cfg.Workers)).Run(ctx, q)
	elapsed := time.Since(start)
	log.Info("pipeline: scrape done",
		zap.String("mode", res.Mode),
		zap.Int("status", res.Status),
		zap.Int("count", res.Count),
		zap.Int("pages", res.PagesScraped),
		zap.Duration("elapsed", elapsed),
	)

	// ── Phase 3: Persist to MongoDB ──────────────────────────────────────────
	if cfg.Mongo != nil {
		persist(ctx, cfg.Mongo, s.Name, q, &res, elapsed)
	}

	// ── Phase 4: Cache in Redis ──────────────────────────────────────────────
	if cfg.Redis != nil && res.Status == http.StatusOK {
		if err := cfg.Redis.Set(ctx, cacheKey, res); err != nil {
			log.Warn("pipeline: redis set", zap.Error(err))
		}
	}
	return &res, nil
}

func fromStore(ctx context.Context, st Store, siteName string, q domain.Query) *domain.Result {
	stored, err := st.FindQuery(ctx, siteName, q)
	if err != nil {
		zap.L().Warn("pipeline: mongo find query", zap.Error(err))
		return nil
	}
	if stored == nil {
		return nil
	}
	leads, err := st.FindResults(ctx, stored.ID)
	if err != nil || len(leads) == 0 {
		return nil
	}
	return &domain.Result{
		Leads:        leads,
		Status:       stored.Status,
		Count:        len(leads),
		PagesScraped: stored.PagesScraped,
		Locations:    stored.Locations,
		Mode:         stored.Mode,
		Cached:       true,
		QueryID:      stored.ID,
	}
}

func persist(ctx context.Context, st Store, siteName string, q domain.Query, res *domain.Result, elapsed time.Duration) {
	doc := &domain.StoredQuery{
		Site:         siteName,
		Keyword:      q.Keyword,
		Location:     q.Location,
		Limit:        q.Limit,
		RequirePhone: q.RequirePhone,
		Mode:         res.Mode,
		Status:       res.Status,
		Count:        res.Count,
		PagesScraped: res.PagesScraped,
		Locations:    res.Locations,
		Error:        res.Error,
		DurationMs:   elapsed.Milliseconds(),
	}
	id, err := st.SaveQuery(ctx, doc)
	if err != nil {
		zap.L().Warn("pipeline: mongo save query", zap.Error(err))
		return
	}
	res.QueryID = id
	if err := st.SaveResults(ctx, id, res.Leads); err != nil {
		zap.L().Warn("pipeline: mongo save results", zap.Error(err))
	}
	if n, err := st.UpsertLeads(ctx, res.Leads); err != nil {
		zap.L().Warn("pipeline: mongo upsert leads", zap.Error(err))
	} else if n > 0 {
		zap.L().Info("pipeline: new leads stored", zap.Int("new", n))
	}
}

package pipeline

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lucasfdcampos/lead-scraper/internal/dedup"
	"github.com/lucasfdcampos/lead-scraper/internal/domain"
	"github.com/lucasfdcampos/lead-scraper/internal/location"
	"github.com/lucasfdcampos/lead-scraper/internal/walker"
)

// PageWalker walks one location. *walker.Walker is the production
// implementation.
type PageWalker interface {
	Walk(ctx context.Context, t walker.Target, seen *dedup.Set) walker.Outcome
}

// Controller turns a query into one or more location walks.
type Controller struct {
	walker  PageWalker
	tables  location.Tables
	workers int
}

type ControllerOption func(*Controller)

// WithWorkers walks up to n batch locations at once. Values below 2 keep the
// sweep sequential and its output order stable.
func WithWorkers(n int) ControllerOption {
	return func(c *Controller) { c.workers = n }
}

func NewController(w PageWalker, tables location.Tables, opts ...ControllerOption) *Controller {
	c := &Controller{walker: w, tables: tables, workers: 1}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run executes q. The returned result never holds more than q.Limit leads
// and never holds two leads with the same key.
func (c *Controller) Run(ctx context.Context, q domain.Query) domain.Result {
	q = q.Normalized()
	seen := dedup.NewSet(q.Limit)
	if c.tables.IsBatch(q.Location) {
		return c.batch(ctx, q, seen)
	}
	return c.single(ctx, q, seen)
}

func (c *Controller) single(ctx context.Context, q domain.Query, seen *dedup.Set) domain.Result {
	res := domain.Result{Mode: domain.ModeSingle, Locations: []string{q.Location}}

	primary := c.walker.Walk(ctx, walker.Target{Keyword: q.Keyword, Location: q.Location, Limit: q.Limit}, seen)
	leads := primary.Leads
	res.PagesScraped = primary.PagesScraped

	if fb, ok := c.tables.FallbackFor(q.Location); ok && !location.SameLocation(fb, q.Location) && !seen.Full() {
		zap.L().Info("pipeline: trying state fallback",
			zap.String("location", q.Location),
			zap.String("fallback", fb),
			zap.Int("have", len(leads)),
		)
		second := c.walker.Walk(ctx, walker.Target{Keyword: q.Keyword, Location: fb, Limit: q.Limit - len(leads)}, seen)
		leads = append(leads, second.Leads...)
		res.PagesScraped += second.PagesScraped
		res.Mode = domain.ModeSingleFallback
		res.Locations = append(res.Locations, fb)
	}

	if primary.Err != nil && len(leads) == 0 {
		res.Leads = []domain.Lead{}
		res.Status = primary.Status
		res.Error = primary.Err.Error()
		return res
	}
	return finish(res, leads)
}

func (c *Controller) batch(ctx context.Context, q domain.Query, seen *dedup.Set) domain.Result {
	res := domain.Result{
		Mode:      domain.ModeBatch,
		Locations: append([]string(nil), c.tables.Batch...),
	}

	outcomes := make([]walker.Outcome, len(c.tables.Batch))
	if c.workers < 2 {
		total := 0
		for i, loc := range c.tables.Batch {
			if seen.Full() {
				break
			}
			outcomes[i] = c.walk(ctx, q, loc, q.Limit-total, seen)
			total += len(outcomes[i].Leads)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(c.workers)
		for i, loc := range c.tables.Batch {
			if seen.Full() {
				break
			}
			g.Go(func() error {
				if !seen.Full() {
					outcomes[i] = c.walk(ctx, q, loc, q.Limit, seen)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	var leads []domain.Lead
	for _, o := range outcomes {
		leads = append(leads, o.Leads...)
		res.PagesScraped += o.PagesScraped
	}
	return finish(res, leads)
}

// walk runs one batch location. A failing location contributes nothing and
// does not stop the sweep.
func (c *Controller) walk(ctx context.Context, q domain.Query, loc string, limit int, seen *dedup.Set) walker.Outcome {
	out := c.walker.Walk(ctx, walker.Target{Keyword: q.Keyword, Location: loc, Limit: limit}, seen)
	if out.Err != nil {
		zap.L().Warn("pipeline: batch location failed", zap.String("location", loc), zap.Error(out.Err))
	}
	return out
}

func finish(res domain.Result, leads []domain.Lead) domain.Result {
	if leads == nil {
		leads = []domain.Lead{}
	}
	res.Leads = leads
	res.Count = len(leads)
	if len(leads) > 0 {
		res.Status = http.StatusOK
	} else {
		res.Status = http.StatusNotFound
	}
	return res
}

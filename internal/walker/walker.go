// Package walker pages through one (keyword, location) search on one site.
package walker

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lucasfdcampos/lead-scraper/internal/dedup"
	"github.com/lucasfdcampos/lead-scraper/internal/domain"
	"github.com/lucasfdcampos/lead-scraper/internal/extract"
	"github.com/lucasfdcampos/lead-scraper/internal/fetch"
	"github.com/lucasfdcampos/lead-scraper/internal/site"
)

const (
	DefaultPageDelayMin = 1500 * time.Millisecond
	DefaultPageDelayMax = 3 * time.Second
)

// Resolver fetches a page through whatever acquisition paths are configured.
// *fetch.Chain is the production implementation.
type Resolver interface {
	Resolve(ctx context.Context, url string) (fetch.Content, error)
}

// Target is one location of a query.
type Target struct {
	Keyword  string
	Location string
	// Limit caps the leads this walk may add.
	Limit int
}

// Outcome is what one walk produced. Err is set only when the first page
// could not be fetched; Status is then 403.
type Outcome struct {
	Leads        []domain.Lead
	PagesScraped int
	Err          error
	Status       int
}

type Walker struct {
	site     *site.Site
	resolver Resolver
	delayMin time.Duration
	delayMax time.Duration
	sleep    fetch.Sleeper
	accept   func(domain.Lead) bool
}

type Option func(*Walker)

// WithPageDelay sets the randomized pause between result pages.
func WithPageDelay(min, max time.Duration) Option {
	return func(w *Walker) { w.delayMin, w.delayMax = min, max }
}

func WithSleeper(s fetch.Sleeper) Option {
	return func(w *Walker) { w.sleep = s }
}

// WithFilter drops leads for which accept returns false before they reach the
// seen set.
func WithFilter(accept func(domain.Lead) bool) Option {
	return func(w *Walker) { w.accept = accept }
}

func New(s *site.Site, r Resolver, opts ...Option) *Walker {
	w := &Walker{
		site:     s,
		resolver: r,
		delayMin: DefaultPageDelayMin,
		delayMax: DefaultPageDelayMax,
		sleep:    fetch.Sleep,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Walk fetches result pages for t until the limit is reached, the shared set
// is full, a page yields nothing new, a page cannot be fetched, or the site's
// page cap is hit. Leads are admitted through seen, which may be shared with
// concurrent walks.
func (w *Walker) Walk(ctx context.Context, t Target, seen *dedup.Set) Outcome {
	var out Outcome
	log := zap.L().With(
		zap.String("site", w.site.Name),
		zap.String("keyword", t.Keyword),
		zap.String("location", t.Location),
	)

	for page := 1; page <= w.site.PageCap; page++ {
		if len(out.Leads) >= t.Limit || seen.Full() {
			break
		}

		url := w.site.PageURL(t.Keyword, t.Location, page)
		content, err := w.resolver.Resolve(ctx, url)
		if err != nil {
			if page == 1 {
				out.Err = err
				out.Status = http.StatusForbidden
				log.Warn("walker: first page unavailable", zap.Error(err))
			} else {
				log.Info("walker: stopping pagination", zap.Int("page", page), zap.Error(err))
			}
			break
		}

		leads := extract.Extract(content, w.site.Context(t.Keyword, t.Location, url))
		if len(leads) == 0 {
			log.Debug("walker: no results", zap.Int("page", page), zap.String("via", content.Via))
			break
		}
		out.PagesScraped++

		novel, full := w.admit(leads, t.Limit, seen, &out)
		log.Info("walker: page done",
			zap.Int("page", page),
			zap.String("via", content.Via),
			zap.Int("extracted", len(leads)),
			zap.Int("novel", novel),
			zap.Int("total", len(out.Leads)),
		)
		if novel == 0 || full || len(out.Leads) >= t.Limit || page == w.site.PageCap {
			break
		}

		if err := w.sleep(ctx, fetch.Jitter(w.delayMin, w.delayMax)); err != nil {
			break
		}
	}
	return out
}

// admit pushes leads through the filter and the seen set. novel counts leads
// that were not duplicates, including ones the filter rejected.
func (w *Walker) admit(leads []domain.Lead, limit int, seen *dedup.Set, out *Outcome) (novel int, full bool) {
	for _, l := range leads {
		if len(out.Leads) >= limit {
			return novel, false
		}
		key := dedup.Key(l, w.site.KeyMode)
		if w.accept != nil && !w.accept(l) {
			if !seen.Seen(key) {
				novel++
			}
			continue
		}
		switch seen.Admit(key) {
		case dedup.Admitted:
			out.Leads = append(out.Leads, l)
			novel++
		case dedup.Full:
			return novel, true
		}
	}
	return novel, false
}

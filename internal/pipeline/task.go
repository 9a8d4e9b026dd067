package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lucasfdcampos/lead-scraper/internal/dedup"
	"github.com/lucasfdcampos/lead-scraper/internal/domain"
	"github.com/lucasfdcampos/lead-scraper/internal/filter"
)

// Task processing defaults.
const (
	DefaultMinLeads   = 1000
	DefaultCycleLimit = 1200
	DefaultMaxCycles  = 15
)

// TaskStore persists tasks and their leads. *store.Client implements it.
type TaskStore interface {
	PendingTasks(ctx context.Context, limit int64) ([]domain.Task, error)
	ClaimTask(ctx context.Context, id string) (bool, error)
	UpdateTask(ctx context.Context, id string, u domain.TaskUpdate) (bool, error)
	SaveTaskLeads(ctx context.Context, taskID string, leads []domain.Lead) (int, error)
	UpsertLeads(ctx context.Context, leads []domain.Lead) (int, error)
}

// TaskConfig configures task processing. Zero limits take the defaults.
type TaskConfig struct {
	Pipeline Config
	Tasks    TaskStore
	// MinLeads is the number of unique phone-bearing leads that completes a
	// task.
	MinLeads int
	// CycleLimit is the query limit of each cycle.
	CycleLimit int
	MaxCycles  int
}

func (c TaskConfig) withDefaults() TaskConfig {
	if c.MinLeads <= 0 {
		c.MinLeads = DefaultMinLeads
	}
	if c.CycleLimit <= 0 {
		c.CycleLimit = DefaultCycleLimit
	}
	if c.MaxCycles <= 0 {
		c.MaxCycles = DefaultMaxCycles
	}
	return c
}

// ProcessPending claims up to limit pending tasks, oldest first, and
// processes them one after another.
func ProcessPending(ctx context.Context, limit int64, cfg TaskConfig) ([]domain.TaskReport, error) {
	tasks, err := cfg.Tasks.PendingTasks(ctx, limit)
	if err != nil {
		return nil, err
	}

	reports := []domain.TaskReport{}
	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		claimed, err := cfg.Tasks.ClaimTask(ctx, t.ID)
		if err != nil {
			zap.L().Warn("pipeline: claim task", zap.String("task_id", t.ID), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		reports = append(reports, ProcessTask(ctx, t, cfg))
	}
	return reports, nil
}

// ProcessTask scrapes a claimed task in cycles until it holds MinLeads
// unique phone-bearing leads or MaxCycles ran. Progress is written after
// every cycle; the final status is completed when the target was met and
// warning otherwise.
func ProcessTask(ctx context.Context, t domain.Task, cfg TaskConfig) domain.TaskReport {
	cfg = cfg.withDefaults()
	log := zap.L().With(
		zap.String("task_id", t.ID),
		zap.String("keyword", t.Keyword),
		zap.String("location", t.Location),
	)

	// Cycles are recorded on the task, not as individual query runs.
	pc := cfg.Pipeline
	pc.Mongo = nil

	seen := dedup.NewSet(0)
	report := domain.TaskReport{ID: t.ID}
	var failure error

	for report.Cycles < cfg.MaxCycles && seen.Len() < cfg.MinLeads {
		if err := ctx.Err(); err != nil {
			failure = err
			break
		}
		report.Cycles++

		res, err := Run(ctx, domain.Query{
			Keyword:      t.Keyword,
			Location:     t.Location,
			Site:         t.Site,
			Limit:        cfg.CycleLimit,
			RequirePhone: true,
			NoCache:      true,
		}, pc)
		if err != nil {
			failure = err
			break
		}

		var fresh []domain.Lead
		for _, l := range res.Leads {
			if filter.HasPhone(l) && seen.Admit(dedup.Key(l, dedup.KeyNamePhone)) == dedup.Admitted {
				fresh = append(fresh, l)
			}
		}
		if len(fresh) > 0 {
			if _, err := cfg.Tasks.SaveTaskLeads(ctx, t.ID, fresh); err != nil {
				log.Warn("pipeline: save task leads", zap.Error(err))
			}
			if _, err := cfg.Tasks.UpsertLeads(ctx, fresh); err != nil {
				log.Warn("pipeline: upsert task leads", zap.Error(err))
			}
		}

		reason := fmt.Sprintf("Cycle %d: %d leads (target: %d)", report.Cycles, seen.Len(), cfg.MinLeads)
		if res.Error != "" {
			reason = fmt.Sprintf("Cycle %d: %s; %d leads (target: %d)", report.Cycles, res.Error, seen.Len(), cfg.MinLeads)
		}
		count, cycles := seen.Len(), report.Cycles
		if _, err := cfg.Tasks.UpdateTask(ctx, t.ID, domain.TaskUpdate{
			LeadsCount:   &count,
			Cycles:       &cycles,
			ReviewReason: &reason,
		}); err != nil {
			log.Warn("pipeline: task progress", zap.Error(err))
		}
		log.Info("pipeline: task cycle done",
			zap.Int("cycle", report.Cycles),
			zap.Int("new", len(fresh)),
			zap.Int("total", seen.Len()),
		)
	}

	report.Leads = seen.Len()
	var reason string
	switch {
	case failure != nil:
		report.Status = domain.TaskWarning
		report.Error = failure.Error()
		reason = fmt.Sprintf("Stopped after cycle %d: %v", report.Cycles, failure)
	case report.Leads >= cfg.MinLeads:
		report.Status = domain.TaskCompleted
	default:
		report.Status = domain.TaskWarning
		reason = fmt.Sprintf("Max cycles (%d) reached: %d leads (target: %d)", cfg.MaxCycles, report.Leads, cfg.MinLeads)
	}

	count, cycles := report.Leads, report.Cycles
	if _, err := cfg.Tasks.UpdateTask(context.WithoutCancel(ctx), t.ID, domain.TaskUpdate{
		Status:       &report.Status,
		LeadsCount:   &count,
		Cycles:       &cycles,
		ReviewReason: &reason,
		Finished:     true,
	}); err != nil {
		log.Warn("pipeline: finish task", zap.Error(err))
	}
	log.Info("pipeline: task finished",
		zap.String("status", report.Status),
		zap.Int("cycles", report.Cycles),
		zap.Int("leads", report.Leads),
	)
	return report
}

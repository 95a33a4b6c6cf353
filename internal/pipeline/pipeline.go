// Package pipeline runs the sales ETL end to end: extract both regional
// files, transform, ensure the schema, load, then validate. Phases run one
// after another on a single goroutine and the first failure aborts the run.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-etl/internal/extract"
	"github.com/sells-group/sales-etl/internal/metrics"
	"github.com/sells-group/sales-etl/internal/model"
	"github.com/sells-group/sales-etl/internal/store"
	"github.com/sells-group/sales-etl/internal/transform"
	"github.com/sells-group/sales-etl/internal/validate"
)

// Phase names, in execution order.
const (
	PhaseExtract   = "1_extract"
	PhaseTransform = "2_transform"
	PhaseSchema    = "3_schema"
	PhaseLoad      = "4_load"
	PhaseValidate  = "5_validate"
)

// Pipeline wires the stages to one store handle.
type Pipeline struct {
	store   store.Store
	sources []extract.Source
	metrics *metrics.Recorder
}

// New creates a Pipeline. sources must name exactly two files; the first is
// merged ahead of the second. rec may be nil.
func New(st store.Store, sources []extract.Source, rec *metrics.Recorder) *Pipeline {
	return &Pipeline{store: st, sources: sources, metrics: rec}
}

// Result is the outcome of a run.
type Result struct {
	Run     model.Run                   `json:"run" yaml:"run"`
	Stats   transform.Stats             `json:"stats" yaml:"stats"`
	Records []model.EnrichedSalesRecord `json:"-" yaml:"-"`
	Loaded  int64                       `json:"loaded" yaml:"loaded"`
	Report  *validate.Report            `json:"report,omitempty" yaml:"report,omitempty"`
}

// Prepare runs extract and transform only. The store is not touched.
func (p *Pipeline) Prepare(ctx context.Context) (*Result, error) {
	res, log := p.begin()
	err := p.prepare(ctx, res, log)
	p.finish(res, log, err)
	return res, err
}

// Run executes every phase against the store.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if p.store == nil {
		return nil, eris.New("pipeline: no store configured")
	}

	res, log := p.begin()
	err := p.run(ctx, res, log)
	p.finish(res, log, err)
	return res, err
}

func (p *Pipeline) begin() (*Result, *zap.Logger) {
	res := &Result{Run: model.Run{
		ID:        uuid.NewString(),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", res.Run.ID))
	log.Info("pipeline: starting run", zap.Int("sources", len(p.sources)))
	return res, log
}

func (p *Pipeline) finish(res *Result, log *zap.Logger, err error) {
	res.Run.FinishedAt = time.Now().UTC()
	p.metrics.RunFinished(err)
	if err != nil {
		res.Run.Status = model.RunStatusFailed
		log.Error("pipeline: run failed", zap.Error(err))
		return
	}
	res.Run.Status = model.RunStatusComplete
	log.Info("pipeline: run complete",
		zap.Int("input", res.Stats.Input),
		zap.Int("output", res.Stats.Output),
		zap.Int64("loaded", res.Loaded),
		zap.Duration("elapsed", res.Run.FinishedAt.Sub(res.Run.StartedAt)),
	)
}

// trackPhase times fn and appends its outcome to the run.
func (p *Pipeline) trackPhase(res *Result, log *zap.Logger, name string, fn func() (map[string]any, error)) error {
	start := time.Now()
	meta, err := fn()
	duration := time.Since(start).Milliseconds()
	p.metrics.ObserveStage(name, start, err)

	phase := model.PhaseResult{Name: name, Duration: duration, Metadata: meta}
	if err != nil {
		phase.Status = model.PhaseStatusFailed
		phase.Error = err.Error()
		log.Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
	} else {
		phase.Status = model.PhaseStatusComplete
		log.Info("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", duration),
		)
	}
	res.Run.Phases = append(res.Run.Phases, phase)
	return err
}

func (p *Pipeline) prepare(ctx context.Context, res *Result, log *zap.Logger) error {
	if len(p.sources) != 2 {
		return eris.Errorf("pipeline: need exactly 2 sources, got %d", len(p.sources))
	}

	var batches [][]model.SalesRecord
	err := p.trackPhase(res, log, PhaseExtract, func() (map[string]any, error) {
		var err error
		batches, err = extract.ExtractAll(ctx, p.sources)
		if err != nil {
			return nil, err
		}
		meta := make(map[string]any, len(batches))
		for i, b := range batches {
			meta[string(p.sources[i].Region)] = len(b)
		}
		return meta, nil
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: extract")
	}

	err = p.trackPhase(res, log, PhaseTransform, func() (map[string]any, error) {
		tr, err := transform.TransformStrict(batches[0], batches[1])
		if err != nil {
			return nil, err
		}
		res.Records = tr.Records
		res.Stats = tr.Stats
		return map[string]any{
			"input":        tr.Stats.Input,
			"duplicates":   tr.Stats.Duplicates,
			"non_positive": tr.Stats.NonPositive,
			"output":       tr.Stats.Output,
		}, nil
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: transform")
	}

	p.metrics.AddRecords(metrics.KindExtracted, res.Stats.Input)
	p.metrics.AddRecords(metrics.KindDuplicate, res.Stats.Duplicates)
	p.metrics.AddRecords(metrics.KindNonPositive, res.Stats.NonPositive)
	if res.Stats.Duplicates > 0 || res.Stats.NonPositive > 0 {
		log.Info("pipeline: rows dropped in transform",
			zap.Int("duplicates", res.Stats.Duplicates),
			zap.Int("non_positive", res.Stats.NonPositive),
		)
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, res *Result, log *zap.Logger) error {
	if err := p.prepare(ctx, res, log); err != nil {
		return err
	}

	err := p.trackPhase(res, log, PhaseSchema, func() (map[string]any, error) {
		return map[string]any{"table": p.store.Table()}, p.store.EnsureSchema(ctx)
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: ensure schema")
	}

	err = p.trackPhase(res, log, PhaseLoad, func() (map[string]any, error) {
		n, err := p.store.Upsert(ctx, res.Records)
		if err != nil {
			return nil, err
		}
		res.Loaded = n
		return map[string]any{"records": n}, nil
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: load")
	}
	p.metrics.AddRecords(metrics.KindLoaded, int(res.Loaded))

	err = p.trackPhase(res, log, PhaseValidate, func() (map[string]any, error) {
		report, err := validate.Run(ctx, p.store)
		if err != nil {
			return nil, err
		}
		res.Report = report
		return map[string]any{
			"records": report.RecordCount,
			"healthy": report.Healthy(),
		}, nil
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: validate")
	}
	p.metrics.SetTableRows(res.Report.RecordCount)
	return nil
}

// Package pipeline runs one end-to-end build of the product set: parse the
// extract, aggregate, diff against the previous snapshot, enrich, persist
// and cluster.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/giygas/dpd-api/dpdparser"
	"github.com/giygas/dpd-api/dpdparser/entities"
	"github.com/giygas/dpd-api/logging"
	"github.com/giygas/dpd-api/metrics"
	"github.com/giygas/dpd-api/monograph"
	"github.com/giygas/dpd-api/snapshot"
	"github.com/giygas/dpd-api/store"
	"github.com/giygas/dpd-api/trademark"
)

// Stage names, in execution order.
const (
	StageDownload     = "download"
	StageParse        = "parse"
	StageAggregate    = "aggregate"
	StageArtifact     = "artifact"
	StageLoadSnapshot = "load_snapshot"
	StageDiff         = "diff"
	StageEnrich       = "enrich"
	StagePersist      = "persist"
	StageCluster      = "cluster"
)

// StageError reports the stage a run failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Fetcher puts a fresh extract into a directory.
type Fetcher interface {
	Fetch(ctx context.Context, dir string) error
}

// Enricher looks up the enrichment of pending products.
type Enricher interface {
	Enrich(ctx context.Context, pending []snapshot.Pending) ([]snapshot.Pending, []string)
}

// Store is the durable side of a run.
type Store interface {
	BeginRun(ctx context.Context, sourceLastUpdate string) (*store.Run, error)
	FinishRun(ctx context.Context, run *store.Run, failedStage string, runErr error) error
	SaveProducts(ctx context.Context, runID string, products []entities.DrugProduct) ([]uint, error)
}

// Options locate the inputs and outputs of a run.
type Options struct {
	DataDir      string
	ArtifactsDir string
}

// Report summarizes a successful run.
type Report struct {
	RunID            string
	SourceLastUpdate string

	Products []entities.DrugProduct
	Clusters []entities.TrademarkCluster
	Stats    map[string]dpdparser.ParseStats

	Matched       int
	Pending       int
	Dropped       int
	FailedLookups []string

	Duration time.Duration
}

// Pipeline wires the stages together. A nil fetcher reads the extract
// already present in DataDir.
type Pipeline struct {
	opts     Options
	fetcher  Fetcher
	store    Store
	enricher Enricher
	engine   *trademark.Engine
}

func New(opts Options, fetcher Fetcher, st Store, enricher Enricher, engine *trademark.Engine) *Pipeline {
	return &Pipeline{
		opts:     opts,
		fetcher:  fetcher,
		store:    st,
		enricher: enricher,
		engine:   engine,
	}
}

// Run executes every stage once. On failure the returned error is a
// *StageError and the run is recorded as failed.
func (p *Pipeline) Run(ctx context.Context, sourceLastUpdate string) (*Report, error) {
	start := time.Now()

	run, err := p.store.BeginRun(ctx, sourceLastUpdate)
	if err != nil {
		return nil, p.fail(StagePersist, err, start)
	}
	logging.Info("Pipeline run started", "run_id", run.ID, "source_last_update", sourceLastUpdate)

	report, stageErr := p.run(ctx, run)

	var failedStage string
	var se *StageError
	if errors.As(stageErr, &se) {
		failedStage = se.Stage
	}
	if report != nil {
		run.Products = len(report.Products)
		run.Matched = report.Matched
		run.Pending = report.Pending
		run.FailedLookups = len(report.FailedLookups)
		run.Clusters = len(report.Clusters)
	}
	if err := p.store.FinishRun(context.WithoutCancel(ctx), run, failedStage, stageErr); err != nil {
		logging.Error("Failed to record run end", "run_id", run.ID, "error", err)
	}

	if stageErr != nil {
		metrics.PipelineRuns.WithLabelValues("failure", failedStage).Inc()
		logging.Error("Pipeline run failed", "run_id", run.ID, "stage", failedStage, "error", stageErr)
		return nil, stageErr
	}

	report.Duration = time.Since(start)
	metrics.PipelineRuns.WithLabelValues("success", "").Inc()
	metrics.PipelineDuration.Observe(report.Duration.Seconds())
	metrics.PipelineLastSuccess.SetToCurrentTime()

	logging.Info("Pipeline run completed",
		"run_id", run.ID,
		"duration", report.Duration.String(),
		"products", len(report.Products),
		"matched", report.Matched,
		"pending", report.Pending,
		"failed_lookups", len(report.FailedLookups),
		"clusters", len(report.Clusters))
	return report, nil
}

func (p *Pipeline) fail(stage string, err error, start time.Time) error {
	metrics.PipelineRuns.WithLabelValues("failure", stage).Inc()
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	return &StageError{Stage: stage, Err: err}
}

func (p *Pipeline) run(ctx context.Context, run *store.Run) (*Report, error) {
	report := &Report{RunID: run.ID, SourceLastUpdate: run.SourceLastUpdate}

	if p.fetcher != nil {
		if err := p.fetcher.Fetch(ctx, p.opts.DataDir); err != nil {
			return report, &StageError{Stage: StageDownload, Err: err}
		}
	}

	export, err := dpdparser.ReadExport(p.opts.DataDir)
	if err != nil {
		return report, &StageError{Stage: StageParse, Err: err}
	}
	report.Stats = export.Stats

	products, err := dpdparser.Aggregate(export)
	if err != nil {
		return report, &StageError{Stage: StageAggregate, Err: err}
	}

	if err := snapshot.WriteJSON(p.artifact(snapshot.AggregatedFile), products); err != nil {
		return report, &StageError{Stage: StageArtifact, Err: err}
	}

	previous, err := p.loadPrevious()
	if err != nil {
		return report, &StageError{Stage: StageLoadSnapshot, Err: err}
	}

	diff := snapshot.Diff(products, previous)
	report.Matched = diff.Matched
	report.Pending = len(diff.Pending)
	report.Dropped = diff.Dropped
	logging.Info("Snapshot diff computed",
		"matched", diff.Matched,
		"pending", len(diff.Pending),
		"dropped_dins", diff.Dropped)

	products = diff.Products
	if len(diff.Pending) > 0 {
		if err := ctx.Err(); err != nil {
			return report, &StageError{Stage: StageEnrich, Err: err}
		}
		enriched, failed := p.enricher.Enrich(ctx, diff.Pending)
		monograph.Apply(products, enriched)
		report.FailedLookups = failed
		if len(failed) > 0 {
			logging.Warn("Monograph lookups failed", "count", len(failed), "drug_codes", failed)
		}
	}
	report.Products = products

	ids, err := p.store.SaveProducts(ctx, run.ID, products)
	if err != nil {
		return report, &StageError{Stage: StagePersist, Err: err}
	}

	if err := snapshot.WriteDocuments(p.artifact(snapshot.SnapshotFile), snapshot.NewDocuments(products, ids)); err != nil {
		return report, &StageError{Stage: StageArtifact, Err: err}
	}

	report.Clusters = p.engine.Cluster(products)
	if err := snapshot.WriteJSON(p.artifact(snapshot.TrademarksFile), report.Clusters); err != nil {
		return report, &StageError{Stage: StageCluster, Err: err}
	}

	return report, nil
}

// loadPrevious reads the snapshot of the last run. The first run has none.
func (p *Pipeline) loadPrevious() ([]snapshot.Document, error) {
	docs, err := snapshot.ReadDocuments(p.artifact(snapshot.SnapshotFile))
	if errors.Is(err, os.ErrNotExist) {
		logging.Info("No previous snapshot, every product needs enrichment")
		return nil, nil
	}
	return docs, err
}

func (p *Pipeline) artifact(name string) string {
	return filepath.Join(p.opts.ArtifactsDir, name)
}

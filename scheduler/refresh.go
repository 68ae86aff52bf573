package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/giygas/dpd-api/logging"
	"github.com/giygas/dpd-api/pipeline"
	"github.com/giygas/dpd-api/validation"
)

// Refresh checks the source and rebuilds the product set when a new release
// is out, or regardless when force is set. It returns a nil report when
// nothing ran: another refresh holds the store or the source is unchanged.
//
// The new set is swapped in only when it passes the integrity checks, and
// the release date is committed only after the swap, so a failed refresh is
// retried at the next slot.
func (s *Scheduler) Refresh(ctx context.Context, force bool) (*pipeline.Report, error) {
	if !s.dataStore.BeginUpdate() {
		logging.Info("Update already in progress, skipping...")
		return nil, nil
	}
	defer s.dataStore.EndUpdate()

	change, err := s.watcher.Check(ctx)
	switch {
	case err != nil && !force:
		return nil, fmt.Errorf("failed to check source: %w", err)
	case err != nil:
		logging.Warn("Source check failed, running anyway", "error", err)
	default:
		s.lastCheck.Store(time.Now())
	}

	if !change.Changed && !force {
		return nil, nil
	}

	logging.Info(fmt.Sprintf("Starting database update at: %s", time.Now().Format(time.RFC3339)),
		"latest", change.Latest, "previous", change.Previous, "forced", force)

	report, err := s.pipeline.Run(ctx, change.Latest)
	if err != nil {
		return nil, fmt.Errorf("pipeline run failed: %w", err)
	}

	validation.LogReport(s.validator.ReportDataQuality(report.Products, report.Clusters))
	if err := s.validator.ValidateDataIntegrity(report.Products, report.Clusters); err != nil {
		logging.Error("Refusing to serve the new product set", "error", err, "run_id", report.RunID)
		return report, fmt.Errorf("data integrity check failed: %w", err)
	}

	s.dataStore.UpdateData(report.Products, report.Clusters)

	if change.Latest != "" {
		if err := s.watcher.Commit(ctx, change.Latest); err != nil {
			return report, fmt.Errorf("failed to commit source date %s: %w", change.Latest, err)
		}
	}

	logging.Info("Database update completed",
		"duration", report.Duration.String(),
		"products", len(report.Products),
		"trademarks", len(report.Clusters),
		"run_id", report.RunID)

	return report, nil
}

// Package store persists pipeline output with gorm: the product batch of
// each run, the run ledger and the upstream source state.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/giygas/dpd-api/dpdparser/entities"
	"github.com/giygas/dpd-api/logging"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

const batchSize = 500

// Store wraps the database connection.
type Store struct {
	db *gorm.DB
}

// gormWriter sends gorm's own log lines through the application logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	logging.Warn("database", "detail", fmt.Sprintf(format, args...))
}

// Open connects to dsn and migrates the schema. postgres:// and
// postgresql:// DSNs use Postgres; anything else is a SQLite path.
func Open(dsn string) (*Store, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.New(gormWriter{}, gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return New(db)
}

// New migrates the schema on an existing connection.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&ProductRow{}, &Run{}, &SourceState{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SaveProducts inserts all products of a run in one transaction and returns
// their storage IDs in product order. Nothing is committed on failure.
func (s *Store) SaveProducts(ctx context.Context, runID string, products []entities.DrugProduct) ([]uint, error) {
	rows := make([]ProductRow, len(products))
	for i, p := range products {
		row, err := NewProductRow(runID, p)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}

	if len(rows) == 0 {
		return []uint{}, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&rows, batchSize).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert %d products: %w", len(rows), err)
	}

	ids := make([]uint, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	logging.Info("Products stored", "run_id", runID, "count", len(ids))
	return ids, nil
}

// LatestProducts returns the products of the most recent successful run
// and the time that run finished, or nil and the zero time when there is
// none.
func (s *Store) LatestProducts(ctx context.Context) ([]entities.DrugProduct, time.Time, error) {
	var run Run
	err := s.db.WithContext(ctx).
		Where("status = ?", RunSucceeded).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to find latest run: %w", err)
	}

	var rows []ProductRow
	if err := s.db.WithContext(ctx).Where("run_id = ?", run.ID).Order("id").Find(&rows).Error; err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load products of run %s: %w", run.ID, err)
	}

	products := make([]entities.DrugProduct, 0, len(rows))
	for _, row := range rows {
		p, err := row.Product()
		if err != nil {
			return nil, time.Time{}, err
		}
		products = append(products, p)
	}

	finished := run.StartedAt
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	return products, finished, nil
}

// BeginRun records the start of a pipeline run.
func (s *Store) BeginRun(ctx context.Context, sourceLastUpdate string) (*Run, error) {
	run := &Run{
		ID:               uuid.NewString(),
		StartedAt:        time.Now().UTC(),
		Status:           RunRunning,
		SourceLastUpdate: sourceLastUpdate,
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}
	return run, nil
}

// FinishRun stores the final state of run. A non-empty failedStage marks the
// run as failed.
func (s *Store) FinishRun(ctx context.Context, run *Run, failedStage string, runErr error) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = RunSucceeded
	if failedStage != "" || runErr != nil {
		run.Status = RunFailed
		run.FailedStage = failedStage
		if runErr != nil {
			run.Error = runErr.Error()
		}
	}
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("failed to record run end: %w", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	if err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// SourceLastUpdate returns the stored upstream update date of project, or ""
// when none was recorded.
func (s *Store) SourceLastUpdate(ctx context.Context, project string) (string, error) {
	var state SourceState
	err := s.db.WithContext(ctx).Where("project = ?", project).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read source state: %w", err)
	}
	return state.LastUpdate, nil
}

// SetSourceLastUpdate upserts the upstream update date of project.
func (s *Store) SetSourceLastUpdate(ctx context.Context, project, lastUpdate string) error {
	state := SourceState{Project: project, LastUpdate: lastUpdate, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_update", "updated_at"}),
	}).Create(&state).Error
	if err != nil {
		return fmt.Errorf("failed to store source state: %w", err)
	}
	return nil
}

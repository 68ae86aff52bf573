package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/giygas/dpd-api/config"
	"github.com/giygas/dpd-api/data"
	"github.com/giygas/dpd-api/logging"
	"github.com/giygas/dpd-api/monograph"
	"github.com/giygas/dpd-api/pipeline"
	"github.com/giygas/dpd-api/scheduler"
	"github.com/giygas/dpd-api/server"
	"github.com/giygas/dpd-api/source"
	"github.com/giygas/dpd-api/store"
	"github.com/giygas/dpd-api/trademark"
	"github.com/giygas/dpd-api/validation"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dpd-api",
		Short:         "Drug Product Database pipeline and API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(runsCmd())

	if err := rootCmd.Execute(); err != nil {
		logging.Error("Command failed", "error", err)
		_ = logging.Close()
		os.Exit(1)
	}
	_ = logging.Close()
}

// app holds the components shared by the commands
type app struct {
	cfg      *config.Config
	store    *store.Store
	watcher  *source.Watcher
	enricher *monograph.Enricher
	engine   *trademark.Engine
}

func setup() (*app, error) {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.InitLoggerWithOptions(logging.Options{
		Dir:            cfg.LogDir,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
	})

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	rules, err := trademark.LoadRules(cfg.TrademarkRulesPath)
	if err != nil {
		return nil, err
	}
	reference, err := trademark.LoadReference(cfg.TrademarkReferencePath)
	if err != nil {
		return nil, err
	}
	lookup := monograph.NewHTTPLookup(cfg.MonographURL, cfg.LookupTimeout)

	return &app{
		cfg:      cfg,
		store:    st,
		watcher:  source.NewWatcher(cfg.IndexURL, st),
		enricher: monograph.NewEnricher(lookup, cfg.LookupWorkers, cfg.LookupTimeout),
		engine:   trademark.NewEngine(rules, reference),
	}, nil
}

// newPipeline builds the pipeline. Without download it reads the extract
// already in DATA_DIR.
func (a *app) newPipeline(download bool) *pipeline.Pipeline {
	var fetcher pipeline.Fetcher
	if download {
		fetcher = source.NewDownloader(a.cfg.ExportURL)
	}
	return pipeline.New(
		pipeline.Options{DataDir: a.cfg.DataDir, ArtifactsDir: a.cfg.ArtifactsDir},
		fetcher, a.store, a.enricher, a.engine,
	)
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		logging.Warn("Failed to close database", "error", err)
	}
}

// loadStored fills the container with the last successful run, so the API
// serves data before the first refresh finishes.
func (a *app) loadStored(ctx context.Context, dc *data.DataContainer) error {
	products, finished, err := a.store.LatestProducts(ctx)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		logging.Info("No stored products, waiting for the first pipeline run")
		return nil
	}
	dc.UpdateDataAt(products, a.engine.Cluster(products), finished)
	logging.Info("Loaded stored products", "products", len(products), "built_at", finished.Format(time.RFC3339))
	return nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the API and refresh the data on the configured timetable",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			dc := data.NewDataContainer()
			dc.SetServerStartTime(time.Now())
			if err := a.loadStored(cmd.Context(), dc); err != nil {
				return err
			}

			srv := server.NewServer(a.cfg, dc)
			serverErr := make(chan error, 2)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			sched := scheduler.NewScheduler(dc, a.watcher, a.newPipeline(true), validation.NewDataValidator(), a.cfg.UpdateTimes)
			go func() {
				if err := sched.Start(); err != nil {
					serverErr <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			var runErr error
			select {
			case <-quit:
			case runErr = <-serverErr:
				logging.Error("Stopping after a fatal error", "error", runErr)
			}

			sched.Stop()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			return runErr
		},
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			skipDownload, _ := cmd.Flags().GetBool("skip-download")

			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			dc := data.NewDataContainer()
			sched := scheduler.NewScheduler(dc, a.watcher, a.newPipeline(!skipDownload), validation.NewDataValidator(), a.cfg.UpdateTimes)
			defer sched.Stop()

			report, err := sched.Refresh(ctx, force)
			if err != nil {
				return err
			}
			if report == nil {
				fmt.Println("Source unchanged, nothing to do. Use --force to run anyway.")
				return nil
			}

			fmt.Printf("Run %s: %d products, %d matched, %d looked up, %d dropped, %d failed lookups, %d trademarks in %s\n",
				report.RunID, len(report.Products), report.Matched, report.Pending, report.Dropped,
				len(report.FailedLookups), len(report.Clusters), report.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Run even when the source is unchanged")
	cmd.Flags().Bool("skip-download", false, "Use the extract already in DATA_DIR")
	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check whether a new extract has been published",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			change, err := a.watcher.Check(cmd.Context())
			if err != nil {
				return err
			}

			previous := change.Previous
			if previous == "" {
				previous = "never"
			}
			fmt.Printf("Published: %s\nLast built: %s\nChanged: %t\n", change.Latest, previous, change.Changed)
			return nil
		},
	}
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			runs, err := a.store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}

			fmt.Printf("%-36s %-20s %-10s %-12s %8s %8s %s\n", "ID", "STARTED", "STATUS", "SOURCE", "PRODUCTS", "PENDING", "FAILED STAGE")
			for _, r := range runs {
				fmt.Printf("%-36s %-20s %-10s %-12s %8d %8d %s\n",
					r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.SourceLastUpdate,
					r.Products, r.Pending, r.FailedStage)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Number of runs to show")
	return cmd
}

// Package main provides the vocabs-toolkit binary: it runs vocabulary
// processing tasks, inspects their persisted records and hosts the uploads
// watcher in serve mode.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/config"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/storage"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/watcher"
)

const (
	// Version is the toolkit version.
	Version = "0.1.0"
	appName = "vocabs-toolkit"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           appName,
		Short:         "Registry and processing toolkit for controlled vocabularies",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	logger := func() *slog.Logger {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	root.AddCommand(newRunCommand(logger))
	root.AddCommand(newTasksCommand(logger))
	root.AddCommand(newServeCommand(logger))
	return root
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	return config.NewLoader(logger).Load()
}

func newRunCommand(logger func() *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "run <task-file.yaml>",
		Short: "Execute a vocabulary processing task from a YAML definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger()
			cfg, err := loadConfig(log)
			if err != nil {
				return err
			}

			info, err := task.LoadTaskFile(args[0])
			if err != nil {
				return err
			}

			app := NewApp(cfg, log)
			if err := app.Start(cmd.Context()); err != nil {
				return err
			}
			defer app.Shutdown()

			report, err := app.Runner().Run(cmd.Context(), info)
			var persistErr *task.PersistenceError
			if errors.As(err, &persistErr) && persistErr.Results != nil {
				// The run finished; only the record write failed.
				log.Warn("results were computed but not persisted",
					slog.String("error", persistErr.Error()))
			} else if err != nil {
				return err
			}

			printResults(cmd, report)
			if report.Results.Status == task.StatusError {
				return fmt.Errorf("run ended with status error")
			}
			return nil
		},
	}
}

func printResults(cmd *cobra.Command, report *task.RunReport) {
	cmd.Printf("Task:   %s\n", report.TaskID)
	cmd.Printf("Status: %s\n", report.Results.Status)
	for _, entry := range report.Results.Entries {
		cmd.Printf("  %-20s %s\n", entry.Label, entry.Outcome)
	}
}

func newTasksCommand(logger func() *slog.Logger) *cobra.Command {
	tasks := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect persisted task records",
	}

	withApp := func(cmd *cobra.Command, fn func(ctx context.Context, store *storage.Store) error) error {
		log := logger()
		cfg, err := loadConfig(log)
		if err != nil {
			return err
		}
		app := NewApp(cfg, log)
		if err := app.Start(cmd.Context()); err != nil {
			return err
		}
		defer app.Shutdown()
		return fn(cmd.Context(), app.TaskStore())
	}

	tasks.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all task records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, store *storage.Store) error {
				records, err := store.ListTasks(ctx)
				if err != nil {
					return err
				}
				for _, r := range records {
					status := "running"
					if r.Completed() {
						status = string(r.Results.Status)
					}
					cmd.Printf("%s  %-10s %s/%s  %s\n",
						r.ID, status, r.Info.VocabularyID, r.Info.VersionID,
						r.CreatedAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	})

	tasks.AddCommand(&cobra.Command{
		Use:   "get <task-id>",
		Short: "Show one task record with its results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, store *storage.Store) error {
				record, err := store.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				cmd.Printf("Task:       %s\n", record.ID)
				cmd.Printf("Vocabulary: %s\n", record.Info.VocabularyID)
				cmd.Printf("Version:    %s\n", record.Info.VersionID)
				cmd.Printf("Created:    %s\n", record.CreatedAt.Format(time.RFC3339))
				if !record.Completed() {
					cmd.Println("Status:     running")
					return nil
				}
				cmd.Printf("Completed:  %s\n", record.CompletedAt.Format(time.RFC3339))
				cmd.Printf("Status:     %s\n", record.Results.Status)
				for _, entry := range record.Results.Entries {
					cmd.Printf("  %-20s %s\n", entry.Label, entry.Outcome)
				}
				return nil
			})
		},
	})

	return tasks
}

func newServeCommand(logger func() *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the uploads watcher and the metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger()
			cfg, err := loadConfig(log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app := NewApp(cfg, log)
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Shutdown()

			// Reconcile records orphaned by an earlier crash.
			if failed, err := storage.FailAbandoned(ctx, app.TaskStore(), cfg.Pipeline.AbandonedAfter.Duration()); err != nil {
				log.Warn("abandoned task reconciliation failed", slog.String("error", err.Error()))
			} else if failed > 0 {
				log.Info("abandoned tasks marked failed", slog.Int("count", failed))
			}

			uploads, err := watcher.New(watcher.Config{
				Dir:            cfg.Uploads.Dir,
				DebounceDelay:  cfg.Uploads.DebounceDelay.Duration(),
				FileExtensions: cfg.Uploads.FileExtensions,
			}, app.Runner(), log)
			if err != nil {
				return err
			}
			if err := uploads.Start(ctx); err != nil {
				return err
			}
			defer uploads.Stop()

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				fmt.Fprintln(w, "ok")
			})
			srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("metrics server failed", slog.String("error", err.Error()))
				}
			}()

			log.Info("serving",
				slog.String("uploads_dir", cfg.Uploads.Dir),
				slog.String("metrics_addr", cfg.Metrics.Addr))

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/config"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/provider/cleanup"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/provider/harvest"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/provider/importer"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/provider/subjects"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/provider/transform"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/registry"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/sink"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/storage"
	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
)

// App wires together the pipeline components behind the CLI commands.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// NATS
	embeddedServer *server.Server
	natsConn       *nats.Conn
	js             jetstream.JetStream

	// Stores
	taskStore *storage.Store
	registry  *registry.Store

	// Pipeline
	runner *task.Runner
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}
}

// Start initializes NATS, the stores and the task runner.
func (a *App) Start(ctx context.Context) error {
	if err := a.startNATS(); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	taskStore, err := storage.NewStore(ctx, a.js)
	if err != nil {
		return fmt.Errorf("initialize task store: %w", err)
	}
	a.taskStore = taskStore

	registryStore, err := registry.NewStore(ctx, a.js)
	if err != nil {
		return fmt.Errorf("initialize registry store: %w", err)
	}
	a.registry = registryStore

	ingestSubject := a.cfg.Pipeline.IngestSubject
	if ingestSubject == "" {
		ingestSubject = sink.DefaultIngestSubject
	}
	// The indexing service owns this stream in a full deployment; creating
	// it here keeps the embedded setup self-contained.
	if _, err := a.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     "VOCAB_INDEX",
		Subjects: []string{ingestSubject},
	}); err != nil {
		return fmt.Errorf("create index ingest stream: %w", err)
	}
	publisher := sink.NewNATSPublisher(a.js, ingestSubject)

	providers := task.NewRegistry()
	for _, p := range []task.Provider{
		harvest.New(a.logger),
		transform.New(a.logger),
		importer.New(publisher, a.logger),
		subjects.New(a.logger),
		cleanup.New(a.logger),
	} {
		if err := providers.Register(p); err != nil {
			return fmt.Errorf("register provider: %w", err)
		}
	}

	a.runner = task.NewRunner(providers, taskStore,
		task.WithLogger(a.logger),
		task.WithMetrics(task.NewMetrics(prometheus.DefaultRegisterer)),
		task.WithVersionStatusWriter(registryStore),
		task.WithWorkRoot(a.cfg.Pipeline.WorkRoot),
		task.WithCompleteRetryWindow(a.cfg.Pipeline.CompleteRetryWindow.Duration()),
	)
	return nil
}

// Runner exposes the task runner to the commands.
func (a *App) Runner() *task.Runner { return a.runner }

// TaskStore exposes the task store to the commands.
func (a *App) TaskStore() *storage.Store { return a.taskStore }

func (a *App) startNATS() error {
	if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
		a.logger.Debug("connecting to NATS", slog.String("url", a.cfg.NATS.URL))
		conn, err := nats.Connect(a.cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn
	} else {
		opts := &server.Options{
			Port:      -1, // Random available port
			JetStream: true,
			NoLog:     true,
			NoSigs:    true,
		}
		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}
		go ns.Start()
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}
		a.embeddedServer = ns

		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return fmt.Errorf("connect to embedded NATS: %w", err)
		}
		a.natsConn = conn
	}

	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js
	return nil
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() {
	if a.natsConn != nil {
		a.natsConn.Drain()
		a.natsConn.Close()
	}
	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}
}

// Package servecmder provides the serve command that runs the psyche API
// server and its cascade workers.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/api"
	"github.com/papercomputeco/psyche/pkg/config"
	"github.com/papercomputeco/psyche/pkg/dispatch"
	"github.com/papercomputeco/psyche/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/psyche/pkg/embeddings/utils"
	"github.com/papercomputeco/psyche/pkg/eventstream"
	"github.com/papercomputeco/psyche/pkg/eventstream/kafka"
	"github.com/papercomputeco/psyche/pkg/eventstream/nop"
	"github.com/papercomputeco/psyche/pkg/fusion"
	"github.com/papercomputeco/psyche/pkg/llm"
	llmutils "github.com/papercomputeco/psyche/pkg/llm/utils"
	"github.com/papercomputeco/psyche/pkg/logger"
	"github.com/papercomputeco/psyche/pkg/pattern"
	"github.com/papercomputeco/psyche/pkg/respond"
	"github.com/papercomputeco/psyche/pkg/snapshot"
	"github.com/papercomputeco/psyche/pkg/storage"
	"github.com/papercomputeco/psyche/pkg/storage/inmemory"
	"github.com/papercomputeco/psyche/pkg/storage/postgres"
	"github.com/papercomputeco/psyche/pkg/storage/sqlite"
	"github.com/papercomputeco/psyche/pkg/vector"
	vectorutils "github.com/papercomputeco/psyche/pkg/vector/utils"
)

// serveFlags is the flag registry for the serve command.
var serveFlags = config.FlagSet{
	config.FlagAPIListen: {
		Name: "listen", Shorthand: "l", ViperKey: "api.listen",
		Description: "Address for the API server to listen on",
	},
	config.FlagStorageProvider: {
		Name: "storage-provider", ViperKey: "storage.provider",
		Description: "Primary store backend (sqlite, postgres, inmemory)",
	},
	config.FlagSQLite: {
		Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path",
		Description: "Path to the SQLite database file",
	},
	config.FlagPostgresDSN: {
		Name: "postgres-dsn", ViperKey: "storage.postgres_dsn",
		Description: "Postgres connection string",
	},
	config.FlagVectorStoreProv: {
		Name: "vector-store-provider", ViperKey: "vector_store.provider",
		Description: "Vector store backend (sqlitevec, chromem)",
	},
	config.FlagVectorStoreTgt: {
		Name: "vector-store-target", ViperKey: "vector_store.target",
		Description: "Vector store location",
	},
	config.FlagEmbeddingProv: {
		Name: "embedding-provider", ViperKey: "embedding.provider",
		Description: "Embedding provider",
	},
	config.FlagEmbeddingTgt: {
		Name: "embedding-target", ViperKey: "embedding.target",
		Description: "Embedding provider URL",
	},
	config.FlagEmbeddingModel: {
		Name: "embedding-model", ViperKey: "embedding.model",
		Description: "Embedding model name",
	},
	config.FlagEmbeddingDims: {
		Name: "embedding-dimensions", ViperKey: "embedding.dimensions",
		Description: "Embedding vector dimensions",
	},
	config.FlagLLMProv: {
		Name: "llm-provider", ViperKey: "llm.provider",
		Description: "Completion provider",
	},
	config.FlagLLMTgt: {
		Name: "llm-target", ViperKey: "llm.target",
		Description: "Completion provider URL",
	},
	config.FlagLLMModel: {
		Name: "llm-model", ViperKey: "llm.model",
		Description: "Completion model name",
	},
	config.FlagEventsProv: {
		Name: "events-provider", ViperKey: "event_stream.provider",
		Description: "Cascade event stream backend (nop, kafka)",
	},
	config.FlagEventsBrokers: {
		Name: "events-brokers", ViperKey: "event_stream.brokers",
		Description: "Comma-separated Kafka broker addresses",
	},
	config.FlagEventsTopic: {
		Name: "events-topic", ViperKey: "event_stream.topic",
		Description: "Cascade event topic",
	},
}

// serveFlagKeys lists every registry key the serve command binds.
var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagLLMProv,
	config.FlagLLMTgt,
	config.FlagLLMModel,
	config.FlagEventsProv,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

type ServeCommander struct {
	configDir string
	debug     bool

	listen          string
	storageProvider string
	sqlitePath      string
	postgresDSN     string
	vectorProvider  string
	vectorTarget    string
	embeddingProv   string
	embeddingTgt    string
	embeddingModel  string
	embeddingDims   uint
	llmProvider     string
	llmTarget       string
	llmModel        string
	eventsProvider  string
	eventsBrokers   string
	eventsTopic     string

	cfg    *config.Config
	logger *zap.Logger
}

const serveLongDesc string = `Run the Psyche API server.

The server exposes the full pipeline: memory dispatch with fusion cascades,
pattern detection, snapshot capture, and query responses.`

const serveShortDesc string = "Run the Psyche API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	cmd.Flags().StringVar(&cmder.configDir, "config-dir", "", "Directory containing config.toml")
	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, serveFlags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, serveFlags, config.FlagLLMProv, &cmder.llmProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagLLMTgt, &cmder.llmTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagLLMModel, &cmder.llmModel)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsProv, &cmder.eventsProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsTopic, &cmder.eventsTopic)

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	store, err := c.newStorageDriver()
	if err != nil {
		return err
	}
	defer store.Close()

	vectors, err := c.newVectorDriver()
	if err != nil {
		return err
	}
	if vectors != nil {
		defer vectors.Close()
	}

	embedder, err := c.newEmbedder()
	if err != nil {
		return err
	}
	if embedder != nil {
		defer embedder.Close()
	}

	completer, err := c.newCompleter()
	if err != nil {
		return err
	}
	if completer != nil {
		defer completer.Close()
	}

	events, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer events.Close()

	fusionEngine := fusion.NewEngine(store, c.logger)
	patternEngine := pattern.NewEngine(store, c.logger)
	snapshotEngine := snapshot.NewEngine(store, events, c.logger)

	pool, err := dispatch.NewPool(&dispatch.PoolConfig{
		Patterns:   patternEngine,
		NumWorkers: c.cfg.Dispatch.Workers,
		QueueSize:  c.cfg.Dispatch.QueueSize,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating cascade pool: %w", err)
	}

	dispatcher := dispatch.NewDispatcher(&dispatch.Config{
		Store:    store,
		Embedder: embedder,
		Vectors:  vectors,
		Fusion:   fusionEngine,
		Pool:     pool,
		Events:   events,
		Logger:   c.logger,
	})

	orchestrator := respond.NewOrchestrator(&respond.Config{
		Store:     store,
		Vectors:   vectors,
		Embedder:  embedder,
		Completer: completer,
		Logger:    c.logger,
	})

	server := api.NewServer(api.Config{ListenAddr: c.cfg.API.Listen}, store, api.Engines{
		Dispatcher:   dispatcher,
		Patterns:     patternEngine,
		Snapshots:    snapshotEngine,
		Orchestrator: orchestrator,
	}, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		pool.Close()
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		if err := server.Shutdown(); err != nil {
			c.logger.Warn("API server shutdown", zap.Error(err))
		}
		// Drain in-flight cascades after the server stops accepting work.
		pool.Close()
		return nil
	}
}

func (c *ServeCommander) newStorageDriver() (storage.Driver, error) {
	switch c.cfg.Storage.Provider {
	case "sqlite":
		driver, err := sqlite.NewDriver(c.cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite store: %w", err)
		}
		c.logger.Info("using SQLite storage", zap.String("path", c.cfg.Storage.SQLitePath))
		return driver, nil

	case "postgres":
		driver, err := postgres.NewDriver(context.Background(), c.cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("creating postgres store: %w", err)
		}
		c.logger.Info("using Postgres storage")
		return driver, nil

	case "inmemory":
		c.logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", c.cfg.Storage.Provider)
	}
}

func (c *ServeCommander) newVectorDriver() (vector.Driver, error) {
	if c.cfg.VectorStore.Provider == "" {
		c.logger.Info("vector store disabled, similarity recall degrades to token overlap")
		return nil, nil
	}
	return vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: c.cfg.VectorStore.Provider,
		Target:       c.cfg.VectorStore.Target,
		Dimensions:   c.cfg.Embedding.Dimensions,
		Logger:       c.logger,
	})
}

func (c *ServeCommander) newEmbedder() (embeddings.Embedder, error) {
	if c.cfg.Embedding.Provider == "" {
		return nil, nil
	}
	return embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: c.cfg.Embedding.Provider,
		TargetURL:    c.cfg.Embedding.Target,
		Model:        c.cfg.Embedding.Model,
	})
}

func (c *ServeCommander) newCompleter() (llm.Completer, error) {
	if c.cfg.LLM.Provider == "" {
		c.logger.Info("completion provider disabled, responses degrade to context summaries")
		return nil, nil
	}
	return llmutils.NewCompleter(&llmutils.NewCompleterOpts{
		ProviderType: c.cfg.LLM.Provider,
		TargetURL:    c.cfg.LLM.Target,
		Model:        c.cfg.LLM.Model,
	})
}

func (c *ServeCommander) newPublisher() (eventstream.Publisher, error) {
	switch c.cfg.EventStream.Provider {
	case "", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: splitBrokers(c.cfg.EventStream.Brokers),
			Topic:   c.cfg.EventStream.Topic,
		}, c.logger)
	default:
		return nil, fmt.Errorf("unsupported event stream provider: %s", c.cfg.EventStream.Provider)
	}
}

// splitBrokers tolerates comma-joined broker lists from flags and env vars.
func splitBrokers(brokers []string) []string {
	var result []string
	for _, b := range brokers {
		for _, part := range strings.Split(b, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}

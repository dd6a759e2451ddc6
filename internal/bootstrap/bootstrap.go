package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/campus-notice-rag/internal/config"
	"github.com/kirillkom/campus-notice-rag/internal/core/ports"
	"github.com/kirillkom/campus-notice-rag/internal/core/usecase"
	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/extractor/html"
	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/llm/openai"
	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/repository/bolt"
	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/session/memory"
	sessionredis "github.com/kirillkom/campus-notice-rag/internal/infrastructure/session/redis"
	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/campus-notice-rag/internal/infrastructure/vector/qdrant"
)

const sessionSweepInterval = time.Minute

// Options selects the optional parts of the application graph.
type Options struct {
	Logger    *slog.Logger
	Observer  ports.RetrievalObserver
	RetryHook resilience.RetryHook
	// WithoutQueue skips the NATS connection for read-only callers.
	WithoutQueue bool
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue       ports.NoticeQueue
	Docs        ports.DocumentStore
	Retriever   ports.NoticeRetriever
	Chat        ports.ChatService
	Submitter   ports.NoticeSubmitter
	Indexer     ports.NoticeIndexer
	DeadLetters *usecase.DeadLetterUseCase

	// Executor guards every upstream call; its breaker states feed /healthz.
	Executor *resilience.Executor

	closers []func()
}

type languageBackend interface {
	ports.Embedder
	ports.LanguageModel
}

type ollamaBackend struct {
	*ollama.Embedder
	*ollama.ChatModel
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}
	if err := app.wire(ctx, opts); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) wire(ctx context.Context, opts Options) error {
	cfg := app.Config
	logger := app.Logger

	executor := resilience.NewExecutor(resilienceConfig(cfg)).WithLogger(logger)
	app.Executor = executor
	if opts.RetryHook != nil {
		executor.WithRetryHook(opts.RetryHook)
	}

	llm, err := newLanguageBackend(cfg, executor)
	if err != nil {
		return err
	}

	var (
		db     *sql.DB
		pgRepo *postgres.DocumentRepository
	)
	openPostgres := func() (*postgres.DocumentRepository, *sql.DB, error) {
		if pgRepo != nil {
			return pgRepo, db, nil
		}
		opened, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		app.closers = append(app.closers, func() { _ = opened.Close() })
		repo := postgres.NewDocumentRepository(opened)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		db, pgRepo = opened, repo
		return repo, db, nil
	}

	switch cfg.DocStoreBackend {
	case "postgres":
		repo, _, err := openPostgres()
		if err != nil {
			return err
		}
		app.Docs = repo
	case "bolt", "":
		store, err := bolt.Open(cfg.DocStorePath)
		if err != nil {
			return fmt.Errorf("open docstore: %w", err)
		}
		app.closers = append(app.closers, func() { _ = store.Close() })
		app.Docs = store
	default:
		return fmt.Errorf("unknown docstore backend %q", cfg.DocStoreBackend)
	}

	var sessions ports.SessionStore
	switch cfg.SessionBackend {
	case "memory", "":
		store := memory.New(cfg.SessionTTL, cfg.SessionMaxTurns)
		sweepCtx, cancel := context.WithCancel(context.Background())
		go store.RunSweeper(sweepCtx, sessionSweepInterval)
		app.closers = append(app.closers, cancel)
		sessions = store
	case "redis":
		client := sessionredis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		app.closers = append(app.closers, func() { _ = client.Close() })
		store := sessionredis.New(client, cfg.SessionTTL, cfg.SessionMaxTurns)
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		sessions = store
	case "postgres":
		_, conn, err := openPostgres()
		if err != nil {
			return err
		}
		sessions = postgres.NewSessionRepository(conn, cfg.SessionTTL, cfg.SessionMaxTurns)
	default:
		return fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, llm, executor)

	retriever := usecase.NewRetrievalUseCase(vectorDB, app.Docs, usecase.RetrievalOptions{
		Alpha:            cfg.RAGAlpha,
		DecayDays:        cfg.RAGDecayDays,
		OverFetchFactor:  cfg.RAGOverFetchFactor,
		ParentScanFactor: cfg.RAGParentScanFactor,
		DefaultK:         cfg.RAGAnswerK,
		IndexTimeout:     cfg.IndexTimeout,
		StoreTimeout:     cfg.StoreTimeout,
	}, opts.Observer, logger)
	composer := usecase.NewAnswerComposer(llm, cfg.ChatHistoryTurns).WithTimeout(cfg.LLMTimeout)

	app.Retriever = retriever
	app.Chat = usecase.NewChatUseCase(retriever, composer, sessions, cfg.RAGAnswerK, logger)
	app.Indexer = usecase.NewIndexNoticeUseCase(
		html.NewCleaner(),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		llm,
		vectorDB,
		app.Docs,
	)

	if opts.WithoutQueue {
		return nil
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("init message queue: %w", err)
	}
	app.closers = append(app.closers, queue.Close)
	app.Queue = queue
	app.Submitter = usecase.NewSubmitNoticeUseCase(queue)

	deadLetters, err := localfs.New(cfg.DeadLetterPath)
	if err != nil {
		return fmt.Errorf("init dead-letter store: %w", err)
	}
	app.DeadLetters = usecase.NewDeadLetterUseCase(deadLetters, queue, logger)

	return nil
}

func newLanguageBackend(cfg config.Config, executor *resilience.Executor) (languageBackend, error) {
	switch cfg.LLMProvider {
	case "ollama", "":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel).
			WithExecutor(executor).
			WithTemperature(cfg.LLMTemperature)
		return ollamaBackend{
			Embedder:  ollama.NewEmbedder(client),
			ChatModel: ollama.NewChatModel(client),
		}, nil
	case "openai":
		if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL is required for the openai provider")
		}
		return openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAIEmbedModel).
			WithExecutor(executor).
			WithTemperature(float32(cfg.LLMTemperature)), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

// Close releases resources in reverse order of acquisition.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.RetryMaxAttempts
	out.RetryInitialBackoff = cfg.RetryInitialBackoff
	out.RetryMaxBackoff = cfg.RetryMaxBackoff
	out.BreakerEnabled = cfg.BreakerEnabled
	out.BreakerFailureRatio = cfg.BreakerFailureRatio
	out.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	return out
}

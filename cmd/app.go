// Package cmd provides the CLI commands for the rena tool.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/renalabs/rena/client"
	"github.com/renalabs/rena/config"
	"github.com/renalabs/rena/credentials"
	"github.com/renalabs/rena/pkg/bot"
	"github.com/renalabs/rena/pkg/bot/capture"
	"github.com/renalabs/rena/pkg/db"
	"github.com/renalabs/rena/pkg/kb"
	"github.com/renalabs/rena/pkg/logging"
	"github.com/renalabs/rena/pkg/pipeline"
	"github.com/renalabs/rena/pkg/queues"
	"github.com/renalabs/rena/pkg/store"
	"github.com/renalabs/rena/pkg/synthesis"
)

// App wires shared runtime dependencies for the CLI commands. Everything is
// built lazily so commands that never touch the database do not need one.
type App struct {
	ConfigPath string
	UserID     string
	JSONOutput bool
	Debug      bool

	cfg    *config.Config
	logger logging.Logger
	pool   *pgxpool.Pool
	creds  *credentials.Store
	rdb    *redis.Client
}

// NewApp creates an empty application container.
func NewApp() *App {
	return &App{creds: credentials.NewStore()}
}

// Config loads and caches the configuration.
func (a *App) Config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

// Logger returns the application logger, building it on first use.
func (a *App) Logger() logging.Logger {
	if a.logger != nil {
		return a.logger
	}
	level := "info"
	jsonOut := false
	if a.cfg != nil {
		level = a.cfg.Logging.Level
		jsonOut = a.cfg.Logging.JSON
	}
	if a.Debug {
		level = "debug"
	}
	logger := logging.NewLogger(&logging.Config{
		Level:       logging.Level(level),
		ServiceName: "rena",
		JSONFormat:  jsonOut,
	})
	a.logger = logger
	logging.SetGlobal(logger)
	return logger
}

// DB returns a connected pool with migrations applied.
func (a *App) DB(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	pool, err := db.Connect(ctx, db.FromAppConfig(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	// Registration happens at most once per process because the pool is cached.
	_ = prometheus.DefaultRegisterer.Register(db.NewPoolStatsCollector(pool, "rena"))
	a.pool = pool
	return pool, nil
}

// Sessions returns the session repository.
func (a *App) Sessions(ctx context.Context) (*store.SessionRepository, error) {
	pool, err := a.DB(ctx)
	if err != nil {
		return nil, err
	}
	return store.NewSessionRepository(pool, a.Logger()), nil
}

// Reports returns the report repository.
func (a *App) Reports(ctx context.Context) (*store.ReportRepository, error) {
	pool, err := a.DB(ctx)
	if err != nil {
		return nil, err
	}
	return store.NewReportRepository(pool, a.Logger()), nil
}

// Redis returns the shared redis client.
func (a *App) Redis() (*redis.Client, error) {
	if a.rdb != nil {
		return a.rdb, nil
	}
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	a.rdb = redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	return a.rdb, nil
}

// Queue returns the redis-backed indexing queue.
func (a *App) Queue() (*queues.RedisQueue, error) {
	rdb, err := a.Redis()
	if err != nil {
		return nil, err
	}
	return queues.NewRedisQueue(rdb, a.Logger()), nil
}

// serviceClient builds the base HTTP client for a named service, attaching
// its API key when one is stored.
func (a *App) serviceClient(service string) (*client.Client, error) {
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	apiKey, err := a.creds.Get(service)
	if err != nil && !errors.Is(err, credentials.ErrNoCredentials) {
		return nil, err
	}
	return client.New(client.Config{
		Timeout: cfg.Services.CallTimeout,
		APIKey:  apiKey,
	}, a.Logger()), nil
}

// Orchestrator builds the transcription and synthesis orchestrator.
func (a *App) Orchestrator() (*synthesis.Orchestrator, error) {
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	tbase, err := a.serviceClient(credentials.ServiceTranscription)
	if err != nil {
		return nil, err
	}
	sbase, err := a.serviceClient(credentials.ServiceSynthesis)
	if err != nil {
		return nil, err
	}
	transcriber := client.NewTranscriptionClient(tbase, cfg.Services.TranscriptionURL)
	synthesizer := client.NewSynthesisClient(sbase, cfg.Services.SynthesisURL)
	return synthesis.New(transcriber, synthesizer, synthesis.Config{
		PrimaryModel:  cfg.Services.PrimaryModel,
		FallbackModel: cfg.Services.FallbackModel,
		CallTimeout:   cfg.Services.CallTimeout,
	}, a.Logger()), nil
}

// Pipeline builds the post-meeting processing pipeline.
func (a *App) Pipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	orch, err := a.Orchestrator()
	if err != nil {
		return nil, err
	}
	dbase, err := a.serviceClient("diarization")
	if err != nil {
		return nil, err
	}
	reports, err := a.Reports(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := a.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	queue, err := a.Queue()
	if err != nil {
		return nil, err
	}
	diarizer := client.NewDiarizationClient(dbase, cfg.Services.DiarizationURL)
	return pipeline.New(orch, diarizer, reports, queue,
		pipeline.WithLogger(a.Logger()),
		pipeline.WithSessionStore(sessions)), nil
}

// KB builds the knowledge-base service.
func (a *App) KB(ctx context.Context) (*kb.Service, error) {
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	pool, err := a.DB(ctx)
	if err != nil {
		return nil, err
	}
	ebase, err := a.serviceClient(credentials.ServiceEmbedding)
	if err != nil {
		return nil, err
	}
	sbase, err := a.serviceClient(credentials.ServiceSynthesis)
	if err != nil {
		return nil, err
	}
	embedder := client.NewEmbeddingClient(ebase, cfg.Services.EmbeddingURL)
	reasoner := client.NewSynthesisClient(sbase, cfg.Services.SynthesisURL)
	vectors := kb.NewPGStore(pool, a.Logger())
	return kb.NewService(embedder, vectors, reasoner, kb.Config{
		ChunkSize:           cfg.KB.ChunkSize,
		ChunkOverlap:        cfg.KB.ChunkOverlap,
		TopK:                cfg.KB.TopK,
		SimilarityThreshold: cfg.KB.SimilarityThreshold,
		AnswerModel:         cfg.Services.PrimaryModel,
	}, a.Logger()), nil
}

// RoomClient builds a driver-backed room client for one session.
func (a *App) RoomClient() (bot.RoomClient, error) {
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	base, err := a.serviceClient("room_driver")
	if err != nil {
		return nil, err
	}
	return client.NewRoomDriverClient(base, cfg.Services.RoomDriverURL, cfg.Bot.Name), nil
}

// CaptureManager builds the audio capture manager.
func (a *App) CaptureManager() (*capture.Manager, error) {
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	return capture.NewManager(capture.Config{
		SinkName:  cfg.Capture.SinkName,
		OutputDir: cfg.Capture.OutputDir,
	}, capture.NewFFmpegRecorder(a.Logger()), a.Logger()), nil
}

// Credentials returns the API key store.
func (a *App) Credentials() *credentials.Store { return a.creds }

// Close releases pooled resources.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

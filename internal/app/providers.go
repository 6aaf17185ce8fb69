package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"transcribot/internal/api/server"
	"transcribot/internal/api/v1/handlers"
	v1routes "transcribot/internal/api/v1/routes"
	"transcribot/internal/api/v1/services"
	"transcribot/internal/app/api"
	"transcribot/internal/app/api/openai"
	"transcribot/internal/app/api/openai/whisper"
	"transcribot/internal/app/audio"
	"transcribot/internal/app/logging"
	"transcribot/internal/app/metrics"
	"transcribot/internal/app/orchestrator"
	"transcribot/internal/app/quota"
	"transcribot/internal/app/repository"
	"transcribot/internal/app/repository/pg"
	"transcribot/internal/app/repository/redis"
	"transcribot/internal/app/repository/sqlite"
	"transcribot/internal/app/storage"
	"transcribot/internal/config"
)

// Application is the fully wired service.
type Application struct {
	Settings     *config.Settings
	Logger       *zap.Logger
	Ledger       *quota.Ledger
	Orchestrator *orchestrator.Orchestrator
	Server       *server.Server
}

func NewApplication(settings *config.Settings, logger *zap.Logger, ledger *quota.Ledger,
	orch *orchestrator.Orchestrator, srv *server.Server) *Application {
	return &Application{
		Settings:     settings,
		Logger:       logger,
		Ledger:       ledger,
		Orchestrator: orch,
		Server:       srv,
	}
}

// Serve runs the HTTP server until ctx is done, then waits for abandoned
// chunk calls to clean up.
func (a *Application) Serve(ctx context.Context) error {
	err := a.Server.Run(ctx)
	if drainErr := a.Drain(ctx); drainErr != nil {
		a.Logger.Warn("exiting with transcription calls still running", zap.Error(drainErr))
	}
	return err
}

// Drain waits, at most the OpenAI HTTP timeout, for every chunk call to
// return and remove its chunk file. The wait ignores cancellation of ctx.
func (a *Application) Drain(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Settings.HTTPTimeout())
	defer cancel()
	return a.Orchestrator.Drain(ctx)
}

func provideLogger(settings *config.Settings) (*zap.Logger, func(), error) {
	logger, err := logging.NewLogger(settings.Development(), settings.App.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func provideRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func provideRecorder(registry *prometheus.Registry) *metrics.Recorder {
	return metrics.NewRecorder(registry)
}

// provideQuotaStore opens the backend named by QUOTA_STORE.
func provideQuotaStore(ctx context.Context, settings *config.Settings, logger *zap.Logger) (repository.QuotaDAO, func(), error) {
	var (
		store repository.QuotaDAO
		err   error
	)
	switch settings.Quota.Store {
	case config.StoreSQLite:
		store, err = sqlite.NewQuotaStore(ctx, settings.Quota.SQLitePath)
	case config.StorePostgres:
		store, err = pg.NewQuotaStore(ctx, settings.Quota.DatabaseURL)
	case config.StoreRedis:
		store, err = redis.NewQuotaStore(ctx, redis.Options{
			Addr:     settings.Quota.Redis.Addr,
			Password: settings.Quota.Redis.Password,
			DB:       settings.Quota.Redis.DB,
		})
	default:
		err = fmt.Errorf("unknown quota store %q", settings.Quota.Store)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s quota store: %w", settings.Quota.Store, err)
	}

	logger.Info("quota store ready", zap.String("store", settings.Quota.Store))
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close quota store", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

func provideLedger(store repository.QuotaDAO, settings *config.Settings, logger *zap.Logger) *quota.Ledger {
	return quota.NewLedger(store, decimal.NewFromInt(settings.Quota.DefaultSeconds), logger)
}

func provideOpenAIClient(settings *config.Settings) *goopenai.Client {
	return openai.NewClient(openai.ClientConfig{
		APIKey:       settings.OpenAI.APIKey,
		Organization: settings.OpenAI.Organization,
		BaseURL:      settings.OpenAI.BaseURL,
		HTTPTimeout:  settings.HTTPTimeout(),
	})
}

func provideTranscriber(client *goopenai.Client, settings *config.Settings) api.Transcriber {
	return whisper.NewRemoteTranscriber(client, settings.OpenAI.Model)
}

func provideMediaTools(settings *config.Settings) *audio.FFmpeg {
	return audio.NewFFmpeg(settings.Media.FFmpegBinary, settings.Media.FFprobeBinary, settings.Media.AudioDir)
}

// provideArchiver returns nil when no archive endpoint is configured.
func provideArchiver(ctx context.Context, settings *config.Settings) (orchestrator.Archiver, error) {
	if !settings.ArchiveEnabled() {
		return nil, nil
	}
	archive, err := storage.NewMinioArchive(ctx, storage.Config{
		Endpoint:  settings.Archive.Endpoint,
		AccessKey: settings.Archive.AccessKey,
		SecretKey: settings.Archive.SecretKey,
		Bucket:    settings.Archive.Bucket,
		UseSSL:    settings.Archive.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("open transcript archive: %w", err)
	}
	return archive, nil
}

func provideOrchestrator(media *audio.FFmpeg, transcriber api.Transcriber, ledger *quota.Ledger,
	logger *zap.Logger, settings *config.Settings, recorder *metrics.Recorder, archiver orchestrator.Archiver) *orchestrator.Orchestrator {
	opts := []orchestrator.Option{orchestrator.WithMetrics(recorder)}
	if archiver != nil {
		opts = append(opts, orchestrator.WithArchive(archiver))
	}
	return orchestrator.New(media, media, transcriber, ledger, logger, orchestrator.Config{
		ChunkDuration: orchestrator.MaxChunkDuration,
		Timeout:       settings.ChunkTimeout(),
		Language:      settings.Transcription.Language,
	}, opts...)
}

func provideHandlers(orch *orchestrator.Orchestrator, ledger *quota.Ledger, settings *config.Settings, logger *zap.Logger) *v1routes.HandlerContainer {
	return &v1routes.HandlerContainer{
		Transcriptions: handlers.NewTranscriptionHandler(
			services.NewTranscriptionService(orch, settings.HTTP.PaymentPageURL),
			handlers.UploadConfig{Dir: settings.Media.AudioDir, MaxFileSizeMB: settings.Media.MaxFileSizeMB},
			logger,
		),
		Quota:      handlers.NewQuotaHandler(services.NewQuotaService(ledger)),
		AdminToken: settings.HTTP.AdminToken,
	}
}

func provideServer(settings *config.Settings, container *v1routes.HandlerContainer,
	registry *prometheus.Registry, logger *zap.Logger) *server.Server {
	// No write timeout: a response waits for the whole job.
	return server.NewServer(server.Config{
		Addr:        settings.Addr(),
		ReadTimeout: 5 * time.Minute,
		IdleTimeout: 2 * time.Minute,
		Environment: settings.App.Env,
	}, container, registry, logger)
}

package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"CrewPublisher/internal/config"
	"CrewPublisher/internal/crew"
	"CrewPublisher/internal/httpapi"
	"CrewPublisher/internal/index"
	"CrewPublisher/internal/infrastructure/git"
	"CrewPublisher/internal/infrastructure/llm"
	"CrewPublisher/internal/infrastructure/research"
	"CrewPublisher/internal/infrastructure/storage"
	"CrewPublisher/internal/infrastructure/telegram"
	"CrewPublisher/internal/logging"
	"CrewPublisher/internal/ports"
	"CrewPublisher/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	publisher *usecase.Publisher
	runner    *usecase.AgentRunner
}

// NewPublishing builds only the publication side: index, git, log and notifier.
func NewPublishing(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	vcs, err := git.NewClient(cfg.Publication)
	if err != nil {
		return nil, err
	}

	var repository ports.PublicationRepository
	if cfg.Database.DSN != "" {
		repository = a.openPublicationLog(ctx)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	store := index.NewStore(index.Options{
		Dir:           cfg.Publication.MetadataDir,
		Collection:    cfg.Publication.Collection,
		ContentPrefix: cfg.Publication.ContentPrefix,
	})

	a.publisher, err = usecase.NewPublisher(usecase.PublisherDeps{
		ReportPath:            cfg.Crew.ReportPath,
		RepoPath:              cfg.Publication.RepoPath,
		CommitMessageTemplate: cfg.Publication.CommitMessageTemplate,
		StageIndex:            cfg.Publication.StageIndex,
		Index:                 store,
		VCS:                   vcs,
		Repository:            repository,
		Notifier:              notifier,
		Logger:                baseLogger.With("component", "publisher"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// New builds the full application: crew, publication pipeline and HTTP API.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	a, err := NewPublishing(ctx, cfg, baseLogger)
	if err != nil {
		return nil, err
	}

	registry := crew.NewRegistry()
	if cfg.Research.SearchURL != "" {
		registry.Register(research.NewWebSearch(cfg.Research, nil, a.logger.With("component", "research")))
	}

	var chatClient ports.ChatClient
	if cfg.ChatGPT.APIKey != "" {
		chatClient = llm.NewChatGPTClient(cfg.ChatGPT, nil)
	} else {
		a.logger.Warn("chatgpt api key missing; crew runs will fail")
	}

	c, err := crew.Load(cfg.Crew.AgentsPath, cfg.Crew.TasksPath, crew.Deps{
		Chat:   chatClient,
		Tools:  registry,
		Logger: a.logger.With("component", "crew"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load crew: %w", err)
	}
	if err := c.SetOutputFile(cfg.Crew.ReportTask, cfg.Crew.ReportPath); err != nil {
		a.Close()
		return nil, err
	}
	if err := c.OnTaskComplete(cfg.Crew.PublishTask, a.publishCallback); err != nil {
		a.Close()
		return nil, err
	}

	a.runner = usecase.NewAgentRunner(c, a.logger.With("component", "runner"), nil)
	return a, nil
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if a.runner == nil {
		return errors.New("app: crew is not configured")
	}

	server := httpapi.NewServer(httpapi.Settings{
		Name:              a.cfg.Server.Name,
		Addr:              a.cfg.Server.Addr,
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
	}, a.runner, a.logger.With("component", "http"))

	if err := server.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	<-ctx.Done()

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Publish runs the publication pipeline once on the existing report.
func (a *Application) Publish(ctx context.Context) (usecase.PublishResult, error) {
	return a.publisher.Publish(ctx, usecase.RunIDFrom(ctx))
}

// Close releases the database handle, if any.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *Application) publishCallback(ctx context.Context, _ crew.TaskOutput) error {
	_, err := a.publisher.Publish(ctx, usecase.RunIDFrom(ctx))
	return err
}

// openPublicationLog connects to Postgres; failures disable the log instead of aborting.
func (a *Application) openPublicationLog(ctx context.Context) ports.PublicationRepository {
	logger := a.logger.With("component", "storage")

	db, err := sql.Open("postgres", a.cfg.Database.DSN)
	if err != nil {
		logger.Warn("publication log disabled", "error", err)
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		logger.Warn("publication log disabled", "error", err)
		return nil
	}

	repo := storage.NewPostgresRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		logger.Warn("publication log disabled", "error", err)
		return nil
	}

	a.db = db
	return repo
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"randechat/internal/catalog"
	"randechat/internal/chat"
	"randechat/internal/config"
	"randechat/internal/intent"
	"randechat/internal/llm"
	"randechat/internal/logging"
	"randechat/internal/model"
	"randechat/internal/repository"
	"randechat/internal/service"
	"randechat/internal/tools"
)

// placesStore is what both repository backends provide
type placesStore interface {
	service.Store
	service.SearchLogger
	InsertPlaces(ctx context.Context, places []model.Place) (int, error)
	Migrate(ctx context.Context) error
	io.Closer
}

// app holds the wired components shared by every subcommand
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    placesStore
	catalog  *catalog.Catalog
	search   *service.SearchService
	registry *tools.Registry
	model    llm.Model
	chat     *chat.Manager
}

// newApp loads configuration and opens the store. withChat also builds the
// language model; a backend without credentials leaves chat nil.
func newApp(ctx context.Context, withChat bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	a.catalog = catalog.Default()
	if cfg.Catalog.Path != "" {
		if a.catalog, err = catalog.Load(cfg.Catalog.Path); err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("catalog loaded", zap.String("path", cfg.Catalog.Path), zap.Int("count", a.catalog.Len()))
	}

	opts := []service.SearchOption{
		service.WithStoreTimeout(cfg.Store.Timeout),
		service.WithLogger(logger.Named("search")),
	}
	if cfg.Store.LogSearches {
		opts = append(opts, service.WithSearchLog(a.store))
	}
	a.search = service.NewSearchService(a.store, intent.NewCompiler(a.catalog), opts...)
	a.registry = tools.NewRegistry(a.search)

	if withChat {
		if err := a.openChat(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	var err error
	switch a.cfg.Store.Driver {
	case config.DriverPostgres:
		a.store, err = repository.NewPostgresRepository(
			a.cfg.GetPostgreSQLDSN(),
			a.cfg.PostgreSQL.MaxConnections,
			a.cfg.PostgreSQL.MaxIdleConnections,
		)
	default:
		a.store, err = repository.NewSQLiteRepository(a.cfg.SQLite.Path)
	}
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", a.cfg.Store.Driver, err)
	}

	if a.cfg.Store.Migrate {
		if err := a.store.Migrate(ctx); err != nil {
			a.store.Close()
			return err
		}
	}
	a.logger.Info("store ready", zap.String("driver", a.cfg.Store.Driver))
	return nil
}

func (a *app) openChat(ctx context.Context) error {
	m, err := llm.New(ctx, a.cfg, a.logger.Named("llm"))
	if errors.Is(err, llm.ErrDisabled) {
		a.logger.Warn("chat is disabled, set an API key for the selected LLM provider",
			zap.String("provider", a.cfg.LLM.Provider))
		return nil
	}
	if err != nil {
		return err
	}

	prompt, err := llm.LoadSystemPrompt(a.cfg.Chat.SystemPromptFile)
	if err != nil {
		return err
	}

	a.model = m
	a.chat = chat.NewManager(m, a.registry,
		chat.WithSystemPrompt(prompt),
		chat.WithLeakDetector(chat.NewPatternDetector(a.cfg.Chat.LeakPatterns...)),
		chat.WithLoopConfig(chat.LoopConfig{
			MaxRounds:   a.cfg.Chat.MaxToolRounds,
			Concurrency: a.cfg.Chat.ToolConcurrency,
			LLMTimeout:  a.cfg.LLM.Timeout,
		}),
		chat.WithLogger(a.logger.Named("chat")),
	)
	a.logger.Info("chat enabled",
		zap.String("provider", a.cfg.LLM.Provider),
		zap.String("model", m.Name()))
	return nil
}

func (a *app) modelName() string {
	if a.model == nil {
		return ""
	}
	return a.model.Name()
}

// Close waits for pending search logs and releases the store
func (a *app) Close() {
	if a.search != nil {
		a.search.Wait()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

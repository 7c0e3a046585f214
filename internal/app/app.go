package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chatrelay/internal/ai"
	"github.com/suPer8Hu/chatrelay/internal/chat"
	"github.com/suPer8Hu/chatrelay/internal/config"
	"github.com/suPer8Hu/chatrelay/internal/db"
	"github.com/suPer8Hu/chatrelay/internal/httpapi"
	"github.com/suPer8Hu/chatrelay/internal/httpapi/handlers"
	"github.com/suPer8Hu/chatrelay/internal/session"
	"github.com/suPer8Hu/chatrelay/internal/store/rabbitmq"
	"github.com/suPer8Hu/chatrelay/internal/store/redisstore"
	"go.uber.org/zap"
)

// App is the wired server: store, providers, pointer store, event sink and router.
type App struct {
	Cfg      config.Config
	Log      *zap.Logger
	Store    chat.Store
	Registry *ai.Registry
	Pointers session.PointerStore
	Events   chat.EventPublisher
	Router   *gin.Engine

	closers []func() error
}

// OpenStore opens the configured chat store, migrating the sql schema. The
// returned func releases it.
func OpenStore(ctx context.Context, cfg config.Config, log *zap.Logger) (chat.Store, func() error, error) {
	switch cfg.StoreBackend {
	case "file":
		s, err := chat.NewFileStore(cfg.ChatDataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	default:
		gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN, log)
		if err != nil {
			return nil, nil, err
		}
		if err := chat.Migrate(ctx, gdb); err != nil {
			_ = db.Close(gdb)
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return chat.NewRepo(gdb), func() error { return db.Close(gdb) }, nil
	}
}

// NewRegistry registers every provider the config can reach. Gemini needs an
// API key and is skipped without one.
func NewRegistry(ctx context.Context, cfg config.Config) (*ai.Registry, error) {
	reg := ai.NewRegistry()

	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})

	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	if cfg.GeminiAPIKey != "" {
		client, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		reg.Register("gemini", func(ctx context.Context, model string) (ai.Provider, error) {
			m := strings.TrimSpace(model)
			if m == "" {
				m = cfg.GeminiModel
			}
			return ai.NewGeminiProvider(client, m), nil
		})
	}

	if !reg.Has(cfg.AIProvider) {
		return nil, fmt.Errorf("unsupported AI_PROVIDER=%q", cfg.AIProvider)
	}
	return reg, nil
}

func newPointers(ctx context.Context, cfg config.Config) (session.PointerStore, func() error, error) {
	if cfg.SessionBackend != "redis" {
		return session.NewMemoryStore(), func() error { return nil }, nil
	}
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
	if err := rds.Ping(ctx); err != nil {
		_ = rds.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return rds, rds.Close, nil
}

func newEvents(cfg config.Config, log *zap.Logger) (chat.EventPublisher, func() error) {
	if cfg.RabbitURL == "" {
		return chat.NopPublisher{}, func() error { return nil }
	}
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		// events are best-effort; the chat keeps working without a broker
		log.Warn("chat events disabled", zap.Error(err))
		return chat.NopPublisher{}, func() error { return nil }
	}
	return pub, pub.Close
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Cfg: cfg, Log: log}

	store, closeStore, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, closeStore)

	a.Registry, err = NewRegistry(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	pointers, closePointers, err := newPointers(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Pointers = pointers
	a.closers = append(a.closers, closePointers)

	events, closeEvents := newEvents(cfg, log)
	a.Events = events
	a.closers = append(a.closers, closeEvents)

	svc := chat.NewService(store, a.Registry,
		chat.WithEvents(events),
		chat.WithLogger(log.Named("relay")),
		chat.WithContextWindow(cfg.ChatContextWindowSize),
	)
	dispatcher := chat.NewDispatcher(store, events, log.Named("commands"))
	h := handlers.NewHandler(cfg, svc, dispatcher, a.Registry, pointers, log.Named("http"))
	a.Router = httpapi.NewRouter(cfg, h, log.Named("http"))

	log.Info("app ready",
		zap.String("store", cfg.StoreBackend),
		zap.String("session_backend", cfg.SessionBackend),
		zap.Strings("providers", a.Registry.Names()),
		zap.Bool("events", cfg.RabbitURL != ""))
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

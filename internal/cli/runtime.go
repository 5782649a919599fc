// Package cli assembles the director from configuration for the command
// line binaries.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/aretw0/director"
	"github.com/aretw0/director/internal/config"
	"github.com/aretw0/director/internal/governor"
	"github.com/aretw0/director/internal/logging"
	"github.com/aretw0/director/internal/metrics"
	"github.com/aretw0/director/pkg/adapters/gemini"
	"github.com/aretw0/director/pkg/adapters/memory"
	redisadapter "github.com/aretw0/director/pkg/adapters/redis"
	"github.com/aretw0/director/pkg/adapters/wikipedia"
	"github.com/aretw0/director/pkg/domain"
	"github.com/aretw0/director/pkg/persistence/middleware"
	"github.com/aretw0/director/pkg/ports"
	"github.com/aretw0/director/pkg/session"
)

// NewLogger builds the process logger described by cfg. JSON logs go to w,
// text logs to stderr.
func NewLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return logging.NewJSON(w, level), nil
	}
	return logging.New(level), nil
}

// Runtime holds the collaborators shared by every session of a process.
type Runtime struct {
	Config   config.Config
	Logger   *slog.Logger
	Sessions *session.Manager
	Governor *governor.Governor
	Registry *prometheus.Registry
	Metrics  *metrics.Collector

	source    ports.EvidenceSource
	completer ports.Completer
	redis     *goredis.Client
}

// NewRuntime connects the configured collaborators. Redis is pinged so that
// a bad address fails at startup.
func NewRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Governor: governor.New(cfg.Budget.PerMinute, cfg.Budget.PerDay),
		Registry: prometheus.NewRegistry(),
	}

	var err error
	if rt.Metrics, err = metrics.NewCollector(rt.Registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	if err := rt.Metrics.WatchBudget(rt.Governor); err != nil {
		return nil, fmt.Errorf("failed to register budget metrics: %w", err)
	}

	if !cfg.Evidence.Disabled {
		opts := []wikipedia.Option{
			wikipedia.WithLanguage(cfg.Evidence.Language),
			wikipedia.WithLogger(logger),
		}
		if cfg.Evidence.BaseURL != "" {
			opts = append(opts, wikipedia.WithBaseURL(cfg.Evidence.BaseURL))
		}
		rt.source = wikipedia.New(opts...)
	}

	if cfg.LLM.Enabled() {
		c, err := gemini.New(ctx, gemini.Config{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create completer: %w", err)
		}
		rt.completer = c
	}

	var store ports.StateStore = memory.NewStore()
	sessionOpts := []session.Option{
		session.WithFactory(rt.NewEngine),
		session.WithLogger(logger),
	}
	if cfg.Redis.Enabled() {
		rt.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			_ = rt.redis.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		store = redisadapter.NewFromClient(rt.redis,
			redisadapter.WithPrefix(cfg.Redis.Prefix),
			redisadapter.WithTTL(cfg.Redis.TTL),
		)
		sessionOpts = append(sessionOpts, session.WithLocker(redisadapter.NewLocker(rt.redis, cfg.Redis.Prefix)))
	}

	if cfg.Encryption.Enabled() {
		enc, err := cfg.Encryption.Config()
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		mw, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		store = middleware.Chain(store, mw)
	}

	if rt.Sessions, err = session.NewManager(store, sessionOpts...); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	logger.Info("runtime ready",
		"evidence", rt.source != nil,
		"llm", rt.completer != nil,
		"redis", rt.redis != nil,
		"encrypted", cfg.Encryption.Enabled(),
		"budget_per_minute", cfg.Budget.PerMinute,
		"budget_per_day", cfg.Budget.PerDay,
	)
	return rt, nil
}

// EngineOptions are the options every engine of the process shares.
func (r *Runtime) EngineOptions(sessionID string) []director.Option {
	opts := []director.Option{
		director.WithSessionID(sessionID),
		director.WithLogger(r.Logger),
		director.WithThresholds(r.Config.Thresholds),
		director.WithGovernor(r.Governor),
		director.WithLifecycleHooks(r.Metrics.Hooks()),
	}
	if r.source != nil {
		opts = append(opts, director.WithEvidenceSource(r.source))
	}
	if r.completer != nil {
		opts = append(opts, director.WithCompleter(r.completer))
	}
	if r.Config.Extraction != "" {
		opts = append(opts, director.WithExtractionMode(r.Config.Extraction))
	}
	if r.redis != nil && r.Config.Redis.SharedCache {
		opts = append(opts, director.WithVerdictCache(redisadapter.NewVerdictCache(
			r.redis, r.Config.Redis.Prefix, sessionID,
			redisadapter.WithCacheTTL(r.Config.Redis.TTL),
		)))
	}
	return opts
}

// NewEngine builds the engine of a session. It is the session.Factory of
// the runtime.
func (r *Runtime) NewEngine(_ context.Context, sessionID string, state *domain.ConversationState) (*director.Engine, error) {
	return director.New(append(r.EngineOptions(sessionID), director.WithState(state))...)
}

// MetricsHandler serves the runtime registry.
func (r *Runtime) MetricsHandler() http.Handler {
	return metrics.Handler(r.Registry)
}

// Close releases network clients.
func (r *Runtime) Close() error {
	var errs []error
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

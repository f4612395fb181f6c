// Package tutorbuilder wires the tutor engine, storage and service from
// application config.
package tutorbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-tutor/internal/advisor"
	corechess "github.com/park285/cheese-chess-tutor/internal/chess"
	"github.com/park285/cheese-chess-tutor/internal/config"
	"github.com/park285/cheese-chess-tutor/internal/msgcat"
	svc "github.com/park285/cheese-chess-tutor/internal/service/tutor"
)

const connectTimeout = 5 * time.Second

type Deps struct {
	Service  *svc.Service
	Engine   *corechess.Engine
	Store    *svc.Store
	Repo     svc.Repository
	Messages *msgcat.Catalog

	closers []func() error
}

// New builds the tutor stack. Without REDIS_URL sessions live in an
// in-process Redis; without DATABASE_URL finished games stay in memory.
func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := &Deps{}
	ok := false
	defer func() {
		if !ok {
			_ = deps.Close()
		}
	}()

	messages, err := msgcat.New(cfg.MsgcatDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	deps.Messages = messages

	deps.Engine = corechess.NewEngine(
		corechess.WithLogger(logger.Named("engine")),
		corechess.WithSearchOptions(corechess.SearchOptions{StaticTerminals: cfg.TutorStaticTerminals}),
		corechess.WithClassifyOptions(corechess.ClassifyOptions{
			Geometric: cfg.TutorGeometricTactics,
			Messages:  messages,
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := deps.openStore(ctx, cfg.RedisURL, logger); err != nil {
		return nil, err
	}
	if err := deps.openRepository(ctx, cfg.DatabaseURL, logger); err != nil {
		return nil, err
	}

	service, err := svc.NewService(deps.Engine, deps.Store, deps.Repo, svc.NewSVGBoardRenderer(), ServiceConfig(cfg), logger.Named("tutor"))
	if err != nil {
		return nil, err
	}
	deps.Service = service
	ok = true
	return deps, nil
}

// ServiceConfig maps application settings onto the service config.
func ServiceConfig(cfg *config.AppConfig) svc.Config {
	return svc.Config{
		DefaultDifficulty: cfg.TutorDefaultDifficulty,
		SessionTTL:        cfg.TutorSessionTTL,
		HistoryLimit:      cfg.TutorHistoryLimit,
		AllowedRooms:      append([]string(nil), cfg.AllowedRooms...),
		AnalysisDepth:     cfg.TutorAnalysisDepth,
		EngineTimeout:     cfg.TutorEngineTimeout,
	}
}

// EnableAutoAdvice debounces auto-analysis and hands results to notify.
func (d *Deps) EnableAutoAdvice(cfg *config.AppConfig, logger *zap.Logger, notify svc.AdviceNotifier) {
	if logger == nil {
		logger = zap.NewNop()
	}
	debouncer := advisor.New[*svc.Advice](
		advisor.WithDelay(cfg.TutorAdviceDebounce),
		advisor.WithTimeout(cfg.TutorEngineTimeout),
		advisor.WithLogger(logger.Named("advisor")),
	)
	d.Service.EnableAutoAdvice(debouncer, notify)
}

func (d *Deps) openStore(ctx context.Context, redisURL string, logger *zap.Logger) error {
	if strings.TrimSpace(redisURL) != "" {
		store, err := svc.NewStoreFromURL(ctx, redisURL)
		if err != nil {
			return fmt.Errorf("init session store: %w", err)
		}
		d.Store = store
		d.closers = append(d.closers, store.Close)
		return nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return fmt.Errorf("start embedded redis: %w", err)
	}
	d.closers = append(d.closers, func() error { mr.Close(); return nil })
	d.Store = svc.NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	d.closers = append(d.closers, d.Store.Close)
	logger.Warn("redis_url_missing_using_embedded", zap.String("addr", mr.Addr()))
	return nil
}

func (d *Deps) openRepository(ctx context.Context, databaseURL string, logger *zap.Logger) error {
	if strings.TrimSpace(databaseURL) == "" {
		d.Repo = svc.NewMemoryRepository()
		logger.Warn("database_url_missing_using_memory")
		return nil
	}
	repo, closeDB, err := svc.OpenRepository(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	d.Repo = repo
	d.closers = append(d.closers, closeDB)
	return nil
}

// Close stops the service and releases connections in reverse order.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	if d.Service != nil {
		d.Service.Close()
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/cheese-chess-tutor/internal/adapter/tutorpresenter"
	appcfg "github.com/park285/cheese-chess-tutor/internal/config"
	"github.com/park285/cheese-chess-tutor/internal/irisfast"
	"github.com/park285/cheese-chess-tutor/internal/obslog"
	"github.com/park285/cheese-chess-tutor/internal/tutorbuilder"
)

const (
	wsReconnectAttempts = 5
	wsReconnectDelay    = time.Second
	connectTimeout      = 10 * time.Second
	shutdownTimeout     = 5 * time.Second
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
	}
	logger := obslog.L()
	defer func() { _ = obslog.Close() }()

	if err := run(logger); err != nil {
		logger.Error("tutor_bot_exit", zap.Error(err))
		_ = obslog.Close()
		os.Exit(1)
	}
}

func run(logger *zap.Logger) error {
	cfg, err := appcfg.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	headers := irisfast.IdentityHeaders(cfg.XUserID, cfg.XUserEmail, cfg.XSessionID)
	client := irisfast.NewClient(cfg.IrisBaseURL,
		irisfast.WithHeaderProvider(headers),
		irisfast.WithLogger(obslog.Named("iris")),
	)
	ws := irisfast.NewWebSocket(cfg.IrisWSURL, wsReconnectAttempts, wsReconnectDelay)
	ws.SetHeaderProvider(headers)
	ws.SetLogger(obslog.Named("ws"))
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("ws_state", zap.String("state", state.String()))
	})
	egress := irisfast.NewEgress(cfg.EgressMode, false, client, ws, obslog.Named("egress"))

	deps, err := tutorbuilder.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("tutor init: %w", err)
	}
	defer func() {
		if cerr := deps.Close(); cerr != nil {
			logger.Warn("tutor_close_failed", zap.Error(cerr))
		}
	}()

	formatter := tutorpresenter.NewFormatter(prefixProvider{prefix: cfg.BotPrefix}, deps.Messages)
	h := newHandler(cfg.BotPrefix, deps.Service, egress, formatter, obslog.Named("handler"))
	deps.EnableAutoAdvice(cfg, logger, h.notifyAdvice)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	msgs := make(chan *irisfast.Message, 64)
	listenerID := ws.OnMessage(func(msg *irisfast.Message) {
		if msg == nil || !h.accepts(msg.Msg) {
			return
		}
		select {
		case msgs <- msg:
		default:
			logger.Warn("command_dropped_queue_full", zap.String("room", msg.Room))
		}
	})

	g.Go(func() error {
		defer ws.RemoveMessageCallback(listenerID)
		return serve(gctx, ws, func() {
			logger.Info("tutor_bot_ready", zap.String("prefix", cfg.BotPrefix), zap.String("egress", cfg.EgressMode))
		})
	})

	g.Go(func() error {
		// At most eight commands run at once.
		var workers errgroup.Group
		workers.SetLimit(8)
		defer func() { _ = workers.Wait() }()
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg := <-msgs:
				workers.Go(func() error {
					h.handle(gctx, msg)
					return nil
				})
			}
		}
	})

	if probeCfg, err := client.GetConfig(gctx); err != nil {
		logger.Warn("iris_config_unavailable", zap.Error(err))
	} else {
		logger.Info("iris_config", zap.Int("port", probeCfg.Port), zap.String("endpoint", probeCfg.WebserverEndpoint))
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("tutor_bot_stopped")
	return nil
}

// serve keeps the listener connected until ctx ends.
func serve(ctx context.Context, ws irisfast.WSClient, ready func()) error {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	err := ws.Connect(cctx)
	cancel()
	if err != nil {
		return fmt.Errorf("ws connect: %w", err)
	}
	ready()
	<-ctx.Done()
	sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer scancel()
	return ws.Close(sctx)
}

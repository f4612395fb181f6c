// Command irischeck verifies the Iris bridge the tutor bot depends on: it
// reads /config, opens the WebSocket, logs incoming messages and can send a
// test reply through the configured egress.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-tutor/internal/irisfast"
	"github.com/park285/cheese-chess-tutor/internal/obslog"
)

func main() {
	watch := flag.Duration("watch", 10*time.Second, "how long to observe WebSocket traffic")
	room := flag.String("room", "", "send a test reply to this room")
	mode := flag.String("egress", envOr("EGRESS_MODE", irisfast.EgressHTTP), "egress for the test reply: http, ws or auto")
	dryrun := flag.Bool("dryrun", false, "log WebSocket replies instead of sending them")
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
	}
	logger := obslog.Named("irischeck")
	defer func() { _ = obslog.Close() }()

	baseURL := strings.TrimSpace(os.Getenv("IRIS_BASE_URL"))
	wsURL := strings.TrimSpace(os.Getenv("IRIS_WS_URL"))
	prefix := strings.TrimSpace(os.Getenv("BOT_PREFIX"))
	if baseURL == "" {
		logger.Fatal("IRIS_BASE_URL is required")
	}

	headers := irisfast.IdentityHeaders(os.Getenv("X_USER_ID"), os.Getenv("X_USER_EMAIL"), os.Getenv("X_SESSION_ID"))
	client := irisfast.NewClient(baseURL,
		irisfast.WithHeaderProvider(headers),
		irisfast.WithTimeout(8*time.Second),
		irisfast.WithLogger(logger),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	cfg, err := client.GetConfig(ctx)
	cancel()
	if err != nil {
		logger.Error("config_failed", zap.Error(err))
	} else {
		logger.Info("config_ok",
			zap.Int("port", cfg.Port),
			zap.Int("polling_speed", cfg.PollingSpeed),
			zap.Int("message_rate", cfg.MessageRate),
			zap.String("endpoint", cfg.WebserverEndpoint),
		)
	}

	if wsURL == "" {
		logger.Warn("ws_check_skipped", zap.String("reason", "IRIS_WS_URL not set"))
		sendProbe(client, nil, *mode, *dryrun, *room, logger)
		return
	}

	ws := irisfast.NewWebSocket(wsURL, 5, time.Second)
	ws.SetHeaderProvider(headers)
	ws.SetLogger(logger.Named("ws"))
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("ws_state", zap.String("state", state.String()))
	})
	ws.OnMessage(func(msg *irisfast.Message) {
		logger.Info("ws_message",
			zap.String("room", msg.Room),
			zap.String("from", msg.SenderName()),
			zap.String("user_id", msg.UserID()),
			zap.String("text", msg.Msg),
			zap.Bool("tutor_command", prefix != "" && strings.HasPrefix(strings.TrimSpace(msg.Msg), prefix)),
		)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = ws.Connect(cctx)
	ccancel()
	if err != nil {
		logger.Error("ws_connect_failed", zap.Error(err))
		return
	}

	sendProbe(client, ws, *mode, *dryrun, *room, logger)

	timer := time.NewTimer(*watch)
	<-timer.C

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	if err := ws.Close(sctx); err != nil {
		logger.Warn("ws_close_failed", zap.Error(err))
	}
}

func sendProbe(client *irisfast.Client, ws *irisfast.WebSocket, mode string, dryrun bool, room string, logger *zap.Logger) {
	if room == "" {
		return
	}
	egress := irisfast.NewEgress(mode, dryrun, client, ws, logger.Named("egress"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	text := "♞ irischeck " + time.Now().Format(time.RFC3339)
	if err := egress.SendText(ctx, room, text); err != nil {
		logger.Error("probe_failed", zap.String("room", room), zap.String("egress", mode), zap.Error(err))
		return
	}
	logger.Info("probe_sent", zap.String("room", room), zap.String("egress", mode))
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

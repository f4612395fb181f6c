package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EgressHTTP = "http"
	EgressWS   = "ws"
	EgressAuto = "auto"
)

type AppConfig struct {
	IrisBaseURL string
	IrisWSURL   string

	BotPrefix string

	XUserID    string
	XUserEmail string
	XSessionID string

	RedisURL    string
	DatabaseURL string

	AllowedRooms []string
	EgressMode   string
	MsgcatDir    string

	TutorDefaultDifficulty string
	TutorSessionTTL        time.Duration
	TutorHistoryLimit      int
	TutorAnalysisDepth     int
	TutorAdviceDebounce    time.Duration
	TutorEngineTimeout     time.Duration
	TutorStaticTerminals   bool
	TutorGeometricTactics  bool
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EgressMode:             EgressAuto,
		TutorDefaultDifficulty: "medium",
		TutorSessionTTL:        time.Hour,
		TutorHistoryLimit:      10,
		TutorAnalysisDepth:     2,
		TutorAdviceDebounce:    300 * time.Millisecond,
		TutorEngineTimeout:     15 * time.Second,
	}

	cfg.IrisBaseURL = strings.TrimSpace(os.Getenv("IRIS_BASE_URL"))
	cfg.IrisWSURL = strings.TrimSpace(os.Getenv("IRIS_WS_URL"))
	cfg.BotPrefix = strings.TrimSpace(os.Getenv("BOT_PREFIX"))

	cfg.XUserID = strings.TrimSpace(os.Getenv("X_USER_ID"))
	cfg.XUserEmail = strings.TrimSpace(os.Getenv("X_USER_EMAIL"))
	cfg.XSessionID = strings.TrimSpace(os.Getenv("X_SESSION_ID"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MsgcatDir = strings.TrimSpace(os.Getenv("MSGCAT_DIR"))
	cfg.AllowedRooms = splitList(os.Getenv("ALLOWED_ROOMS"))

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("EGRESS_MODE"))); v != "" {
		switch v {
		case EgressHTTP, EgressWS, EgressAuto:
			cfg.EgressMode = v
		default:
			return nil, fmt.Errorf("EGRESS_MODE must be http, ws or auto: %q", v)
		}
	}

	if v := strings.TrimSpace(os.Getenv("TUTOR_DEFAULT_DIFFICULTY")); v != "" {
		cfg.TutorDefaultDifficulty = v
	}
	if n, ok := positiveInt("TUTOR_SESSION_TTL"); ok { // seconds
		cfg.TutorSessionTTL = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("TUTOR_HISTORY_LIMIT"); ok {
		cfg.TutorHistoryLimit = n
	}
	if n, ok := positiveInt("TUTOR_ANALYSIS_DEPTH"); ok {
		if n > 4 {
			return nil, fmt.Errorf("TUTOR_ANALYSIS_DEPTH must be between 1 and 4: %d", n)
		}
		cfg.TutorAnalysisDepth = n
	}
	if n, ok := positiveInt("TUTOR_AUTO_ANALYSIS_DEBOUNCE_MS"); ok {
		cfg.TutorAdviceDebounce = time.Duration(n) * time.Millisecond
	}
	if n, ok := positiveInt("TUTOR_ENGINE_TIMEOUT_MS"); ok {
		cfg.TutorEngineTimeout = time.Duration(n) * time.Millisecond
	}
	if v := strings.TrimSpace(os.Getenv("TUTOR_STATIC_TERMINALS")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.TutorStaticTerminals = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("TUTOR_GEOMETRIC_TACTICS")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.TutorGeometricTactics = b
		}
	}

	if cfg.IrisBaseURL == "" {
		return nil, errors.New("IRIS_BASE_URL is required")
	}
	if cfg.IrisWSURL == "" {
		return nil, errors.New("IRIS_WS_URL is required")
	}
	if cfg.BotPrefix == "" {
		return nil, errors.New("BOT_PREFIX is required")
	}

	return cfg, nil
}

func positiveInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatLegacy  = "legacy"
	FormatJSON    = "json"
	FormatConsole = "console"
)

var (
	globalMu    sync.RWMutex
	globalLog   = zap.NewNop()
	globalClose = func() error { return nil }
)

// Options selects sinks and encoding. Console and file sinks are teed.
type Options struct {
	Level   zapcore.Level
	Console bool
	Color   bool
	File    string // empty disables the file sink
	Caller  bool
	Format  string
	App     string
}

// OptionsFromEnv reads LOG_LEVEL, LOG_TO_CONSOLE, LOG_COLOR, LOG_TO_FILE,
// LOG_FILE, LOG_CALLER, LOG_FORMAT and LOG_APP.
func OptionsFromEnv() Options {
	opts := Options{
		Level:   parseLevel(getenvDefault("LOG_LEVEL", "info")),
		Console: envBool("LOG_TO_CONSOLE", true),
		Color:   envBool("LOG_COLOR", false),
		Caller:  envBool("LOG_CALLER", false),
		Format:  strings.ToLower(strings.TrimSpace(getenvDefault("LOG_FORMAT", FormatLegacy))),
		App:     strings.TrimSpace(getenvDefault("LOG_APP", "chess-tutor")),
	}
	if envBool("LOG_TO_FILE", true) {
		opts.File = strings.TrimSpace(getenvDefault("LOG_FILE", filepath.Join("logs", "tutor.log")))
	}
	return opts
}

// New builds a logger for opts. The returned func closes the log file.
func New(opts Options) (*zap.Logger, func() error, error) {
	closeFn := func() error { return nil }
	switch opts.Format {
	case FormatLegacy, FormatJSON, FormatConsole:
	default:
		opts.Format = FormatLegacy
	}

	var cores []zapcore.Core
	if opts.Console {
		cores = append(cores, zapcore.NewCore(newEncoder(opts.Format, opts.Color), zapcore.AddSync(os.Stdout), opts.Level))
	}
	if opts.File != "" {
		if err := ensureDir(filepath.Dir(opts.File)); err != nil {
			return nil, closeFn, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, closeFn, fmt.Errorf("open log file: %w", err)
		}
		closeFn = f.Close
		// Colors would end up as escape codes in the file.
		cores = append(cores, zapcore.NewCore(newEncoder(opts.Format, false), zapcore.AddSync(f), opts.Level))
	}
	if len(cores) == 0 {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stderr), opts.Level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zapcore.ErrorLevel))
	if opts.Caller || opts.Format == FormatLegacy {
		logger = logger.WithOptions(zap.AddCaller())
	}
	if opts.App != "" {
		logger = logger.With(zap.String("app", opts.App))
	}
	return logger, closeFn, nil
}

// InitFromEnv replaces the process logger with one built from LOG_* variables.
func InitFromEnv() error {
	logger, closeFn, err := New(OptionsFromEnv())
	if err != nil {
		return err
	}
	globalMu.Lock()
	prevClose := globalClose
	globalLog, globalClose = logger, closeFn
	globalMu.Unlock()
	_ = prevClose()
	return nil
}

// L returns the process logger; a no-op until InitFromEnv succeeds.
func L() *zap.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLog
}

func Named(component string) *zap.Logger {
	return L().Named(component)
}

// Close flushes the process logger and closes its file.
func Close() error {
	globalMu.Lock()
	logger, closeFn := globalLog, globalClose
	globalLog, globalClose = zap.NewNop(), func() error { return nil }
	globalMu.Unlock()
	_ = logger.Sync()
	return closeFn()
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return def
	}
}

func newEncoder(format string, color bool) zapcore.Encoder {
	switch format {
	case FormatJSON:
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	case FormatConsole:
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = levelEncoder(color)
		return zapcore.NewConsoleEncoder(cfg)
	default:
		// Pipe-separated lines, the format the log shipper parses.
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		cfg.EncodeLevel = levelEncoder(color)
		cfg.ConsoleSeparator = " | "
		return zapcore.NewConsoleEncoder(cfg)
	}
}

func levelEncoder(color bool) zapcore.LevelEncoder {
	if color {
		return zapcore.CapitalColorLevelEncoder
	}
	return zapcore.CapitalLevelEncoder
}

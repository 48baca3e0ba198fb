package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
}

var (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
)

// Module tag colors for console output.
var tagColors = map[string]string{
	"BOOT":       "\x1b[96m",
	"HTTP":       "\x1b[95m",
	"WAKE":       "\x1b[35m",
	"RECOGNIZER": "\x1b[94m",
	"SESSION":    "\x1b[92m",
	"ANALYSIS":   "\x1b[34m",
	"STORE":      "\x1b[90m",
	"BUS":        "\x1b[36m",
}

// CustomTextHandler renders colored, tag-aware console output.
type CustomTextHandler struct {
	writer io.Writer
	level  slog.Level
	mu     sync.Mutex
}

func (h *CustomTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *CustomTextHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeStr := r.Time.Format("2006-01-02 15:04:05.000")

	var levelStr, levelColor string
	switch r.Level {
	case slog.LevelDebug:
		levelStr, levelColor = "DEBUG", colorDebug
	case slog.LevelWarn:
		levelStr, levelColor = "WARN", colorWarn
	case slog.LevelError:
		levelStr, levelColor = "ERROR", colorError
	default:
		levelStr, levelColor = "INFO", colorInfo
	}

	msg := r.Message
	var output string
	if tagColor, ok := tagColorFor(msg); ok {
		// Module log format: [time] [TAG] message
		output = fmt.Sprintf("%s[%s]%s %s%s%s",
			colorTime, timeStr, colorReset,
			tagColor, msg, colorReset)
	} else {
		// Plain log format: [time] [LEVEL] message
		output = fmt.Sprintf("%s[%s]%s %s[%s]%s %s",
			colorTime, timeStr, colorReset,
			levelColor, levelStr, colorReset,
			msg)
	}

	if r.NumAttrs() > 0 {
		output += " {"
		r.Attrs(func(a slog.Attr) bool {
			output += fmt.Sprintf(" %s=%v", a.Key, a.Value)
			return true
		})
		output += " }"
	}
	output += "\n"

	_, err := h.writer.Write([]byte(output))
	return err
}

func (h *CustomTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *CustomTextHandler) WithGroup(name string) slog.Handler {
	return h
}

func tagColorFor(msg string) (string, bool) {
	if !strings.HasPrefix(msg, "[") {
		return "", false
	}
	end := strings.IndexByte(msg, ']')
	if end < 0 {
		return "", false
	}
	color, ok := tagColors[msg[1:end]]
	return color, ok
}

// Logger writes colored text to the console and JSON to an optional log file.
type Logger struct {
	textLogger *slog.Logger
	jsonLogger *slog.Logger
	logFile    *os.File
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a Logger from config. A file sink is attached only when Dir is set.
func New(cfg Config) (*Logger, error) {
	level := parseLevel(cfg.Level)

	logger := &Logger{
		textLogger: slog.New(&CustomTextHandler{writer: os.Stdout, level: level}),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		filename := cfg.Filename
		if filename == "" {
			filename = "cipher-server.log"
		}
		logPath := filepath.Join(cfg.Dir, filename)
		file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.logFile = file
		logger.jsonLogger = slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
	}

	return logger, nil
}

// Slog exposes the structured console logger for integrations that want slog.
func (l *Logger) Slog() *slog.Logger {
	return l.textLogger
}

func (l *Logger) log(level slog.Level, msg string) {
	l.textLogger.Log(context.Background(), level, msg)
	if l.jsonLogger != nil {
		l.jsonLogger.Log(context.Background(), level, msg)
	}
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(slog.LevelDebug, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.log(slog.LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(slog.LevelWarn, fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.log(slog.LevelError, fmt.Sprintf(format, args...))
}

// DebugTag logs a module-tagged debug message, e.g. [WAKE] ...
func (l *Logger) DebugTag(tag, format string, args ...any) {
	l.log(slog.LevelDebug, fmt.Sprintf("[%s] %s", tag, fmt.Sprintf(format, args...)))
}

func (l *Logger) InfoTag(tag, format string, args ...any) {
	l.log(slog.LevelInfo, fmt.Sprintf("[%s] %s", tag, fmt.Sprintf(format, args...)))
}

func (l *Logger) WarnTag(tag, format string, args ...any) {
	l.log(slog.LevelWarn, fmt.Sprintf("[%s] %s", tag, fmt.Sprintf(format, args...)))
}

func (l *Logger) ErrorTag(tag, format string, args ...any) {
	l.log(slog.LevelError, fmt.Sprintf("[%s] %s", tag, fmt.Sprintf(format, args...)))
}

// Close releases the file sink if one was opened.
func (l *Logger) Close() error {
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

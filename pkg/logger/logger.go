package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type LogLevel int

const (
	ERROR LogLevel = iota
	WARN
	INFO
	DEBUG
)

const (
	APP        = "APP"
	BOT        = "BOT"
	CONFIG     = "CONFIG"
	ENGINE     = "ENGINE"
	HANDLER    = "HANDLER"
	MIDDLEWARE = "MIDDLEWARE"
	POLL       = "POLL"
	STORE      = "STORE"
	TRANSPORT  = "TRANSPORT"
	TUI        = "TUI"
)

var (
	mu           sync.RWMutex
	currentLevel = getLogLevel()
	base         = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

func getLogLevel() LogLevel {
	level := strings.ToUpper(os.Getenv("LOG_LEVEL"))
	switch level {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Setup points both the namespaced helpers and the global zerolog logger at w.
// The terminal client uses it to move logs off the screen it draws on.
func Setup(w io.Writer, pretty bool) {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	l := zerolog.New(w).With().Timestamp().Logger()

	mu.Lock()
	base = l
	currentLevel = getLogLevel()
	mu.Unlock()

	log.Logger = l
}

func emit(level LogLevel, namespace, format string, v ...interface{}) {
	mu.RLock()
	l, enabled := base, currentLevel >= level
	mu.RUnlock()

	if !enabled {
		return
	}

	var ev *zerolog.Event
	switch level {
	case DEBUG:
		ev = l.Debug()
	case INFO:
		ev = l.Info()
	case WARN:
		ev = l.Warn()
	default:
		ev = l.Error()
	}
	ev.Str("namespace", namespace).Msgf(format, v...)
}

func Debug(namespace, format string, v ...interface{}) {
	emit(DEBUG, namespace, format, v...)
}

func Info(namespace, format string, v ...interface{}) {
	emit(INFO, namespace, format, v...)
}

func Warn(namespace, format string, v ...interface{}) {
	emit(WARN, namespace, format, v...)
}

func Error(namespace, format string, v ...interface{}) {
	emit(ERROR, namespace, format, v...)
}

// Fatal logs at fatal level and leaves exiting to the caller.
func Fatal(namespace, format string, v ...interface{}) {
	mu.RLock()
	l := base
	mu.RUnlock()
	l.WithLevel(zerolog.FatalLevel).Str("namespace", namespace).Msgf(format, v...)
}

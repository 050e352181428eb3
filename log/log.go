// Package log provides a global, levelled and structured logger built on
// zerolog. Init must be called once at startup, otherwise the package logs
// errors to stderr, or the level set by $LOG_LEVEL.
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	// LogLevelDebug is the most verbose level.
	LogLevelDebug = "debug"
	// LogLevelInfo logs lifecycle and progress information.
	LogLevelInfo = "info"
	// LogLevelWarn logs recoverable problems.
	LogLevelWarn = "warn"
	// LogLevelError logs errors only.
	LogLevelError = "error"

	logTestWriterName = "log_test_writer"
	logTestTime       = "2006-01-02T15:04:05.000Z07:00"
)

var (
	log   zerolog.Logger
	level = LogLevelError

	// logTestWriter is used by tests to capture the output.
	logTestWriter io.Writer = &bytes.Buffer{}

	// panicOnInvalidChars makes the logger panic when an output line
	// contains invalid UTF-8, which usually means a []byte was logged with %s.
	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"
)

func init() {
	l := os.Getenv("LOG_LEVEL")
	if l == "" {
		l = LogLevelError
	}
	Init(l, "stderr", nil)
}

// invalidCharChecker wraps a writer and panics on lines carrying the unicode
// replacement character.
type invalidCharChecker struct {
	w io.Writer
}

func (c *invalidCharChecker) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte(`\ufffd`)) || bytes.ContainsRune(p, utf8.RuneError) {
		panic(fmt.Sprintf("log line with invalid chars: %q", p))
	}
	return c.w.Write(p)
}

// errorLevelWriter duplicates warning and error lines to another writer.
type errorLevelWriter struct {
	io.Writer
}

func (w *errorLevelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < zerolog.WarnLevel {
		return len(p), nil
	}
	return w.Write(p)
}

// Init initializes the logger. Output can be "stdout", "stderr" or a file
// path; errorOutput, if not nil, also receives the warning and error lines.
func Init(logLevel, output string, errorOutput io.Writer) {
	var out io.Writer
	switch output {
	case "stdout":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339Nano}
	case "stderr":
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339Nano}
	case logTestWriterName:
		out = logTestWriter
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			panic(fmt.Sprintf("cannot create log output: %v", err))
		}
		out = f
	}
	if panicOnInvalidChars {
		out = &invalidCharChecker{w: out}
	}
	if errorOutput != nil {
		out = zerolog.MultiLevelWriter(out, &errorLevelWriter{errorOutput})
	}
	zerolog.TimeFieldFormat = logTestTime
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return fmt.Sprintf("%s/%s:%d", path.Base(path.Dir(file)), path.Base(file), line)
	}

	log = zerolog.New(out).With().Timestamp().Caller().Logger()

	switch strings.ToLower(logLevel) {
	case LogLevelDebug:
		log = log.Level(zerolog.DebugLevel)
	case LogLevelInfo:
		log = log.Level(zerolog.InfoLevel)
	case LogLevelWarn:
		log = log.Level(zerolog.WarnLevel)
	case LogLevelError:
		log = log.Level(zerolog.ErrorLevel)
	default:
		panic(fmt.Sprintf("invalid log level: %q", logLevel))
	}
	level = strings.ToLower(logLevel)
	log.Info().Msgf("logger construction succeeded at level %s with output %s", logLevel, output)
}

// Logger returns the underlying zerolog logger.
func Logger() *zerolog.Logger {
	return &log
}

// Level returns the current log level.
func Level() string {
	return level
}

// Debug sends a debug level log message.
func Debug(args ...any) {
	log.Debug().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

// Info sends an info level log message.
func Info(args ...any) {
	log.Info().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

// Warn sends a warning level log message.
func Warn(args ...any) {
	log.Warn().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

// Error sends an error level log message.
func Error(args ...any) {
	log.Error().CallerSkipFrame(1).Msg(fmt.Sprint(args...))
}

// Fatal sends a fatal level log message and exits.
func Fatal(args ...any) {
	log.Fatal().CallerSkipFrame(1).Msg(fmt.Sprint(args...) + "\n" + string(debug.Stack()))
}

// Debugf sends a formatted debug level log message.
func Debugf(template string, args ...any) {
	log.Debug().CallerSkipFrame(1).Msgf(template, args...)
}

// Infof sends a formatted info level log message.
func Infof(template string, args ...any) {
	log.Info().CallerSkipFrame(1).Msgf(template, args...)
}

// Warnf sends a formatted warning level log message.
func Warnf(template string, args ...any) {
	log.Warn().CallerSkipFrame(1).Msgf(template, args...)
}

// Errorf sends a formatted error level log message.
func Errorf(template string, args ...any) {
	log.Error().CallerSkipFrame(1).Msgf(template, args...)
}

// Fatalf sends a formatted fatal level log message and exits.
func Fatalf(template string, args ...any) {
	log.Fatal().CallerSkipFrame(1).Msgf(template, args...)
}

// Debugw sends a debug level log message with key-value pairs.
func Debugw(msg string, keyvalues ...any) {
	log.Debug().CallerSkipFrame(1).Fields(keyvalues).Msg(msg)
}

// Infow sends an info level log message with key-value pairs.
func Infow(msg string, keyvalues ...any) {
	log.Info().CallerSkipFrame(1).Fields(keyvalues).Msg(msg)
}

// Warnw sends a warning level log message with key-value pairs.
func Warnw(msg string, keyvalues ...any) {
	log.Warn().CallerSkipFrame(1).Fields(keyvalues).Msg(msg)
}

// Errorw sends an error level log message with an error and a message.
func Errorw(err error, msg string) {
	log.Error().CallerSkipFrame(1).Err(err).Msg(msg)
}

package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var logger = newLogger()

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newLogger() *logrus.Logger {
	var l = logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toLogrus() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLevel maps DEBUG, INFO, WARN or ERROR (any case) to a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// SetLevel ignores unknown level names.
func SetLevel(level string) {
	if l, err := ParseLevel(level); err == nil {
		logger.SetLevel(l.toLogrus())
	}
}

func SetFormat(format string) {
	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
		return
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Configure applies level, format and output ("stdout", "stderr" or a file path).
// The returned closer releases the log file, if one was opened.
func Configure(level, format, output string) (io.Closer, error) {
	if _, err := ParseLevel(level); err != nil {
		return nil, err
	}
	SetLevel(level)
	SetFormat(format)

	switch strings.ToLower(output) {
	case "", "stdout":
		SetOutput(os.Stdout)
		return nopCloser{}, nil
	case "stderr":
		SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	var f, err = os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	SetOutput(f)
	return f, nil
}

func Enabled(level Level) bool {
	return logger.IsLevelEnabled(level.toLogrus())
}

// log records the calling function and line next to the message.
func log(level Level, format string, v ...any) {
	if !logger.IsLevelEnabled(level.toLogrus()) {
		return
	}
	var entry = logrus.NewEntry(logger)
	if pc, _, line, ok := runtime.Caller(2); ok {
		var name = "?"
		if fn := runtime.FuncForPC(pc); fn != nil {
			name = filepath.Base(fn.Name())
		}
		entry = entry.WithField("src", fmt.Sprintf("%s:%d", name, line))
	}
	entry.Logf(level.toLogrus(), format, v...)
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}

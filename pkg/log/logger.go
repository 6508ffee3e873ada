package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger *logrus.Logger

// rotator is the open log file, if any.
var rotator *lumberjack.Logger

// FileOptions configures the rotating log file. An empty Filename disables it.
type FileOptions struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init sets up the logger to write JSON to stdout.
func Init(level string) {
	InitWithOutput(level, os.Stdout, FileOptions{})
}

// InitWithOutput sets up the logger to write to out and, if configured, to a
// rotating log file as well. The TUI passes io.Discard for out so that log
// lines do not corrupt the screen.
func InitWithOutput(level string, out io.Writer, file FileOptions) {
	Close()
	rotator = nil
	Logger = logrus.New()

	writers := []io.Writer{out}
	if file.Filename != "" {
		rotator = &lumberjack.Logger{
			Filename:   file.Filename,
			MaxSize:    orDefault(file.MaxSizeMB, 10),
			MaxBackups: orDefault(file.MaxBackups, 5),
			MaxAge:     orDefault(file.MaxAgeDays, 30),
		}
		writers = append(writers, rotator)
	}
	Logger.SetOutput(io.MultiWriter(writers...))
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	Logger.SetLevel(logLevel)
}

// Close closes the log file. Later writes reopen it.
func Close() error {
	if rotator == nil {
		return nil
	}
	return rotator.Close()
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Fields is an alias so callers don't need to import logrus.
type Fields = logrus.Fields

// WithFields returns an entry carrying structured context. Safe to call
// before Init; the entry then discards everything.
func WithFields(fields Fields) *logrus.Entry {
	if Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l.WithFields(fields)
	}
	return Logger.WithFields(fields)
}

// Convenience functions
func Debug(args ...interface{}) {
	if Logger != nil {
		Logger.Debug(args...)
	}
}

func Debugf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Debugf(format, args...)
	}
}

func Info(args ...interface{}) {
	if Logger != nil {
		Logger.Info(args...)
	}
}

func Infof(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Infof(format, args...)
	}
}

func Warn(args ...interface{}) {
	if Logger != nil {
		Logger.Warn(args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Warnf(format, args...)
	}
}

func Error(args ...interface{}) {
	if Logger != nil {
		Logger.Error(args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Errorf(format, args...)
	}
}

func Fatal(args ...interface{}) {
	if Logger != nil {
		Logger.Fatal(args...)
		return
	}
	logrus.Fatal(args...)
}

func Fatalf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Fatalf(format, args...)
		return
	}
	logrus.Fatalf(format, args...)
}

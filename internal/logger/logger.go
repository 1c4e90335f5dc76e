// Package logger is the process-wide levelled logger. Output goes to stdout and, after
// Init, to a rotating timr.log file; every entry is also fanned out to subscribers
// (the websocket hub streams them to clients).
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel is the severity of a message.
type LogLevel string

const (
	Debug LogLevel = "DEBUG"
	Info  LogLevel = "INFO"
	Warn  LogLevel = "WARN"
	Error LogLevel = "ERROR"
)

// LogFileName is the name of the log file created by Init.
const LogFileName = "timr.log"

// priority orders levels; unknown levels rank as Info.
func (l LogLevel) priority() int {
	switch l {
	case Debug:
		return 0
	case Warn:
		return 2
	case Error:
		return 3
	default:
		return 1
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" (any case) to a LogLevel.
func ParseLevel(level string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return Debug, true
	case "info":
		return Info, true
	case "warn", "warning":
		return Warn, true
	case "error":
		return Error, true
	default:
		return Info, false
	}
}

// LogEntry is one message as delivered to subscribers.
type LogEntry struct {
	Timestamp string   `json:"timestamp"`
	Level     LogLevel `json:"level"`
	Message   string   `json:"message"`
}

var (
	mu         sync.Mutex
	minLevel   = Info
	listeners  []chan LogEntry
	fileLogger *lumberjack.Logger
	std        = log.New(os.Stdout, "", 0)
)

// SetLevel sets the minimum level written. Unknown names fall back to info.
func SetLevel(level string) {
	parsed, _ := ParseLevel(level)
	mu.Lock()
	minLevel = parsed
	mu.Unlock()
	std.Printf("Log level set to: %s", parsed)
}

// GetLevel returns the current minimum level.
func GetLevel() LogLevel {
	mu.Lock()
	defer mu.Unlock()
	return minLevel
}

// SetOutput replaces the stdout sink. Intended for tests.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// Init adds a rotating file sink in logDir next to stdout.
func Init(logDir string) error {
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	fileLogger = &lumberjack.Logger{
		Filename:   filepath.Join(logDir, LogFileName),
		MaxSize:    20, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
		Compress:   true,
	}
	std.SetOutput(io.MultiWriter(os.Stdout, fileLogger))
	return nil
}

// Close flushes and closes the file sink, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if fileLogger == nil {
		return nil
	}
	err := fileLogger.Close()
	fileLogger = nil
	std.SetOutput(os.Stdout)
	return err
}

// GetLogDir returns the directory of the file sink, or "" before Init.
func GetLogDir() string {
	mu.Lock()
	defer mu.Unlock()
	if fileLogger == nil {
		return ""
	}
	return filepath.Dir(fileLogger.Filename)
}

// Subscribe returns a buffered channel receiving every entry written from now on.
func Subscribe() chan LogEntry {
	mu.Lock()
	defer mu.Unlock()
	ch := make(chan LogEntry, 100)
	listeners = append(listeners, ch)
	return ch
}

// Unsubscribe removes and closes ch.
func Unsubscribe(ch chan LogEntry) {
	mu.Lock()
	defer mu.Unlock()
	for i, l := range listeners {
		if l == ch {
			listeners = append(listeners[:i], listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

func broadcast(entry LogEntry) {
	mu.Lock()
	defer mu.Unlock()
	for _, ch := range listeners {
		select {
		case ch <- entry:
		default:
			// subscriber too slow, drop
		}
	}
}

// Log writes a message at level if it passes the minimum level.
func Log(level LogLevel, format string, v ...any) {
	if level.priority() < GetLevel().priority() {
		return
	}

	msg := fmt.Sprintf(format, v...)
	timestamp := time.Now().Format(time.RFC3339)
	std.Printf("%s [%s] %s", timestamp, level, msg)

	broadcast(LogEntry{
		Timestamp: timestamp,
		Level:     level,
		Message:   msg,
	})
}

func Debugf(format string, v ...any) { Log(Debug, format, v...) }
func Infof(format string, v ...any)  { Log(Info, format, v...) }
func Warnf(format string, v ...any)  { Log(Warn, format, v...) }
func Errorf(format string, v ...any) { Log(Error, format, v...) }

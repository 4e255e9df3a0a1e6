// Package conversation persists assistant turns and mirrors them to NDJSON logs.
package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// LogConfig controls NDJSON conversation logging.
type LogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// LogEvent is one NDJSON line.
type LogEvent struct {
	Timestamp  string         `json:"ts"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Logger writes conversation events asynchronously. Log never blocks the
// caller; events are dropped when the queue is full.
type Logger interface {
	Log(event LogEvent)
	Close() error
}

type noopLogger struct{}

func (noopLogger) Log(LogEvent) {}
func (noopLogger) Close() error { return nil }

type fileLogger struct {
	cfg    LogConfig
	logger *slog.Logger
	queue  chan LogEvent
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
	global    *os.File
}

// NewLogger returns a file-backed logger, or a no-op logger when disabled.
func NewLogger(cfg LogConfig, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return noopLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}

	l := &fileLogger{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan LogEvent, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o750); err != nil {
			return nil, fmt.Errorf("create global conversation log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.GlobalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("open global conversation log: %w", err)
		}
		l.global = f
	}

	go l.run()
	return l, nil
}

func (l *fileLogger) Log(event LogEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if event.Content == "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("Conversation log queue full, dropping event",
			"user_id", event.UserID,
			"event_type", event.EventType,
		)
	}
}

func (l *fileLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		line, err := json.Marshal(event)
		if err != nil {
			l.logger.Warn("failed to marshal conversation event", "error", err)
			continue
		}
		line = append(line, '\n')

		if err := l.appendSession(event, line); err != nil {
			l.logger.Warn("failed to write conversation log", "user_id", event.UserID, "error", err)
		}
		if l.global != nil {
			if _, err := l.global.Write(line); err != nil {
				l.logger.Warn("failed to write global conversation log", "error", err)
			}
		}
	}
}

func (l *fileLogger) appendSession(event LogEvent, line []byte) error {
	dir := filepath.Join(l.cfg.Dir, safeSegment(event.UserID))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, safeSegment(event.SessionID)+".ndjson"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	_, werr := f.Write(line)
	return errors.Join(werr, f.Close())
}

// Close drains queued events and closes open files.
func (l *fileLogger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()

		<-l.done
		if l.global != nil {
			err = l.global.Close()
		}
	})
	return err
}

var unsafeSegment = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// safeSegment keeps ids usable as single path elements.
func safeSegment(s string) string {
	s = unsafeSegment.ReplaceAllString(s, "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "unknown"
	}
	return s
}

var (
	ansiEscape   = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b-\x1f\x7f]`)
	blankRuns    = regexp.MustCompile(`[ \t]+`)
)

func cleanForReadability(raw string) string {
	s := ansiEscape.ReplaceAllString(raw, "")
	s = controlChars.ReplaceAllString(s, "")
	s = blankRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

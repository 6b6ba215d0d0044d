package workflow

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a transient user-visible message.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier is the sink for user-visible messages.
type Notifier interface {
	Notify(level Level, message string)
}

// Feed is a zap-backed Notifier that retains the most recent notices
// so the page can poll them.
type Feed struct {
	log *zap.Logger
	max int

	mu      sync.Mutex
	notices []Notice
}

func NewFeed(log *zap.Logger, max int) *Feed {
	if max <= 0 {
		max = 20
	}
	return &Feed{log: log, max: max}
}

func (f *Feed) Notify(level Level, message string) {
	switch level {
	case LevelError:
		f.log.Warn("notification", zap.String("level", string(level)), zap.String("message", message))
	default:
		f.log.Info("notification", zap.String("level", string(level)), zap.String("message", message))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, Notice{Level: level, Message: message, At: time.Now()})
	if len(f.notices) > f.max {
		f.notices = f.notices[len(f.notices)-f.max:]
	}
}

// Recent returns the retained notices, newest last.
func (f *Feed) Recent() []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notice, len(f.notices))
	copy(out, f.notices)
	return out
}

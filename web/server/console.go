package server

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ConsoleMessage represents a console message with timestamp
type ConsoleMessage struct {
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"` // "debug", "info", "warn", "error"
	Fields    map[string]any `json:"fields,omitempty"`
}

// consoleCore is a zapcore.Core that forwards entries to a render's web
// console. Sends never block; a full channel drops the entry.
type consoleCore struct {
	zapcore.LevelEnabler
	fields      []zapcore.Field
	consoleChan chan<- ConsoleMessage
}

// NewConsoleLogger returns base teed with a core that streams entries to
// consoleChan
func NewConsoleLogger(base *zap.Logger, consoleChan chan<- ConsoleMessage) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	console := &consoleCore{LevelEnabler: zapcore.InfoLevel, consoleChan: consoleChan}
	return base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, console)
	}))
}

func (c *consoleCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *consoleCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *consoleCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if c.consoleChan == nil {
		return nil
	}

	msg := ConsoleMessage{
		Message:   ent.Message,
		Timestamp: ent.Time,
		Level:     ent.Level.String(),
	}
	if len(c.fields)+len(fields) > 0 {
		enc := zapcore.NewMapObjectEncoder()
		for _, f := range c.fields {
			f.AddTo(enc)
		}
		for _, f := range fields {
			f.AddTo(enc)
		}
		msg.Fields = enc.Fields
	}

	select {
	case c.consoleChan <- msg:
	default:
		// Channel full, skip (don't block)
	}
	return nil
}

func (c *consoleCore) Sync() error {
	return nil
}

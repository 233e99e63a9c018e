package models

import (
	"time"

	"github.com/rs/zerolog"
)

// ProgressEvent is one structured progress message from an estimation run.
// Engines emit a sequence of these to a caller-supplied sink instead of
// keeping any process-wide log state.
type ProgressEvent struct {
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Severity  string    `json:"severity"` // "info", "warning", "error"
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressSink receives progress events from an engine. Implementations
// must be safe for use from a single fit goroutine; engines never share a
// sink across concurrent fits unless the caller does.
type ProgressSink interface {
	Publish(event ProgressEvent)
}

// NopSink discards all progress events
type NopSink struct{}

func (NopSink) Publish(ProgressEvent) {}

// LogSink forwards progress events to a zerolog logger
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Publish(event ProgressEvent) {
	var e *zerolog.Event
	switch event.Severity {
	case "error":
		e = s.Logger.Error()
	case "warning":
		e = s.Logger.Warn()
	default:
		e = s.Logger.Info()
	}
	e.Str("run_id", event.RunID).Str("stage", event.Stage).Msg(event.Message)
}

// ChannelSink buffers progress events on a channel, dropping events when
// the receiver falls behind so the fit never blocks on reporting.
type ChannelSink struct {
	C chan ProgressEvent
}

// NewChannelSink creates a sink with the given buffer size
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan ProgressEvent, buffer)}
}

func (s *ChannelSink) Publish(event ProgressEvent) {
	select {
	case s.C <- event:
	default:
	}
}

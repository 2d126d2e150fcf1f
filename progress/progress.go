// Package progress delivers human-readable stage messages from a report run
// to whoever is watching: a callback, the log, an in-memory status tracker
// or a NATS subject.
package progress

import (
	"log/slog"
)

// Sink receives progress messages. Report must not block the pipeline.
type Sink interface {
	Report(msg string)
}

// Func adapts a function to a Sink.
type Func func(msg string)

// Report implements Sink.
func (f Func) Report(msg string) {
	if f != nil {
		f(msg)
	}
}

// Discard drops every message.
var Discard Sink = Func(nil)

// Log writes each message at Info level.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log sink.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Report implements Sink.
func (l *Log) Report(msg string) {
	l.logger.Info(msg)
}

type multi []Sink

func (m multi) Report(msg string) {
	for _, s := range m {
		s.Report(msg)
	}
}

// Multi fans a message out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

type safe struct {
	sink   Sink
	logger *slog.Logger
}

// Safe wraps a sink so that a panic inside Report is logged and swallowed.
func Safe(sink Sink, logger *slog.Logger) Sink {
	if sink == nil {
		return Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &safe{sink: sink, logger: logger}
}

func (s *safe) Report(msg string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Progress sink panicked", "panic", r, "message", msg)
		}
	}()
	s.sink.Report(msg)
}

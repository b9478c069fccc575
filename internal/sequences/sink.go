package sequences

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Message is a rendered step message handed to a Sink.
type Message struct {
	Sequence string
	RunID    string
	Step     int
	StepName string
	Level    Level
	Text     string
}

// Sink receives step messages.
type Sink interface {
	Log(ctx context.Context, msg Message) error
}

// LoggerSink writes messages as structured log entries.
type LoggerSink struct {
	Logger zerolog.Logger
}

// Log emits msg at its level.
func (s LoggerSink) Log(ctx context.Context, msg Message) error {
	var event *zerolog.Event
	switch msg.Level {
	case LevelDebug:
		event = s.Logger.Debug()
	case LevelWarn:
		event = s.Logger.Warn()
	case LevelError:
		event = s.Logger.Error()
	default:
		event = s.Logger.Info()
	}
	event.
		Str("sequence", msg.Sequence).
		Str("run_id", msg.RunID).
		Int("step", msg.Step).
		Str("step_name", msg.StepName).
		Msg(msg.Text)
	return nil
}

// WriterSink writes one plain line per message.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Log writes msg to the underlying writer.
func (s *WriterSink) Log(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "[%s] %s\n", msg.Sequence, msg.Text)
	return err
}

// MultiSink fans a message out to every sink. All sinks are called; the
// errors are joined.
type MultiSink []Sink

// Log forwards msg to each sink.
func (m MultiSink) Log(ctx context.Context, msg Message) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Log(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemorySink keeps messages in memory.
type MemorySink struct {
	mu       sync.Mutex
	messages []Message
}

// Log records msg.
func (s *MemorySink) Log(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (s *MemorySink) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Texts returns the recorded message texts in order.
func (s *MemorySink) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	texts := make([]string, 0, len(s.messages))
	for _, msg := range s.messages {
		texts = append(texts, msg.Text)
	}
	return texts
}

package netlog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sinkTimeout bounds a single sink write.
const sinkTimeout = 2 * time.Second

// sinkQueueSize is how many entries may wait for the sink writer before
// new ones are dropped from the sinks (they stay in the ring).
const sinkQueueSize = 1024

// DefaultMaxEntries is used when New is given a non-positive size.
const DefaultMaxEntries = 1000

// Entry is one event log record.
type Entry struct {
	ID     string    `json:"id" cbor:"1,keyasint"`
	Time   time.Time `json:"time" cbor:"2,keyasint"`
	Level  Level     `json:"level" cbor:"3,keyasint"`
	Event  string    `json:"event" cbor:"4,keyasint"`
	Path   string    `json:"path,omitempty" cbor:"5,keyasint,omitempty"`
	Detail string    `json:"detail,omitempty" cbor:"6,keyasint,omitempty"`
}

// Filter selects entries. Zero values match everything.
type Filter struct {
	MinLevel Level
	Path     string
	// Limit keeps only the newest Limit entries when positive.
	Limit int
}

func (f Filter) matches(e Entry) bool {
	if e.Level < f.MinLevel {
		return false
	}
	if f.Path != "" && e.Path != f.Path {
		return false
	}
	return true
}

// Sink persists entries outside the process.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// Logger is the structured logger entries are mirrored to.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Log is a bounded ring of entries. It is safe for concurrent use.
//
// Record never waits on a sink: entries are queued and written by a
// goroutine started with the first AddSink. Close drains that queue.
type Log struct {
	mu     sync.Mutex
	buf    []Entry
	start  int
	count  int
	sinks  []Sink
	logger Logger
	now    func() time.Time

	queue   chan Entry
	writing bool
	closed  bool
	dropped int
	done    chan struct{}
}

// New creates a Log holding at most maxEntries entries.
func New(maxEntries int) *Log {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Log{
		buf:    make([]Entry, maxEntries),
		logger: noopLogger{},
		now:    time.Now,
		queue:  make(chan Entry, sinkQueueSize),
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger entries are mirrored to.
func (l *Log) SetLogger(logger Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	l.logger = logger
}

// AddSink registers a sink for every subsequent entry.
func (l *Log) AddSink(s Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, s)
	if !l.writing && !l.closed {
		l.writing = true
		go l.writeLoop()
	}
}

// Record appends an entry, mirrors it to the logger and queues it for the
// sinks. When the sink queue is full the entry is not persisted.
func (l *Log) Record(level Level, event, path, detail string) {
	l.mu.Lock()
	e := Entry{
		ID:     uuid.NewString(),
		Time:   l.now().UTC(),
		Level:  level,
		Event:  event,
		Path:   path,
		Detail: detail,
	}
	l.push(e)
	logger := l.logger
	dropped := false
	if l.writing && !l.closed {
		select {
		case l.queue <- e:
		default:
			l.dropped++
			dropped = true
		}
	}
	l.mu.Unlock()

	mirror(logger, e)
	if dropped {
		logger.Warn("network event sink queue full, entry not persisted", "event", e.Event)
	}
}

func (l *Log) writeLoop() {
	defer close(l.done)
	for e := range l.queue {
		l.mu.Lock()
		sinks := l.sinks
		logger := l.logger
		l.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		for _, s := range sinks {
			if err := s.Write(ctx, e); err != nil {
				logger.Warn("network event sink write failed", "event", e.Event, "error", err)
			}
		}
		cancel()
	}
}

// Close stops accepting sink writes and waits until queued entries are
// written. The ring keeps recording. Calling Close twice is harmless.
func (l *Log) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	writing := l.writing
	close(l.queue)
	l.mu.Unlock()

	if writing {
		<-l.done
	}
	return nil
}

// Dropped returns how many entries were not persisted because the sink
// queue was full.
func (l *Log) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

func (l *Log) push(e Entry) {
	size := len(l.buf)
	if l.count < size {
		l.buf[(l.start+l.count)%size] = e
		l.count++
		return
	}
	l.buf[l.start] = e
	l.start = (l.start + 1) % size
}

// Entries returns the matching entries, oldest first.
func (l *Log) Entries(f Filter) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, l.count)
	for i := 0; i < l.count; i++ {
		e := l.buf[(l.start+i)%len(l.buf)]
		if f.matches(e) {
			out = append(out, e)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Len returns the number of entries held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func mirror(logger Logger, e Entry) {
	args := []any{"event", e.Event}
	if e.Path != "" {
		args = append(args, "path", e.Path)
	}
	if e.Detail != "" {
		args = append(args, "detail", e.Detail)
	}
	switch e.Level {
	case LevelError:
		logger.Error("network event", args...)
	case LevelDebug:
		logger.Debug("network event", args...)
	default:
		logger.Info("network event", append(args, "level", e.Level.String())...)
	}
}

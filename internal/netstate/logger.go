package netstate

import "github.com/nerrad567/gray-logic-netstate/internal/netlog"

// Logger is the logging interface used by the handler and dispatcher.
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

// EventRecorder receives network event log entries. *netlog.Log implements it.
type EventRecorder interface {
	Record(level netlog.Level, event, path, detail string)
}

type noopRecorder struct{}

func (noopRecorder) Record(netlog.Level, string, string, string) {}

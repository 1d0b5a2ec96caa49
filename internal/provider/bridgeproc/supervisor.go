package bridgeproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-netstate/internal/netlog"
	"github.com/nerrad567/gray-logic-netstate/internal/netstate"
)

// Status is the supervisor's view of the bridge process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// Event log entries recorded by the supervisor. The entry path is the
// supervisor name.
const (
	EventStarted    = "bridge.started"
	EventExited     = "bridge.exited"
	EventRestarting = "bridge.restarting"
	EventGaveUp     = "bridge.gave_up"
	EventStopped    = "bridge.stopped"
)

const (
	defaultName            = "provider-bridge"
	defaultRestartDelay    = 2 * time.Second
	defaultMaxRestartDelay = time.Minute
	defaultStopTimeout     = 10 * time.Second
)

// Logger is the logging interface used by this package.
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

type noopRecorder struct{}

func (noopRecorder) Record(netlog.Level, string, string, string) {}

// Options configures a Supervisor.
type Options struct {
	// Name identifies the bridge in logs and event log entries.
	Name string

	Command string
	Args    []string

	// Env is appended to the daemon's environment.
	Env []string

	// RestartDelay is the first restart delay. It doubles per restart up
	// to MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// MaxRestarts gives up after this many restarts. 0 is unlimited.
	MaxRestarts int

	// StopTimeout is how long Stop waits after SIGTERM before SIGKILL.
	StopTimeout time.Duration

	Logger Logger
	Events netstate.EventRecorder
}

// Supervisor runs the provider bridge daemon and restarts it when it exits.
type Supervisor struct {
	opts   Options
	logger Logger
	events netstate.EventRecorder

	mu       sync.RWMutex
	cmd      *exec.Cmd
	status   Status
	restarts int
	lastErr  error
	stopping bool
	stop     chan struct{}
	done     chan struct{}
}

// New creates a supervisor. Call Start to launch the bridge.
func New(opts Options) (*Supervisor, error) {
	if opts.Command == "" {
		return nil, ErrMissingCommand
	}
	if opts.Name == "" {
		opts.Name = defaultName
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = defaultRestartDelay
	}
	if opts.MaxRestartDelay < opts.RestartDelay {
		opts.MaxRestartDelay = max(defaultMaxRestartDelay, opts.RestartDelay)
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	s := &Supervisor{opts: opts, logger: opts.Logger, events: opts.Events, status: StatusStopped}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.events == nil {
		s.events = noopRecorder{}
	}
	return s, nil
}

// Start launches the bridge and supervises it until Stop is called or ctx
// is cancelled. A bridge that cannot be launched at all is an error; later
// exits are restarted.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusRunning || s.status == StatusStarting {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.status = StatusStarting
	s.stopping = false
	s.restarts = 0
	s.stop = nil
	s.done = nil
	s.mu.Unlock()

	cmd, err := s.spawn(ctx)
	if err != nil {
		s.mu.Lock()
		s.status = StatusFailed
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.mu.Lock()
	s.stop = stop
	s.done = done
	s.mu.Unlock()

	go s.supervise(ctx, cmd, stop, done)
	return nil
}

func (s *Supervisor) spawn(ctx context.Context) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, s.opts.Command, s.opts.Args...) //nolint:gosec // command comes from the daemon config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return signalGroup(cmd, syscall.SIGTERM)
	}
	cmd.WaitDelay = s.opts.StopTimeout
	if s.opts.Env != nil {
		cmd.Env = append(os.Environ(), s.opts.Env...)
	}

	cmd.Stdout = s.output("stdout")
	cmd.Stderr = s.output("stderr")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStartFailed, s.opts.Name, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.status = StatusRunning
	stopping := s.stopping
	s.mu.Unlock()
	if stopping {
		// Stop raced with a restart; supervise sees stopping once it exits.
		_ = signalGroup(cmd, syscall.SIGTERM)
	}

	s.logger.Info("provider bridge started", "name", s.opts.Name, "pid", cmd.Process.Pid)
	s.events.Record(netlog.LevelEvent, EventStarted, s.opts.Name, fmt.Sprintf("pid %d", cmd.Process.Pid))
	return cmd, nil
}

// output returns a writer forwarding the bridge's output to the logger
// line by line.
func (s *Supervisor) output(stream string) *lineWriter {
	return &lineWriter{emit: func(line string) {
		s.logger.Debug("provider bridge output", "name", s.opts.Name, "stream", stream, "line", line)
	}}
}

// lineWriter calls emit once per complete line. exec writes each stream
// from a single goroutine.
type lineWriter struct {
	emit func(string)
	buf  []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(string(bytes.TrimRight(w.buf[:i], "\r")))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (s *Supervisor) supervise(ctx context.Context, cmd *exec.Cmd, stop, done chan struct{}) {
	defer close(done)
	for {
		err := cmd.Wait()
		if s.stopRequested(ctx) {
			s.stopped()
			return
		}
		s.exited(err)

		for {
			attempt, ok := s.nextAttempt()
			if !ok {
				s.logger.Error("provider bridge restart limit reached", "name", s.opts.Name, "restarts", attempt-1)
				s.events.Record(netlog.LevelError, EventGaveUp, s.opts.Name, fmt.Sprintf("after %d restarts", attempt-1))
				return
			}
			delay := s.backoff(attempt)
			s.logger.Info("restarting provider bridge", "name", s.opts.Name, "attempt", attempt, "delay", delay)
			s.events.Record(netlog.LevelEvent, EventRestarting, s.opts.Name, fmt.Sprintf("attempt %d in %s", attempt, delay))

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.stopped()
				return
			case <-stop:
				timer.Stop()
				s.stopped()
				return
			case <-timer.C:
			}

			next, spawnErr := s.spawn(ctx)
			if spawnErr == nil {
				cmd = next
				break
			}
			s.exited(spawnErr)
		}
	}
}

func (s *Supervisor) stopRequested(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopping || ctx.Err() != nil
}

func (s *Supervisor) exited(err error) {
	if err == nil {
		err = ErrUnexpectedExit
	}
	s.mu.Lock()
	s.status = StatusFailed
	s.lastErr = err
	s.mu.Unlock()
	s.logger.Warn("provider bridge exited", "name", s.opts.Name, "error", err)
	s.events.Record(netlog.LevelError, EventExited, s.opts.Name, err.Error())
}

func (s *Supervisor) stopped() {
	s.mu.Lock()
	s.status = StatusStopped
	s.mu.Unlock()
	s.logger.Info("provider bridge stopped", "name", s.opts.Name)
	s.events.Record(netlog.LevelEvent, EventStopped, s.opts.Name, "")
}

// nextAttempt counts a restart and reports whether it is allowed.
func (s *Supervisor) nextAttempt() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restarts++
	if s.opts.MaxRestarts > 0 && s.restarts > s.opts.MaxRestarts {
		return s.restarts, false
	}
	return s.restarts, true
}

// backoff returns the delay before restart attempt n (1-based).
func (s *Supervisor) backoff(n int) time.Duration {
	d := s.opts.RestartDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= s.opts.MaxRestartDelay {
			return s.opts.MaxRestartDelay
		}
	}
	return d
}

// Stop terminates the bridge's process group, escalating to SIGKILL after
// StopTimeout, and waits for supervision to end.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.done == nil || s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	close(s.stop)
	cmd := s.cmd
	done := s.done
	s.mu.Unlock()

	if err := signalGroup(cmd, syscall.SIGTERM); err != nil {
		s.logger.Warn("signalling provider bridge failed", "name", s.opts.Name, "error", err)
	}

	timer := time.NewTimer(s.opts.StopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
	}

	s.logger.Warn("provider bridge did not stop, killing", "name", s.opts.Name, "timeout", s.opts.StopTimeout)
	s.mu.RLock()
	cmd = s.cmd
	s.mu.RUnlock()
	if err := signalGroup(cmd, syscall.SIGKILL); err != nil {
		return fmt.Errorf("killing %s: %w", s.opts.Name, err)
	}
	<-done
	return nil
}

// signalGroup signals the process group led by cmd. A group that has
// already exited is not an error.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, sig)
	if err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

// Status returns the current status.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Restarts returns the number of restarts since Start.
func (s *Supervisor) Restarts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restarts
}

// LastError returns why the bridge last exited.
func (s *Supervisor) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// HealthCheck reports whether the bridge is running.
func (s *Supervisor) HealthCheck(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusRunning {
		if s.lastErr != nil {
			return fmt.Errorf("%w: %s: %w", ErrNotRunning, s.status, s.lastErr)
		}
		return fmt.Errorf("%w: %s", ErrNotRunning, s.status)
	}
	return nil
}

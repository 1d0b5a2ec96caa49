package netstate

import (
	"context"
	"sync"
)

// Dispatcher serializes all access to a Handler onto one goroutine.
//
// Provider adapters post inbound updates through Delegate; consumers use Do
// to run a function against the handler and wait for it. Functions run in
// the order they were posted.
type Dispatcher struct {
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	logger Logger
	mu     sync.RWMutex
}

// NewDispatcher creates a dispatcher with a task buffer of queueSize.
func NewDispatcher(queueSize int) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		tasks:  make(chan func(), queueSize),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used for recovered task panics.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	d.logger = logger
}

func (d *Dispatcher) getLogger() Logger {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.logger
}

// Run executes posted functions until ctx is cancelled. Tasks still queued
// at that point are discarded. Run returns ctx.Err().
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.once.Do(func() { close(d.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-d.tasks:
			d.run(fn)
		}
	}
}

func (d *Dispatcher) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.getLogger().Error("dispatcher task panic recovered", "panic", r)
		}
	}()
	fn()
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Post queues fn without waiting for it to run. It blocks while the queue
// is full and fails once the run loop has stopped.
func (d *Dispatcher) Post(fn func()) error {
	select {
	case <-d.done:
		return ErrDispatcherStopped
	default:
	}
	select {
	case d.tasks <- fn:
		return nil
	case <-d.done:
		return ErrDispatcherStopped
	}
}

// Do runs fn on the dispatcher goroutine and waits for it to finish.
// It must not be called from the dispatcher goroutine itself (for example
// from an Observer), which would deadlock.
func (d *Dispatcher) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case d.tasks <- task:
	case <-d.done:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-d.done:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delegate wraps target so that every inbound call is posted to the
// dispatcher. Calls made after the dispatcher stopped are dropped.
func (d *Dispatcher) Delegate(target Delegate) Delegate {
	return &dispatchedDelegate{d: d, target: target}
}

type dispatchedDelegate struct {
	d      *Dispatcher
	target Delegate
}

func (dd *dispatchedDelegate) post(fn func()) {
	if err := dd.d.Post(fn); err != nil {
		dd.d.getLogger().Debug("dropping provider update", "error", err)
	}
}

func (dd *dispatchedDelegate) UpdateManagedList(kind ManagedType, paths []string) {
	dd.post(func() { dd.target.UpdateManagedList(kind, paths) })
}

func (dd *dispatchedDelegate) ManagedStateListChanged(kind ManagedType) {
	dd.post(func() { dd.target.ManagedStateListChanged(kind) })
}

func (dd *dispatchedDelegate) UpdateManagedStateProperties(kind ManagedType, path string, properties map[string]any) {
	dd.post(func() { dd.target.UpdateManagedStateProperties(kind, path, properties) })
}

func (dd *dispatchedDelegate) UpdateNetworkServiceProperty(path, key string, value any) {
	dd.post(func() { dd.target.UpdateNetworkServiceProperty(path, key, value) })
}

func (dd *dispatchedDelegate) UpdateDeviceProperty(path, key string, value any) {
	dd.post(func() { dd.target.UpdateDeviceProperty(path, key, value) })
}

func (dd *dispatchedDelegate) ProfileListChanged() {
	dd.post(dd.target.ProfileListChanged)
}

func (dd *dispatchedDelegate) CheckPortalListChanged(list string) {
	dd.post(func() { dd.target.CheckPortalListChanged(list) })
}

func (dd *dispatchedDelegate) NotifyManagerPropertyChanged() {
	dd.post(dd.target.NotifyManagerPropertyChanged)
}

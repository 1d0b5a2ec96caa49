package netstate

import "time"

type scanWaiter struct {
	id uint64
	cb func()
}

// scanQueue holds completion callbacks per technology type and the time a
// scan was last requested for each type.
type scanQueue struct {
	waiters   map[string][]scanWaiter
	requested map[string]time.Time
	nextID    uint64
}

func newScanQueue() *scanQueue {
	return &scanQueue{
		waiters:   make(map[string][]scanWaiter),
		requested: make(map[string]time.Time),
	}
}

// add enqueues cb and returns its id.
func (q *scanQueue) add(typ string, cb func()) uint64 {
	q.nextID++
	q.waiters[typ] = append(q.waiters[typ], scanWaiter{id: q.nextID, cb: cb})
	return q.nextID
}

// remove drops a waiter that is still queued.
func (q *scanQueue) remove(typ string, id uint64) bool {
	ws := q.waiters[typ]
	for i, w := range ws {
		if w.id != id {
			continue
		}
		ws = append(ws[:i:i], ws[i+1:]...)
		if len(ws) == 0 {
			delete(q.waiters, typ)
		} else {
			q.waiters[typ] = ws
		}
		return true
	}
	return false
}

// take removes and returns every callback queued for typ and forgets the
// outstanding request.
func (q *scanQueue) take(typ string) []func() {
	ws := q.waiters[typ]
	delete(q.waiters, typ)
	delete(q.requested, typ)
	cbs := make([]func(), len(ws))
	for i, w := range ws {
		cbs[i] = w.cb
	}
	return cbs
}

// outstanding reports whether a scan for typ was requested less than
// window ago and has not completed.
func (q *scanQueue) outstanding(typ string, now time.Time, window time.Duration) bool {
	at, ok := q.requested[typ]
	return ok && now.Sub(at) < window
}

func (q *scanQueue) markRequested(typ string, now time.Time) {
	q.requested[typ] = now
}

func (q *scanQueue) pending(typ string) int {
	return len(q.waiters[typ])
}

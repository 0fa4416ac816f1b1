package poll

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ExpireFunc is invoked when an armed question deadline fires. The callback
// must route back through the engine so the expiry is processed as one more
// serialized event; the session then guards by question identity, so a fire
// that lost the race against cancellation is harmless.
type ExpireFunc func(sessionID, questionID string)

type armedTimer struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

// Clock schedules the per-question answer deadline. At most one timer is
// armed per question. Built on clockwork so tests can drive a fake clock.
type Clock struct {
	clock    clockwork.Clock
	onExpire ExpireFunc

	mu     sync.Mutex
	timers map[string]*armedTimer
}

// NewClock creates a question clock. Pass clockwork.NewRealClock() in
// production and a FakeClock in tests.
func NewClock(c clockwork.Clock, onExpire ExpireFunc) *Clock {
	return &Clock{
		clock:    c,
		onExpire: onExpire,
		timers:   make(map[string]*armedTimer),
	}
}

// Now returns the clock's current time. Sessions use this for askedAt and
// finishedAt stamps so fake-clock tests stay consistent.
func (c *Clock) Now() time.Time {
	return c.clock.Now()
}

// Arm schedules a single-shot expiry for the question. An existing timer for
// the same question is replaced.
func (c *Clock) Arm(sessionID, questionID string, d time.Duration) {
	a := &armedTimer{
		timer:  c.clock.NewTimer(d),
		cancel: make(chan struct{}),
	}

	c.mu.Lock()
	if old, ok := c.timers[questionID]; ok {
		stopAndDrainTimer(old.timer)
		close(old.cancel)
	}
	c.timers[questionID] = a
	c.mu.Unlock()

	go func() {
		select {
		case <-a.timer.Chan():
			c.remove(questionID, a)
			c.onExpire(sessionID, questionID)
		case <-a.cancel:
		}
	}()
}

// Disarm cancels the question's timer. Idempotent: safe when the timer
// already fired or was never armed. Cancellation is best-effort — the real
// guarantee against a stale fire is the session's identity check.
func (c *Clock) Disarm(questionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.timers[questionID]
	if !ok {
		return
	}
	stopAndDrainTimer(a.timer)
	close(a.cancel)
	delete(c.timers, questionID)
}

func (c *Clock) remove(questionID string, a *armedTimer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.timers[questionID]; ok && cur == a {
		delete(c.timers, questionID)
	}
}

// stopAndDrainTimer stops a timer and drains its channel so the waiting
// goroutine cannot observe a fire that raced the stop.
func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}

package poll

import (
	"context"

	"go.uber.org/zap"
)

// Engine serializes every mutation of poll state onto a single goroutine.
// Inbound messages, timer expiries and HTTP-triggered operations are all
// posted here as closures and run to completion one at a time, so session
// state needs no locking and a timer can never race a teacher action.
type Engine struct {
	events chan func()
	logger *zap.Logger
}

// NewEngine creates an engine. Run must be called before Do has any effect.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		events: make(chan func(), 256),
		logger: logger,
	}
}

// Run drains the event queue until ctx is cancelled. It is the only goroutine
// that touches directory, registry and session state.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Debug("poll engine started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Debug("poll engine stopped")
			return
		case fn := <-e.events:
			fn()
		}
	}
}

// Do posts fn to the serialized queue and returns without waiting.
func (e *Engine) Do(fn func()) {
	e.events <- fn
}

// DoWait posts fn and blocks until it has run. Used by the thin HTTP surface
// that needs the operation's result.
func (e *Engine) DoWait(fn func()) {
	done := make(chan struct{})
	e.events <- func() {
		defer close(done)
		fn()
	}
	<-done
}

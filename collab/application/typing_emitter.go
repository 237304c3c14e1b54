package application

import (
	"sync"
	"time"

	"github.com/AzielCF/az-collab/pkg/clock"
)

const DefaultTypingDebounce = 1 * time.Second

// TypingEmitter turns a stream of local edit actions into at most one
// user_typing signal per burst. A burst ends after the debounce window passes
// without input.
type TypingEmitter struct {
	clock    clock.Clock
	debounce time.Duration
	emit     func() bool

	mu     sync.Mutex
	active bool
	timer  clock.Timer
	closed bool
}

// NewTypingEmitter calls emit at the start of each burst. emit reports
// whether the signal was delivered; an undelivered signal does not open a
// burst so the next keystroke retries.
func NewTypingEmitter(clk clock.Clock, debounce time.Duration, emit func() bool) *TypingEmitter {
	if debounce <= 0 {
		debounce = DefaultTypingDebounce
	}
	return &TypingEmitter{clock: clk, debounce: debounce, emit: emit}
}

// Keystroke records local input.
func (te *TypingEmitter) Keystroke() {
	te.mu.Lock()
	if te.closed {
		te.mu.Unlock()
		return
	}
	if te.timer != nil {
		te.timer.Stop()
	}
	te.timer = te.clock.AfterFunc(te.debounce, te.endBurst)
	if te.active {
		te.mu.Unlock()
		return
	}
	te.active = true
	te.mu.Unlock()

	if !te.emit() {
		te.mu.Lock()
		te.active = false
		te.mu.Unlock()
	}
}

// Reset ends the current burst immediately, e.g. after a comment is sent.
func (te *TypingEmitter) Reset() {
	te.mu.Lock()
	defer te.mu.Unlock()
	if te.timer != nil {
		te.timer.Stop()
		te.timer = nil
	}
	te.active = false
}

// Active reports whether a burst is in progress.
func (te *TypingEmitter) Active() bool {
	te.mu.Lock()
	defer te.mu.Unlock()
	return te.active
}

// Close cancels the pending timer; later keystrokes are ignored.
func (te *TypingEmitter) Close() {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.closed = true
	if te.timer != nil {
		te.timer.Stop()
		te.timer = nil
	}
	te.active = false
}

func (te *TypingEmitter) endBurst() {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.active = false
	te.timer = nil
}

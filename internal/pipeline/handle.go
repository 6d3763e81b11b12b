package pipeline

import (
	"sync"

	"radar-dsp-core/pkg/sample"
)

// Handle is the caller's view of one in-flight (or finished) pipeline
// instance. All fields are mutex-protected since the finalisation
// callback and any reader (a test, or the demo driver waiting to log
// a summary) run on different goroutines.
type Handle struct {
	mu    sync.RWMutex
	state State
	err   error
	out   sample.DecimatedBlock

	done chan struct{}
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Wait blocks until the instance reaches Done or Failed.
func (h *Handle) Wait() {
	<-h.done
}

// State reports the instance's current lifecycle state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Err returns the failure cause, or nil if the instance completed
// successfully (or has not finished yet).
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Output returns the final decimated block. Only meaningful once State()
// is StateDone.
func (h *Handle) Output() sample.DecimatedBlock {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.out
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = s
}

func (h *Handle) finish(out sample.DecimatedBlock) {
	h.mu.Lock()
	h.state = StateDone
	h.out = out
	h.mu.Unlock()
	close(h.done)
}

func (h *Handle) fail(err error) {
	h.mu.Lock()
	h.state = StateFailed
	h.err = err
	h.mu.Unlock()
	close(h.done)
}

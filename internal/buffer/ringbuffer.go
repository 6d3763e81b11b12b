// Package buffer models the two buffer-ownership concerns the spec
// assigns to C2: leasing a slot out of the shared-memory ring buffer
// the transmit driver writes raw samples into, and allocating the
// per-instance device buffers a sequence needs while it runs.
//
// The driver and the ring buffer's own storage are external
// collaborators this module does not implement (see the core's
// Non-goals); RingBuffer here is the host-side view the orchestrator
// needs: name a slot, lease it, release it. The lease/release shape is
// adapted from the ogdar teacher's buffer.SampleBuff/ScanlineBuff ring
// allocator, generalised from a fixed-capacity array of samples to a
// named-slot map so a test driver can publish one slot per sequence.
package buffer

import (
	"fmt"
	"sync"

	"radar-dsp-core/pkg/sample"
)

// ErrSlotMissing is returned when a lease names a slot the ring buffer
// has no record of — the S6 failure scenario.
var ErrSlotMissing = fmt.Errorf("buffer: shared-memory slot not found")

// ErrSlotAlreadyLeased is returned when a slot is leased a second time
// before the first lease is released.
var ErrSlotAlreadyLeased = fmt.Errorf("buffer: slot already leased")

// RingBuffer is the host-side handle to named shared-memory slots. Each
// slot holds one sequence's raw antenna-major sample block.
type RingBuffer struct {
	mu     sync.Mutex
	slots  map[string]sample.AntennaBlock
	leased map[string]bool
}

// NewRingBuffer returns an empty ring buffer.
func NewRingBuffer() *RingBuffer {
	return &RingBuffer{
		slots:  make(map[string]sample.AntennaBlock),
		leased: make(map[string]bool),
	}
}

// Publish makes a slot's contents available for leasing. In production
// this is the transmit driver's job; tests and the demo driver call it
// directly to stand in for that collaborator.
func (r *RingBuffer) Publish(name string, block sample.AntennaBlock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[name] = block
}

// Lease opens a slot for the duration of a sequence. The slot is owned
// by the caller until Release is called on the returned Slot; a second
// Lease of the same name before that returns ErrSlotAlreadyLeased.
func (r *RingBuffer) Lease(name string) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok := r.slots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSlotMissing, name)
	}
	if r.leased[name] {
		return nil, fmt.Errorf("%w: %q", ErrSlotAlreadyLeased, name)
	}
	r.leased[name] = true
	return &Slot{name: name, ring: r, data: data}, nil
}

func (r *RingBuffer) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.leased, name)
}

// Slot is a lease on one named ring-buffer slot. The driver must not
// reuse the underlying storage until Release is called. The pipeline
// orchestrator calls Release at teardown: on the success path that is
// after the ack and the timing message have been sent; on a failure
// path it can be before any ack (e.g. when buffer allocation fails).
type Slot struct {
	name     string
	ring     *RingBuffer
	data     sample.AntennaBlock
	mu       sync.Mutex
	released bool
}

// Data returns the leased antenna-major sample block.
func (s *Slot) Data() sample.AntennaBlock { return s.data }

// Release returns the slot to the ring buffer. It is idempotent: the
// finalisation callback and any failure-path teardown may both call it
// without double-releasing.
func (s *Slot) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	s.ring.release(s.name)
}

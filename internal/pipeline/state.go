// Package pipeline implements the C5 per-sequence orchestrator: the
// state machine, timing markers, and callback handoff that ties the
// ring-buffer slot lease (C2/buffer), the decimation kernels (C3/decim),
// and the outbound ack/timing messages (C6/wire) together for one pulse
// sequence.
package pipeline

// State is one stage of a pipeline instance's lifecycle.
type State int

const (
	StateInit State = iota
	StateCopying
	StateCopyAcked
	StateStage1
	StateStage2
	StateStage3
	StateDraining
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateCopying:
		return "Copying"
	case StateCopyAcked:
		return "CopyAcked"
	case StateStage1:
		return "Stage1"
	case StateStage2:
		return "Stage2"
	case StateStage3:
		return "Stage3"
	case StateDraining:
		return "Draining"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

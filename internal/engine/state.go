package engine

import "fmt"

// State is the lifecycle state of an Engine.
type State int32

const (
	StateUninitialized State = iota
	StateBaselineBuilt
	StateIndexed
	StateReady
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBaselineBuilt:
		return "baseline-built"
	case StateIndexed:
		return "indexed"
	case StateReady:
		return "ready"
	case StateRebuilding:
		return "rebuilding"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

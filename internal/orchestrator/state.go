package orchestrator

import "fmt"

// State is the orchestrator's current phase.
type State string

// States.
const (
	StateIdle        State = "idle"
	StatePrebuilding State = "prebuilding"
	StatePackaging   State = "packaging"
	StateBuildOnly   State = "build_only"
	StateRunning     State = "running"
	StateRestarting  State = "restarting"
	StateExited      State = "exited"
)

// ChildExitError reports that the application exited on its own with a
// non-zero status.
type ChildExitError struct {
	Pid  int
	Code int
}

// Error implements the error interface.
func (e *ChildExitError) Error() string {
	return fmt.Sprintf("main process %d exited with code %d", e.Pid, e.Code)
}

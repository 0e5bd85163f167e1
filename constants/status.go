package constants

// TaskState is the canonical lifecycle state for extraction tasks.
type TaskState string

// Stable values (returned verbatim in status snapshots).
const (
	TaskPending  TaskState = "PENDING"  // accepted, not yet picked up by a worker
	TaskProgress TaskState = "PROGRESS" // running, see progress step/percent
	TaskSuccess  TaskState = "SUCCESS"  // terminal, result available
	TaskFailure  TaskState = "FAILURE"  // terminal, error available
	TaskRevoked  TaskState = "REVOKED"  // terminal, cancelled before completion
)

// Terminal reports whether a task in this state can still change state.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskSuccess, TaskFailure, TaskRevoked:
		return true
	}
	return false
}

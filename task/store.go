package task

import "context"

// Store is the narrow persistence interface the runner consumes. The
// durable record lives in an external store (see the storage package); the
// runner only ever creates a record when a run is accepted and completes
// it once, at terminal state. Injected via the Runner constructor, never
// looked up through ambient globals.
type Store interface {
	// CreateTask durably records an accepted run and returns its task ID.
	// Called before the first subtask executes so a crash mid-run leaves
	// a discoverable orphaned record.
	CreateTask(ctx context.Context, info TaskInfo) (string, error)

	// CompleteTask records the finalized Results for a task. Called
	// exactly once per run, after the state machine reaches a terminal
	// state.
	CompleteTask(ctx context.Context, taskID string, results Results) error
}

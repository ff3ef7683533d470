package plan

import (
	"fmt"
	"strings"
)

// IntegrityError reports why Finalize rejected a plan's task graph.
// Either a dependency references a task that does not exist, or the
// graph contains a cycle. The plan remains in Draft.
type IntegrityError struct {
	PlanID  string
	Missing []string // dependency IDs that match no task
	Cycle   []string // task IDs forming a cycle, in order
}

func (e *IntegrityError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("plan %s: dependency cycle: %s", e.PlanID, strings.Join(e.Cycle, " -> "))
	}
	return fmt.Sprintf("plan %s: unknown dependencies: %s", e.PlanID, strings.Join(e.Missing, ", "))
}

// BlockedByDependencyError is returned when a task cannot enter InProgress
// because one or more dependencies are not completed or skipped.
type BlockedByDependencyError struct {
	TaskID string
	Unmet  []string
}

func (e *BlockedByDependencyError) Error() string {
	return fmt.Sprintf("plan: task %s blocked by dependencies: %s", e.TaskID, strings.Join(e.Unmet, ", "))
}

// TransitionError is returned when an operation is not valid in the
// plan's or task's current state.
type TransitionError struct {
	ID    string
	From  string
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("plan: %s cannot %s from %s", e.ID, e.Event, e.From)
}

// ErrTaskNotFound is returned when a task ID matches no task in the plan.
type ErrTaskNotFound struct {
	TaskID string
}

func (e *ErrTaskNotFound) Error() string {
	return fmt.Sprintf("plan: task not found: %s", e.TaskID)
}

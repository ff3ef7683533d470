package plan

// TaskType classifies the kind of work a task represents.
type TaskType string

const (
	TaskResearch      TaskType = "research"
	TaskEdit          TaskType = "edit"
	TaskCreate        TaskType = "create"
	TaskDelete        TaskType = "delete"
	TaskTest          TaskType = "test"
	TaskRefactor      TaskType = "refactor"
	TaskDocumentation TaskType = "documentation"
	TaskConfiguration TaskType = "configuration"
	TaskBuild         TaskType = "build"
	TaskOther         TaskType = "other"
)

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	switch t {
	case TaskResearch, TaskEdit, TaskCreate, TaskDelete, TaskTest,
		TaskRefactor, TaskDocumentation, TaskConfiguration, TaskBuild, TaskOther:
		return true
	}
	return false
}

// TaskStatus is the execution state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskSkipped    TaskStatus = "skipped"
	TaskFailed     TaskStatus = "failed"
	TaskBlocked    TaskStatus = "blocked"
)

// Terminal reports whether the status is final. Blocked is not terminal;
// a blocked task may start once its dependencies finish.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskSkipped, TaskFailed:
		return true
	}
	return false
}

// Task is a single unit of work in a plan. Dependencies reference other
// task IDs in the same plan; Complexity is a 1-5 estimate.
type Task struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Type         TaskType   `json:"type"`
	Dependencies []string   `json:"dependencies,omitempty"`
	Complexity   int        `json:"complexity"`
	Status       TaskStatus `json:"status"`
}

// unmetDependencies returns the dependency IDs that are not yet completed
// or skipped according to the given status lookup.
func (t Task) unmetDependencies(status map[string]TaskStatus) []string {
	var unmet []string
	for _, dep := range t.Dependencies {
		switch status[dep] {
		case TaskCompleted, TaskSkipped:
		default:
			unmet = append(unmet, dep)
		}
	}
	return unmet
}

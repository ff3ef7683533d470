// Package plan maintains multi-step task plans as explicit state machines.
//
// A plan moves Draft -> PendingApproval -> Approved -> InProgress ->
// Completed, with PendingApproval able to fall back to Draft (request
// changes) or end in Rejected. Finalize checks the task dependency graph:
// every referenced dependency must exist and the graph must be acyclic.
// While a plan is in progress, a task may start only when all of its
// dependencies are completed or skipped.
//
// All transitions on a plan are serialized by an internal mutex; accessors
// return copies.
package plan

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a plan.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusInProgress      Status = "in_progress"
	StatusCompleted       Status = "completed"
	StatusRejected        Status = "rejected"
)

// Plan is a directed task graph with an approval lifecycle.
type Plan struct {
	mu sync.Mutex

	id        string
	title     string
	status    Status
	tasks     []Task
	index     map[string]int // task ID -> position in tasks
	order     []string       // topological execution order, set by Finalize
	createdAt time.Time
}

// New creates an empty plan in Draft.
func New(title string) *Plan {
	return &Plan{
		id:        "plan-" + uuid.NewString(),
		title:     title,
		status:    StatusDraft,
		index:     make(map[string]int),
		createdAt: time.Now(),
	}
}

// ID returns the plan's unique ID.
func (p *Plan) ID() string {
	return p.id
}

// Title returns the plan's title.
func (p *Plan) Title() string {
	return p.title
}

// Status returns the plan's current lifecycle state.
func (p *Plan) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Tasks returns a copy of the plan's tasks in insertion order.
func (p *Plan) Tasks() []Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	tasks := make([]Task, len(p.tasks))
	copy(tasks, p.tasks)
	return tasks
}

// Task returns a copy of the task with the given ID.
func (p *Plan) Task(id string) (Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i, ok := p.index[id]
	if !ok {
		return Task{}, &ErrTaskNotFound{TaskID: id}
	}
	return p.tasks[i], nil
}

// Order returns the topological execution order computed by Finalize.
// It is empty until the plan has been finalized.
func (p *Plan) Order() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	order := make([]string, len(p.order))
	copy(order, p.order)
	return order
}

// AddTask appends a task to a Draft plan. The task starts Pending; its ID
// is generated when empty. Dependencies are checked at Finalize, not here,
// so tasks may be added in any order.
func (p *Plan) AddTask(t Task) (Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusDraft {
		return Task{}, &TransitionError{ID: p.id, From: string(p.status), Event: "add task"}
	}
	if !t.Type.Valid() {
		return Task{}, fmt.Errorf("plan: invalid task type %q", t.Type)
	}
	if t.Complexity < 1 || t.Complexity > 5 {
		return Task{}, fmt.Errorf("plan: complexity %d out of range [1,5]", t.Complexity)
	}
	if t.ID == "" {
		t.ID = "task-" + uuid.NewString()
	}
	if _, exists := p.index[t.ID]; exists {
		return Task{}, fmt.Errorf("plan: duplicate task id %q", t.ID)
	}

	t.Status = TaskPending
	p.index[t.ID] = len(p.tasks)
	p.tasks = append(p.tasks, t)
	return t, nil
}

// Finalize validates the task graph and moves the plan from Draft to
// PendingApproval. Every dependency must reference an existing task and
// the graph must be acyclic; otherwise an *IntegrityError describing the
// missing references or the offending cycle is returned and the plan
// stays in Draft, unchanged.
func (p *Plan) Finalize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusDraft {
		return &TransitionError{ID: p.id, From: string(p.status), Event: "finalize"}
	}

	var missing []string
	for _, t := range p.tasks {
		for _, dep := range t.Dependencies {
			if _, ok := p.index[dep]; !ok {
				missing = append(missing, dep)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &IntegrityError{PlanID: p.id, Missing: missing}
	}

	order, cycle := p.topoSort()
	if cycle != nil {
		return &IntegrityError{PlanID: p.id, Cycle: cycle}
	}

	p.order = order
	p.status = StatusPendingApproval
	return nil
}

// topoSort returns a dependency-respecting execution order, or the task
// IDs forming a cycle if one exists. Depth-first so the cycle can be
// reported in path order.
func (p *Plan) topoSort() (order []string, cycle []string) {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // done
	)
	color := make(map[string]int, len(p.tasks))
	var path []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		path = append(path, id)

		for _, dep := range p.tasks[p.index[id]].Dependencies {
			switch color[dep] {
			case gray:
				// Found a back edge; slice the cycle out of the path.
				for i, v := range path {
					if v == dep {
						return append(path[i:len(path):len(path)], dep)
					}
				}
			case white:
				if c := visit(dep); c != nil {
					return c
				}
			}
		}

		path = path[:len(path)-1]
		color[id] = black
		order = append(order, id)
		return nil
	}

	for _, t := range p.tasks {
		if color[t.ID] == white {
			if c := visit(t.ID); c != nil {
				return nil, c
			}
		}
	}
	return order, nil
}

// Approve moves the plan from PendingApproval to Approved.
func (p *Plan) Approve() error {
	return p.transition(StatusPendingApproval, StatusApproved, "approve")
}

// Reject moves the plan from PendingApproval to Rejected.
func (p *Plan) Reject() error {
	return p.transition(StatusPendingApproval, StatusRejected, "reject")
}

// RequestChanges moves the plan from PendingApproval back to Draft so
// tasks can be edited and the plan re-finalized.
func (p *Plan) RequestChanges() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusPendingApproval {
		return &TransitionError{ID: p.id, From: string(p.status), Event: "request changes"}
	}
	p.status = StatusDraft
	p.order = nil
	return nil
}

// Start moves the plan from Approved to InProgress.
func (p *Plan) Start() error {
	return p.transition(StatusApproved, StatusInProgress, "start")
}

func (p *Plan) transition(from, to Status, event string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != from {
		return &TransitionError{ID: p.id, From: string(p.status), Event: event}
	}
	p.status = to
	return nil
}

// StartTask moves a task to InProgress. The plan must be InProgress and
// every dependency of the task completed or skipped; otherwise the task
// is marked Blocked and a *BlockedByDependencyError is returned. A
// blocked task may be started again once its dependencies finish.
func (p *Plan) StartTask(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusInProgress {
		return &TransitionError{ID: p.id, From: string(p.status), Event: "start task"}
	}
	i, ok := p.index[id]
	if !ok {
		return &ErrTaskNotFound{TaskID: id}
	}
	t := &p.tasks[i]
	if t.Status != TaskPending && t.Status != TaskBlocked {
		return &TransitionError{ID: id, From: string(t.Status), Event: "start"}
	}

	if unmet := t.unmetDependencies(p.statusByID()); len(unmet) > 0 {
		t.Status = TaskBlocked
		return &BlockedByDependencyError{TaskID: id, Unmet: unmet}
	}

	t.Status = TaskInProgress
	return nil
}

// CompleteTask marks an in-progress task Completed.
func (p *Plan) CompleteTask(id string) error {
	return p.finishTask(id, TaskCompleted, "complete")
}

// FailTask marks an in-progress task Failed.
func (p *Plan) FailTask(id string) error {
	return p.finishTask(id, TaskFailed, "fail")
}

// SkipTask marks a pending or blocked task Skipped, releasing its
// dependents.
func (p *Plan) SkipTask(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusInProgress {
		return &TransitionError{ID: p.id, From: string(p.status), Event: "skip task"}
	}
	i, ok := p.index[id]
	if !ok {
		return &ErrTaskNotFound{TaskID: id}
	}
	t := &p.tasks[i]
	if t.Status != TaskPending && t.Status != TaskBlocked {
		return &TransitionError{ID: id, From: string(t.Status), Event: "skip"}
	}

	t.Status = TaskSkipped
	p.completeIfDone()
	return nil
}

func (p *Plan) finishTask(id string, to TaskStatus, event string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusInProgress {
		return &TransitionError{ID: p.id, From: string(p.status), Event: event + " task"}
	}
	i, ok := p.index[id]
	if !ok {
		return &ErrTaskNotFound{TaskID: id}
	}
	t := &p.tasks[i]
	if t.Status != TaskInProgress {
		return &TransitionError{ID: id, From: string(t.Status), Event: event}
	}

	t.Status = to
	p.completeIfDone()
	return nil
}

// completeIfDone moves the plan to Completed once every task is terminal.
func (p *Plan) completeIfDone() {
	for _, t := range p.tasks {
		if !t.Status.Terminal() {
			return
		}
	}
	p.status = StatusCompleted
}

// Snapshot is the serializable form of a plan, used by session stores.
type Snapshot struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	Tasks     []Task    `json:"tasks,omitempty"`
	Order     []string  `json:"order,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot returns a copy of the plan's full state.
func (p *Plan) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Snapshot{
		ID:        p.id,
		Title:     p.title,
		Status:    p.status,
		Tasks:     make([]Task, len(p.tasks)),
		Order:     make([]string, len(p.order)),
		CreatedAt: p.createdAt,
	}
	copy(s.Tasks, p.tasks)
	copy(s.Order, p.order)
	return s
}

// FromSnapshot reconstructs a plan from its serialized state.
func FromSnapshot(s Snapshot) *Plan {
	p := &Plan{
		id:        s.ID,
		title:     s.Title,
		status:    s.Status,
		tasks:     make([]Task, len(s.Tasks)),
		order:     make([]string, len(s.Order)),
		index:     make(map[string]int, len(s.Tasks)),
		createdAt: s.CreatedAt,
	}
	copy(p.tasks, s.Tasks)
	copy(p.order, s.Order)
	for i, t := range p.tasks {
		p.index[t.ID] = i
	}
	return p
}

func (p *Plan) statusByID() map[string]TaskStatus {
	status := make(map[string]TaskStatus, len(p.tasks))
	for _, t := range p.tasks {
		status[t.ID] = t.Status
	}
	return status
}

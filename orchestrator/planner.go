package orchestrator

import (
	"context"

	"github.com/adolfousier/opencrab/event"
	"github.com/adolfousier/opencrab/plan"
	"github.com/adolfousier/opencrab/session"
)

// Planner applies plan transitions for a session: every mutation loads the
// saved plan, applies the transition, persists the new snapshot, and emits
// status events. Failed transitions leave the saved plan untouched.
type Planner struct {
	store  session.Store
	events chan<- event.Event
}

// NewPlanner creates a planner backed by the given store. The events
// channel may be nil when no consumer is interested in status changes.
func NewPlanner(store session.Store, events chan<- event.Event) *Planner {
	return &Planner{store: store, events: events}
}

// Propose builds a plan from the given tasks, finalizes it, and saves it
// as the session's active plan in PendingApproval state. A dependency
// cycle or dangling reference fails finalization and nothing is saved.
func (p *Planner) Propose(ctx context.Context, sessionID, title string, tasks []plan.Task) (plan.Snapshot, error) {
	pl := plan.New(title)
	for _, t := range tasks {
		if _, err := pl.AddTask(t); err != nil {
			return plan.Snapshot{}, err
		}
	}
	if err := pl.Finalize(); err != nil {
		return plan.Snapshot{}, err
	}

	snap := pl.Snapshot()
	if err := p.store.SavePlan(ctx, sessionID, snap); err != nil {
		return plan.Snapshot{}, err
	}
	p.emitPlan(snap)
	return snap, nil
}

// Approve moves the session's pending plan to Approved.
func (p *Planner) Approve(ctx context.Context, sessionID string) error {
	return p.transition(ctx, sessionID, (*plan.Plan).Approve)
}

// Reject moves the session's pending plan to Rejected.
func (p *Planner) Reject(ctx context.Context, sessionID string) error {
	return p.transition(ctx, sessionID, (*plan.Plan).Reject)
}

// RequestChanges sends the session's pending plan back to Draft.
func (p *Planner) RequestChanges(ctx context.Context, sessionID string) error {
	return p.transition(ctx, sessionID, (*plan.Plan).RequestChanges)
}

// Start moves the session's approved plan to InProgress.
func (p *Planner) Start(ctx context.Context, sessionID string) error {
	return p.transition(ctx, sessionID, (*plan.Plan).Start)
}

// StartTask starts a task, refusing while a dependency is unfinished.
func (p *Planner) StartTask(ctx context.Context, sessionID, taskID string) error {
	return p.transitionTask(ctx, sessionID, taskID, (*plan.Plan).StartTask)
}

// CompleteTask marks a task completed. Completing the last open task
// completes the plan.
func (p *Planner) CompleteTask(ctx context.Context, sessionID, taskID string) error {
	return p.transitionTask(ctx, sessionID, taskID, (*plan.Plan).CompleteTask)
}

// FailTask marks a task failed.
func (p *Planner) FailTask(ctx context.Context, sessionID, taskID string) error {
	return p.transitionTask(ctx, sessionID, taskID, (*plan.Plan).FailTask)
}

// SkipTask marks a task skipped, unblocking its dependents.
func (p *Planner) SkipTask(ctx context.Context, sessionID, taskID string) error {
	return p.transitionTask(ctx, sessionID, taskID, (*plan.Plan).SkipTask)
}

// Plan returns the session's saved plan.
func (p *Planner) Plan(ctx context.Context, sessionID string) (plan.Snapshot, error) {
	return p.store.LoadPlan(ctx, sessionID)
}

func (p *Planner) transition(ctx context.Context, sessionID string, apply func(*plan.Plan) error) error {
	pl, err := p.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := apply(pl); err != nil {
		return err
	}
	return p.save(ctx, sessionID, pl)
}

func (p *Planner) transitionTask(ctx context.Context, sessionID, taskID string, apply func(*plan.Plan, string) error) error {
	pl, err := p.load(ctx, sessionID)
	if err != nil {
		return err
	}
	before := pl.Status()
	if err := apply(pl, taskID); err != nil {
		return err
	}

	snap := pl.Snapshot()
	if err := p.store.SavePlan(ctx, sessionID, snap); err != nil {
		return err
	}

	for _, t := range snap.Tasks {
		if t.ID == taskID {
			event.Emit(p.events, event.Event{
				Type:       event.TaskStatusChanged,
				PlanID:     snap.ID,
				TaskID:     t.ID,
				TaskStatus: string(t.Status),
			})
			break
		}
	}
	if snap.Status != before {
		p.emitPlan(snap)
	}
	return nil
}

func (p *Planner) load(ctx context.Context, sessionID string) (*plan.Plan, error) {
	snap, err := p.store.LoadPlan(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return plan.FromSnapshot(snap), nil
}

func (p *Planner) save(ctx context.Context, sessionID string, pl *plan.Plan) error {
	snap := pl.Snapshot()
	if err := p.store.SavePlan(ctx, sessionID, snap); err != nil {
		return err
	}
	p.emitPlan(snap)
	return nil
}

func (p *Planner) emitPlan(snap plan.Snapshot) {
	event.Emit(p.events, event.Event{
		Type:       event.PlanStatusChanged,
		PlanID:     snap.ID,
		PlanStatus: string(snap.Status),
	})
}

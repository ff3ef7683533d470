// Package session persists conversations, plans, and cost accounting.
//
// A Store keeps each session's state under disjoint keys, so independent
// sessions may be read and written concurrently. Message appends are
// all-or-nothing: a failed or cancelled append never leaves a partial
// message in the conversation.
package session

import (
	"context"
	"errors"
	"time"

	ai "github.com/adolfousier/opencrab"
	"github.com/adolfousier/opencrab/plan"
)

// Cost accumulates token usage and its monetary estimate for a session.
type Cost struct {
	Usage ai.Usage `json:"usage"`
	USD   float64  `json:"usd"`
}

// Session is the durable identity of one conversation.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ActivePlanID string    `json:"active_plan_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Sentinel errors returned by stores.
var (
	// ErrSessionNotFound is returned for operations on unknown sessions.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrNoPlan is returned by LoadPlan when the session has no saved plan.
	ErrNoPlan = errors.New("session: no plan saved")
)

// Store is the persistence boundary for sessions.
//
// Implementations must keep per-session state under disjoint keys and be
// safe for concurrent use across sessions. Within one session, Append
// preserves call order and is atomic per call.
type Store interface {
	// CreateSession creates a new session with the given title.
	CreateSession(ctx context.Context, title string) (Session, error)

	// GetSession returns the session with the given ID.
	GetSession(ctx context.Context, id string) (Session, error)

	// Sessions lists all sessions, newest first.
	Sessions(ctx context.Context) ([]Session, error)

	// DeleteSession removes a session and all its state. Sessions are
	// only ever deleted explicitly.
	DeleteSession(ctx context.Context, id string) error

	// Append adds messages to the session's conversation. All messages
	// are appended or none are.
	Append(ctx context.Context, sessionID string, msgs ...ai.Message) error

	// Conversation returns the session's messages in append order.
	Conversation(ctx context.Context, sessionID string) ([]ai.Message, error)

	// SavePlan stores the session's plan and marks it active.
	SavePlan(ctx context.Context, sessionID string, snap plan.Snapshot) error

	// LoadPlan returns the session's saved plan, or ErrNoPlan.
	LoadPlan(ctx context.Context, sessionID string) (plan.Snapshot, error)

	// AddCost adds usage and its monetary estimate to the session's
	// cost accumulator.
	AddCost(ctx context.Context, sessionID string, usage ai.Usage, usd float64) error

	// Cost returns the session's accumulated cost.
	Cost(ctx context.Context, sessionID string) (Cost, error)
}

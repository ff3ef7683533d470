package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	ai "github.com/adolfousier/opencrab"
	"github.com/adolfousier/opencrab/approval"
	"github.com/adolfousier/opencrab/event"
	"github.com/adolfousier/opencrab/pricing"
	"github.com/adolfousier/opencrab/session"
	"github.com/adolfousier/opencrab/tool"
)

// DefaultMaxIterations bounds the number of tool-call rounds in one turn.
const DefaultMaxIterations = 10

// Orchestrator runs conversation turns against a chat provider, mediating
// every tool call through the registry and the approval gate.
type Orchestrator struct {
	provider      ai.ChatProvider
	registry      *tool.Registry
	gate          *approval.Gate
	store         session.Store
	maxIterations int
	chatOpts      []ai.Option
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxIterations sets the tool-call round bound per turn.
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		o.maxIterations = n
	}
}

// WithChatOptions sets options applied to every provider request, such as
// the model, system prompt, or temperature.
func WithChatOptions(opts ...ai.Option) Option {
	return func(o *Orchestrator) {
		o.chatOpts = append(o.chatOpts, opts...)
	}
}

// New creates an orchestrator. The provider is typically a gateway.Gateway
// but any ChatProvider serves.
func New(provider ai.ChatProvider, registry *tool.Registry, gate *approval.Gate, store session.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:      provider,
		registry:      registry,
		gate:          gate,
		store:         store,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Gate returns the approval gate so callers can resolve pending requests.
func (o *Orchestrator) Gate() *approval.Gate {
	return o.gate
}

// Turn processes one user message. The user message is appended to the
// session before Turn returns; everything else happens asynchronously and
// is reported on the returned channel, which closes when the turn ends.
//
// Cancelling ctx aborts the stream, denies pending approvals, and leaves
// the conversation at the last fully persisted message.
func (o *Orchestrator) Turn(ctx context.Context, sessionID, userInput string) (<-chan event.Event, error) {
	history, err := o.store.Conversation(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	userMsg := ai.NewUserMessage(userInput)
	if err := o.store.Append(ctx, sessionID, userMsg); err != nil {
		return nil, err
	}
	history = append(history, userMsg)

	events := event.NewChannel()
	go o.runTurn(ctx, sessionID, history, events)
	return events, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, sessionID string, history []ai.Message, events chan<- event.Event) {
	defer close(events)

	event.Emit(events, event.Event{Type: event.TurnStart})

	for iteration := 1; ; iteration++ {
		if ctx.Err() != nil {
			event.Emit(events, event.Event{Type: event.TurnError, Iteration: iteration, Error: ctx.Err()})
			return
		}
		if iteration > o.maxIterations {
			event.Emit(events, event.Event{Type: event.TurnError, Iteration: iteration, Error: ErrIterationLimit})
			return
		}

		o.gate.ExpireOverdue(time.Now())

		step, err := o.step(ctx, history, iteration, events)
		if err != nil {
			event.Emit(events, event.Event{Type: event.TurnError, Iteration: iteration, Error: err})
			return
		}

		assistantMsg := ai.Message{
			ID:        step.messageID,
			Role:      ai.RoleAssistant,
			Content:   step.response.Content,
			ToolCalls: step.response.ToolCalls,
			Timestamp: time.Now(),
		}
		if err := o.store.Append(ctx, sessionID, assistantMsg); err != nil {
			event.Emit(events, event.Event{Type: event.TurnError, Iteration: iteration, Error: err})
			return
		}
		history = append(history, assistantMsg)

		o.recordCost(ctx, sessionID, step.response, events)

		if len(step.response.ToolCalls) == 0 {
			event.Emit(events, event.Event{
				Type:      event.TurnEnd,
				Iteration: iteration,
				Response:  step.response,
			})
			return
		}

		toolMsg := ai.NewToolResultMessage(step.results...)
		if err := o.store.Append(ctx, sessionID, toolMsg); err != nil {
			event.Emit(events, event.Event{Type: event.TurnError, Iteration: iteration, Error: err})
			return
		}
		history = append(history, toolMsg)
	}
}

// stepResult is the outcome of one provider round trip.
type stepResult struct {
	messageID string
	response  *ai.Response
	// results holds one entry per tool call, in call arrival order.
	results []ai.ToolResult
}

// step streams one assistant message, forwarding text deltas and processing
// tool calls as their arguments complete. Each dangerous call suspends only
// itself while awaiting approval; other calls proceed.
func (o *Orchestrator) step(ctx context.Context, history []ai.Message, iteration int, events chan<- event.Event) (*stepResult, error) {
	opts := append([]ai.Option{ai.WithTools(o.registry.Tools())}, o.chatOpts...)

	stream, err := o.provider.ChatStream(ctx, history, opts...)
	if err != nil {
		return nil, err
	}

	messageID := ai.GenerateMessageID()
	started := false
	start := func() {
		if !started {
			started = true
			event.Emit(events, event.Event{
				Type:      event.MessageStart,
				MessageID: messageID,
				Iteration: iteration,
			})
		}
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []ai.ToolResult
	)
	var response *ai.Response
	var streamErr error

	for ev := range stream {
		switch ev.Kind {
		case ai.StreamTextDelta:
			start()
			event.Emit(events, event.Event{
				Type:      event.MessageDelta,
				MessageID: messageID,
				Iteration: iteration,
				Delta:     ev.Delta,
			})

		case ai.StreamToolCallEnd:
			if ev.ToolCall == nil {
				continue
			}
			start()
			call := *ev.ToolCall
			mu.Lock()
			idx := len(results)
			results = append(results, ai.ToolResult{})
			mu.Unlock()

			wg.Add(1)
			go func() {
				defer wg.Done()
				res := o.processCall(ctx, call, iteration, events)
				mu.Lock()
				results[idx] = res
				mu.Unlock()
			}()

		case ai.StreamError:
			streamErr = ev.Err

		case ai.StreamDone:
			response = ev.Response
		}
	}

	wg.Wait()

	if streamErr != nil {
		return nil, streamErr
	}
	if response == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("stream ended without a response")
	}

	start()
	event.Emit(events, event.Event{
		Type:      event.MessageEnd,
		MessageID: messageID,
		Iteration: iteration,
		Response:  response,
	})

	return &stepResult{messageID: messageID, response: response, results: results}, nil
}

// processCall takes one completed tool call through resolution, approval,
// and execution, returning the result to feed back to the model.
func (o *Orchestrator) processCall(ctx context.Context, call ai.ToolCall, iteration int, events chan<- event.Event) ai.ToolResult {
	event.Emit(events, event.Event{
		Type:      event.ToolCallRequested,
		Iteration: iteration,
		ToolCall:  &call,
	})

	reg, err := o.registry.Resolve(call.Name)
	if err != nil {
		res := ai.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
		event.Emit(events, event.Event{
			Type:       event.ToolResult,
			Iteration:  iteration,
			ToolCall:   &call,
			ToolResult: &res,
		})
		return res
	}

	if reg.Tool.Dangerous() {
		req := o.gate.Submit(call, reg.Tool)
		event.Emit(events, event.Event{
			Type:       event.ApprovalRequested,
			Iteration:  iteration,
			ToolCall:   &call,
			ApprovalID: req.ID,
		})

		resolved, err := o.gate.Wait(ctx, req.ID)
		if err != nil {
			resolved.Decision = approval.DecisionDenied
			resolved.Reason = err.Error()
		}
		event.Emit(events, event.Event{
			Type:       event.ApprovalResolved,
			Iteration:  iteration,
			ToolCall:   &call,
			ApprovalID: req.ID,
			Decision:   string(resolved.Decision),
			Message:    resolved.Reason,
		})

		if resolved.Decision != approval.DecisionApproved {
			res := refusalResult(call, resolved)
			event.Emit(events, event.Event{
				Type:       event.ToolResult,
				Iteration:  iteration,
				ToolCall:   &call,
				ToolResult: &res,
			})
			return res
		}
	}

	event.Emit(events, event.Event{
		Type:      event.ToolInvoked,
		Iteration: iteration,
		ToolCall:  &call,
	})

	result, elapsed, err := o.registry.Invoke(ctx, call)
	if err != nil {
		result = ai.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}
	event.Emit(events, event.Event{
		Type:       event.ToolResult,
		Iteration:  iteration,
		ToolCall:   &call,
		ToolResult: &result,
		Elapsed:    elapsed,
	})
	return result
}

// refusalResult builds the tool result returned to the model when a call is
// denied or times out. The model sees the refusal and continues the turn.
func refusalResult(call ai.ToolCall, req approval.Request) ai.ToolResult {
	var content string
	switch req.Decision {
	case approval.DecisionTimedOut:
		content = fmt.Sprintf("tool call %s was not approved before the deadline", call.Name)
	default:
		content = fmt.Sprintf("tool call %s was denied", call.Name)
		if req.Reason != "" {
			content += ": " + req.Reason
		}
	}
	return ai.ToolResult{ToolCallID: call.ID, Content: content, IsError: true}
}

// recordCost feeds a response's usage into the session cost accumulator.
// The response's model takes priority when pricing: the gateway stamps it
// with the effective model even when that came from a provider default
// rather than a chat option.
func (o *Orchestrator) recordCost(ctx context.Context, sessionID string, resp *ai.Response, events chan<- event.Event) {
	usage := resp.Usage
	if usage == (ai.Usage{}) {
		return
	}
	model := resp.Model
	if model == "" {
		model = ai.ApplyOptions(o.chatOpts...).Model
	}
	usd := pricing.Lookup(model).Cost(usage)
	if err := o.store.AddCost(ctx, sessionID, usage, usd); err != nil {
		event.Emit(events, event.Event{Type: event.CostError, Usage: &usage, Error: err})
		return
	}
	event.Emit(events, event.Event{Type: event.UsageUpdated, Usage: &usage})
}

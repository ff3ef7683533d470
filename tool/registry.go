package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	ai "github.com/adolfousier/opencrab"
	"github.com/adolfousier/opencrab/schema"
)

// Registration holds a tool definition and its handler.
type Registration struct {
	Tool    ai.Tool
	Handler Handler
}

// Registry manages registered tools and their handlers.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Registration
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Registration),
	}
}

// Register adds a tool with its handler to the registry.
// Returns an error if a tool with the same name is already registered.
func (r *Registry) Register(reg Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[reg.Tool.Name]; exists {
		return &ErrToolAlreadyRegistered{Name: reg.Tool.Name}
	}
	r.tools[reg.Tool.Name] = reg
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(reg Registration) {
	if err := r.Register(reg); err != nil {
		panic(err)
	}
}

// Add registers the given tools and returns the registry for chaining.
// It panics on duplicate names; use Register when errors must be handled.
func (r *Registry) Add(regs ...Registration) *Registry {
	for _, reg := range regs {
		r.MustRegister(reg)
	}
	return r
}

// Unregister removes a tool from the registry.
// It is a no-op if the tool is not registered.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Resolve retrieves a registration by tool name.
// Returns ErrToolNotFound if no tool with that name is registered.
func (r *Registry) Resolve(name string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.tools[name]
	if !ok {
		return Registration{}, &ErrToolNotFound{Name: name}
	}
	return reg, nil
}

// Tools returns all registered tool definitions.
// This is used to pass the tools to the ChatProvider.
func (r *Registry) Tools() []ai.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]ai.Tool, 0, len(r.tools))
	for _, reg := range r.tools {
		tools = append(tools, reg.Tool)
	}
	return tools
}

// Names returns the names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Invoke validates and executes a tool call, returning a ToolResult and the
// handler's wall-clock execution time.
//
// If the tool is not registered, ErrToolNotFound is returned. If the call's
// arguments fail schema validation, or the handler itself fails, the failure
// is captured in the ToolResult with IsError set so the model can correct
// itself on the next iteration; no Go error is returned in those cases.
func (r *Registry) Invoke(ctx context.Context, call ai.ToolCall) (ai.ToolResult, time.Duration, error) {
	reg, err := r.Resolve(call.Name)
	if err != nil {
		return ai.ToolResult{}, 0, err
	}

	if err := schema.Validate(reg.Tool.Parameters, json.RawMessage(call.Arguments)); err != nil {
		return ai.ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("invalid arguments for %s: %v", call.Name, err),
			IsError:    true,
		}, 0, nil
	}

	start := time.Now()
	content, err := reg.Handler(ctx, call)
	elapsed := time.Since(start)
	if err != nil {
		// Surface the failure as a tool result so the model can recover.
		return ai.ToolResult{
			ToolCallID: call.ID,
			Content:    err.Error(),
			IsError:    true,
		}, elapsed, nil
	}

	return ai.ToolResult{
		ToolCallID: call.ID,
		Content:    content,
	}, elapsed, nil
}

// Func creates a Registration with a schema generated from the typed
// handler's argument struct.
//
// Example:
//
//	type searchArgs struct {
//	    Query string `json:"query" desc:"Search query" required:"true"`
//	}
//
//	registry.Add(tool.Func("search", "Search the web",
//	    func(ctx context.Context, args searchArgs) (string, error) {
//	        return doSearch(args.Query), nil
//	    },
//	))
//
// Capability tags may be passed to mark the tool as requiring approval.
func Func[T any](name, description string, fn TypedHandler[T], caps ...ai.Capability) Registration {
	return Registration{
		Tool: ai.Tool{
			Name:         name,
			Description:  description,
			Parameters:   schema.MustFor[T](),
			Capabilities: caps,
		},
		Handler: typedHandler(fn),
	}
}

// RegisterFunc registers a tool with a typed handler that automatically
// unmarshals the arguments JSON into the specified type T.
func RegisterFunc[T any](r *Registry, name, description string, fn TypedHandler[T], caps ...ai.Capability) error {
	s, err := schema.For[T]()
	if err != nil {
		return err
	}
	return r.Register(Registration{
		Tool: ai.Tool{
			Name:         name,
			Description:  description,
			Parameters:   s,
			Capabilities: caps,
		},
		Handler: typedHandler(fn),
	})
}

// MustRegisterFunc is like RegisterFunc but panics on error.
func MustRegisterFunc[T any](r *Registry, name, description string, fn TypedHandler[T], caps ...ai.Capability) {
	if err := RegisterFunc(r, name, description, fn, caps...); err != nil {
		panic(err)
	}
}

func typedHandler[T any](fn TypedHandler[T]) Handler {
	return func(ctx context.Context, call ai.ToolCall) (string, error) {
		var args T
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				return "", err
			}
		}
		return fn(ctx, args)
	}
}

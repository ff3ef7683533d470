package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	ai "github.com/adolfousier/opencrab"
	"github.com/adolfousier/opencrab/tool"
)

// Source is a connection to one remote MCP tool server. The tool list is
// cached locally and refreshed on demand. Source is safe for concurrent use.
type Source struct {
	client   *client.Client
	callTool func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	caps     []ai.Capability

	mu    sync.RWMutex
	tools map[string]ai.Tool
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithCapabilities overrides the capability tags applied to remote tools.
// The default is network egress, which routes every remote invocation
// through the approval gate.
func WithCapabilities(caps ...ai.Capability) SourceOption {
	return func(s *Source) {
		s.caps = caps
	}
}

// Connect starts an MCP server as a subprocess and connects over stdio.
func Connect(ctx context.Context, command string, env []string, args ...string) (*Source, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("creating MCP client: %w", err)
	}
	return newSource(ctx, c)
}

// ConnectSSE connects to an MCP server over SSE at the given base URL.
func ConnectSSE(ctx context.Context, baseURL string, opts ...SourceOption) (*Source, error) {
	c, err := client.NewSSEMCPClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("creating SSE MCP client: %w", err)
	}
	return newSource(ctx, c, opts...)
}

func newSource(ctx context.Context, c *client.Client, opts ...SourceOption) (*Source, error) {
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting MCP client: %w", err)
	}

	_, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "opencrab",
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing MCP session: %w", err)
	}

	s := &Source{
		client:   c,
		callTool: c.CallTool,
		caps:     []ai.Capability{ai.CapabilityNetworkEgress},
		tools:    make(map[string]ai.Tool),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Refresh(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	return s, nil
}

// Close closes the connection to the MCP server.
func (s *Source) Close() error {
	return s.client.Close()
}

// Refresh fetches the current tool list from the server, replacing the
// cached one.
func (s *Source) Refresh(ctx context.Context) error {
	result, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = make(map[string]ai.Tool, len(result.Tools))
	for _, t := range result.Tools {
		s.tools[t.Name] = FromMCPTool(t, s.caps...)
	}
	return nil
}

// Tools returns the cached remote tool definitions.
func (s *Source) Tools() []ai.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]ai.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t)
	}
	return tools
}

// Call invokes a tool on the remote server.
func (s *Source) Call(ctx context.Context, call ai.ToolCall) (ai.ToolResult, error) {
	result, err := s.callTool(ctx, ToMCPCallToolRequest(call))
	if err != nil {
		return ai.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}, nil
	}
	return FromMCPCallToolResult(call.ID, result), nil
}

// Register adds every cached remote tool to the registry, proxying
// invocations to the server. It returns the number of tools registered;
// names already present in the registry are skipped.
func (s *Source) Register(r *tool.Registry) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	registered := 0
	for _, t := range s.tools {
		err := r.Register(tool.Registration{
			Tool: t,
			Handler: func(ctx context.Context, call ai.ToolCall) (string, error) {
				res, err := s.Call(ctx, call)
				if err != nil {
					return "", err
				}
				if res.IsError {
					return "", errors.New(res.Content)
				}
				return res.Content, nil
			},
		})
		if err == nil {
			registered++
		}
	}
	return registered
}

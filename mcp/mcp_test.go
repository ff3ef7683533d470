package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ai "github.com/adolfousier/opencrab"
	"github.com/adolfousier/opencrab/tool"
)

func TestToMCPTool(t *testing.T) {
	src := ai.Tool{
		Name:        "search",
		Description: "searches things",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`),
	}

	converted := ToMCPTool(src)
	assert.Equal(t, "search", converted.Name)
	assert.Equal(t, "searches things", converted.Description)
	assert.JSONEq(t, string(src.Parameters), string(converted.RawInputSchema))
}

func TestFromMCPTool(t *testing.T) {
	t.Run("raw schema preferred", func(t *testing.T) {
		src := mcp.NewToolWithRawSchema("remote", "a remote tool",
			json.RawMessage(`{"type":"object"}`))

		converted := FromMCPTool(src, ai.CapabilityNetworkEgress)
		assert.Equal(t, "remote", converted.Name)
		assert.JSONEq(t, `{"type":"object"}`, string(converted.Parameters))
		assert.True(t, converted.Dangerous())
	})

	t.Run("no capabilities means safe", func(t *testing.T) {
		src := mcp.NewToolWithRawSchema("remote", "", json.RawMessage(`{}`))
		converted := FromMCPTool(src)
		assert.False(t, converted.Dangerous())
	})
}

func TestToMCPCallToolRequest(t *testing.T) {
	call := ai.ToolCall{
		ID:        "call-1",
		Name:      "search",
		Arguments: `{"q":"golang"}`,
	}

	req := ToMCPCallToolRequest(call)
	assert.Equal(t, "search", req.Params.Name)

	args, ok := req.Params.Arguments.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "golang", args["q"])
}

func TestFromMCPCallToolResult(t *testing.T) {
	t.Run("text content", func(t *testing.T) {
		result := mcp.NewToolResultText("found it")
		converted := FromMCPCallToolResult("call-1", result)
		assert.Equal(t, "call-1", converted.ToolCallID)
		assert.Equal(t, "found it", converted.Content)
		assert.False(t, converted.IsError)
	})

	t.Run("error result", func(t *testing.T) {
		result := mcp.NewToolResultError("boom")
		converted := FromMCPCallToolResult("call-1", result)
		assert.True(t, converted.IsError)
		assert.Equal(t, "boom", converted.Content)
	})

	t.Run("nil result", func(t *testing.T) {
		converted := FromMCPCallToolResult("call-1", nil)
		assert.True(t, converted.IsError)
	})
}

// fakeSource builds a Source with an injected transport for tests.
func fakeSource(tools map[string]ai.Tool, callTool func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)) *Source {
	return &Source{
		callTool: callTool,
		caps:     []ai.Capability{ai.CapabilityNetworkEgress},
		tools:    tools,
	}
}

func TestSourceCall(t *testing.T) {
	src := fakeSource(nil, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		assert.Equal(t, "remote_echo", req.Params.Name)
		return mcp.NewToolResultText("pong"), nil
	})

	result, err := src.Call(context.Background(), ai.ToolCall{
		ID:        "call-1",
		Name:      "remote_echo",
		Arguments: `{"text":"ping"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", result.Content)
	assert.False(t, result.IsError)
}

func TestSourceRegister(t *testing.T) {
	remoteTool := ai.Tool{
		Name:        "remote_echo",
		Description: "echoes remotely",
		Parameters: json.RawMessage(
			`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
		Capabilities: []ai.Capability{ai.CapabilityNetworkEgress},
	}
	src := fakeSource(map[string]ai.Tool{"remote_echo": remoteTool},
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("remote says hi"), nil
		})

	registry := tool.NewRegistry()
	n := src.Register(registry)
	assert.Equal(t, 1, n)

	reg, err := registry.Resolve("remote_echo")
	require.NoError(t, err)
	assert.True(t, reg.Tool.Dangerous())

	result, _, err := registry.Invoke(context.Background(), ai.ToolCall{
		ID:        "call-1",
		Name:      "remote_echo",
		Arguments: `{"text":"hi"}`,
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "remote says hi", result.Content)
}

func TestSourceRegisterSkipsDuplicates(t *testing.T) {
	remoteTool := ai.Tool{
		Name:       "echo",
		Parameters: json.RawMessage(`{"type":"object"}`),
	}
	src := fakeSource(map[string]ai.Tool{"echo": remoteTool}, nil)

	registry := tool.NewRegistry()
	registry.Add(tool.Func("echo", "local echo", func(ctx context.Context, args struct{}) (string, error) {
		return "local", nil
	}))

	n := src.Register(registry)
	assert.Equal(t, 0, n)
}

func TestSourceRemoteError(t *testing.T) {
	remoteTool := ai.Tool{
		Name:       "flaky",
		Parameters: json.RawMessage(`{"type":"object"}`),
	}
	src := fakeSource(map[string]ai.Tool{"flaky": remoteTool},
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultError("remote failure"), nil
		})

	registry := tool.NewRegistry()
	require.Equal(t, 1, src.Register(registry))

	result, _, err := registry.Invoke(context.Background(), ai.ToolCall{
		ID:        "call-1",
		Name:      "flaky",
		Arguments: `{}`,
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "remote failure")
}

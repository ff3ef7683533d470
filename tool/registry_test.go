package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ai "github.com/adolfousier/opencrab"
)

type echoArgs struct {
	Text string `json:"text" desc:"Text to echo back" required:"true"`
	N    int    `json:"n" desc:"Repeat count"`
}

func echoRegistration() Registration {
	return Func("echo", "Echo the input text",
		func(ctx context.Context, args echoArgs) (string, error) {
			n := args.N
			if n == 0 {
				n = 1
			}
			out := ""
			for i := 0; i < n; i++ {
				out += args.Text
			}
			return out, nil
		},
	)
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(echoRegistration()))
	assert.Equal(t, 1, r.Len())
	assert.Contains(t, r.Names(), "echo")

	err := r.Register(echoRegistration())
	var dup *ErrToolAlreadyRegistered
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "echo", dup.Name)
}

func TestRegistryAddChains(t *testing.T) {
	r := NewRegistry().Add(echoRegistration(), Func("noop", "Do nothing",
		func(ctx context.Context, args struct{}) (string, error) {
			return "ok", nil
		},
	))

	assert.Equal(t, 2, r.Len())
	assert.Len(t, r.Tools(), 2)
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry().Add(echoRegistration())

	reg, err := r.Resolve("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", reg.Tool.Name)

	_, err = r.Resolve("missing")
	var notFound *ErrToolNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Name)
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry().Add(echoRegistration())
	r.Unregister("echo")
	assert.Equal(t, 0, r.Len())

	// Unregistering again is a no-op.
	r.Unregister("echo")
}

func TestRegistryInvoke(t *testing.T) {
	r := NewRegistry().Add(echoRegistration())

	result, elapsed, err := r.Invoke(context.Background(), ai.ToolCall{
		ID:        "call-1",
		Name:      "echo",
		Arguments: `{"text":"hi","n":2}`,
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "call-1", result.ToolCallID)
	assert.Equal(t, "hihi", result.Content)
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
}

func TestRegistryInvokeNotFound(t *testing.T) {
	r := NewRegistry()

	_, _, err := r.Invoke(context.Background(), ai.ToolCall{
		ID:   "call-1",
		Name: "missing",
	})
	var notFound *ErrToolNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestRegistryInvokeValidation(t *testing.T) {
	r := NewRegistry().Add(echoRegistration())

	tests := []struct {
		name string
		args string
	}{
		{"missing required field", `{"n":2}`},
		{"wrong type", `{"text":42}`},
		{"undeclared field", `{"text":"hi","bogus":true}`},
		{"malformed json", `{"text":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _, err := r.Invoke(context.Background(), ai.ToolCall{
				ID:        "call-1",
				Name:      "echo",
				Arguments: tt.args,
			})
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Equal(t, "call-1", result.ToolCallID)
			assert.Contains(t, result.Content, "invalid arguments")
		})
	}
}

func TestRegistryInvokeHandlerError(t *testing.T) {
	r := NewRegistry().Add(Func("fail", "Always fails",
		func(ctx context.Context, args struct{}) (string, error) {
			return "", errors.New("disk on fire")
		},
	))

	result, _, err := r.Invoke(context.Background(), ai.ToolCall{
		ID:        "call-1",
		Name:      "fail",
		Arguments: `{}`,
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "disk on fire", result.Content)
}

func TestFuncCapabilities(t *testing.T) {
	reg := Func("danger", "A dangerous tool",
		func(ctx context.Context, args struct{}) (string, error) {
			return "", nil
		},
		ai.CapabilityReadOnly, ai.CapabilityCommandExecution,
	)

	assert.True(t, reg.Tool.Dangerous())

	safe := Func("safe", "A safe tool",
		func(ctx context.Context, args struct{}) (string, error) {
			return "", nil
		},
		ai.CapabilityReadOnly,
	)
	assert.False(t, safe.Tool.Dangerous())
}

func TestRegisterFunc(t *testing.T) {
	r := NewRegistry()
	err := RegisterFunc(r, "greet", "Greet someone",
		func(ctx context.Context, args struct {
			Name string `json:"name" required:"true"`
		}) (string, error) {
			return fmt.Sprintf("hello %s", args.Name), nil
		},
	)
	require.NoError(t, err)

	result, _, err := r.Invoke(context.Background(), ai.ToolCall{
		ID:        "call-1",
		Name:      "greet",
		Arguments: `{"name":"ada"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello ada", result.Content)
}

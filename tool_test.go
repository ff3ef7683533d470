package opencrab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilityDangerous(t *testing.T) {
	tests := []struct {
		capability Capability
		dangerous  bool
	}{
		{CapabilityReadOnly, false},
		{CapabilityFileMutation, true},
		{CapabilityCommandExecution, true},
		{CapabilityNetworkEgress, true},
		{CapabilitySystemModification, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.capability), func(t *testing.T) {
			assert.Equal(t, tt.dangerous, tt.capability.Dangerous())
		})
	}
}

func TestToolDangerous(t *testing.T) {
	t.Run("read-only tool is safe", func(t *testing.T) {
		tool := Tool{Name: "read_file", Capabilities: []Capability{CapabilityReadOnly}}
		assert.False(t, tool.Dangerous())
	})

	t.Run("no capabilities is safe", func(t *testing.T) {
		tool := Tool{Name: "noop"}
		assert.False(t, tool.Dangerous())
	})

	t.Run("any dangerous capability classifies the tool", func(t *testing.T) {
		tool := Tool{
			Name:         "write_file",
			Capabilities: []Capability{CapabilityReadOnly, CapabilityFileMutation},
		}
		assert.True(t, tool.Dangerous())
	})
}

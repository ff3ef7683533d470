package agui

import (
	"encoding/json"

	"github.com/adolfousier/opencrab/approval"
)

// ApprovalInput is an approval decision submitted by an AG-UI frontend.
type ApprovalInput struct {
	RequestID string `json:"requestId"`
	Approved  bool   `json:"approved"`
	Reason    string `json:"reason,omitempty"`
}

// ParseApprovalInput parses an approval decision from JSON.
func ParseApprovalInput(data []byte) (*ApprovalInput, error) {
	var input ApprovalInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}
	return &input, nil
}

// HandleApproval applies a frontend decision to the approval gate.
// Decisions on unknown or already resolved requests return the gate's
// sentinel errors unchanged.
func HandleApproval(gate *approval.Gate, input *ApprovalInput) error {
	if input.Approved {
		return gate.Approve(input.RequestID)
	}
	return gate.Deny(input.RequestID, input.Reason)
}

// HandleApprovalJSON parses and applies a JSON-encoded approval decision.
func HandleApprovalJSON(gate *approval.Gate, data []byte) error {
	input, err := ParseApprovalInput(data)
	if err != nil {
		return err
	}
	return HandleApproval(gate, input)
}

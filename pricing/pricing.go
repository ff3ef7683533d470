// Package pricing converts token usage into monetary estimates for the
// session cost accumulator.
package pricing

import (
	"strings"

	ai "github.com/adolfousier/opencrab"
)

// ChatPricing contains pricing per million tokens (USD) for a chat model.
type ChatPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Known reports whether pricing data exists for the model.
func (p ChatPricing) Known() bool {
	return p.InputPerMillion > 0 || p.OutputPerMillion > 0
}

// Cost returns the USD cost of the given usage at this pricing.
func (p ChatPricing) Cost(usage ai.Usage) float64 {
	return float64(usage.InputTokens)/1_000_000*p.InputPerMillion +
		float64(usage.OutputTokens)/1_000_000*p.OutputPerMillion
}

// Model pricing last verified: December 2025. Unknown models cost $0; the
// token counts are still accumulated so the session total stays meaningful.
var table = map[string]ChatPricing{
	// Anthropic
	"claude-opus-4-5":   {InputPerMillion: 5.00, OutputPerMillion: 25.00},
	"claude-sonnet-4-5": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-haiku-4-5":  {InputPerMillion: 1.00, OutputPerMillion: 5.00},

	// OpenAI
	"gpt-5.2":      {InputPerMillion: 1.75, OutputPerMillion: 14.00},
	"gpt-5.1":      {InputPerMillion: 1.25, OutputPerMillion: 10.00},
	"gpt-5.1-mini": {InputPerMillion: 0.30, OutputPerMillion: 1.25},
	"gpt-5":        {InputPerMillion: 1.25, OutputPerMillion: 10.00},
	"gpt-5-mini":   {InputPerMillion: 0.25, OutputPerMillion: 1.00},
	"o3":           {InputPerMillion: 2.00, OutputPerMillion: 16.00},

	// Google
	"gemini-3-pro-preview": {InputPerMillion: 2.00, OutputPerMillion: 12.00},
	"gemini-2.5-pro":       {InputPerMillion: 1.25, OutputPerMillion: 10.00},
	"gemini-2.5-flash":     {InputPerMillion: 0.30, OutputPerMillion: 2.50},
}

// Lookup returns the pricing for a model identifier. Pinned model versions
// (e.g. "claude-sonnet-4-5-20250929") fall back to their alias pricing.
func Lookup(model string) ChatPricing {
	if p, ok := table[model]; ok {
		return p
	}
	// Longest alias prefix wins so pinned versions resolve.
	var best string
	for id := range table {
		if strings.HasPrefix(model, id) && len(id) > len(best) {
			best = id
		}
	}
	if best != "" {
		return table[best]
	}
	return ChatPricing{}
}

// Cost returns the USD cost of the given usage for a model identifier.
// Unknown models return 0.
func Cost(model string, usage ai.Usage) float64 {
	return Lookup(model).Cost(usage)
}

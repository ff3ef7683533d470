package gateway

import (
	"time"

	ai "github.com/adolfousier/opencrab"
)

// EventType identifies the kind of event occurring during gateway operations.
type EventType string

const (
	// EventRequestStart fires before a provider request begins. It carries
	// the provider, model, and the name of the credential source in use.
	EventRequestStart EventType = "request_start"

	// EventRequestComplete fires after a request completes successfully.
	EventRequestComplete EventType = "request_complete"

	// EventRequestError fires when a request fails after retries.
	EventRequestError EventType = "request_error"
)

// Event represents an observable occurrence during gateway operations.
// Credential values never appear in events, only the source name.
type Event struct {
	Type EventType

	// Operation identifies the call ("chat" or "chat_stream").
	Operation string

	// Provider identifies which backend handled the request.
	Provider ai.Provider

	// Model is the model identifier used for the request.
	Model string

	// CredentialSource names where the provider's credential came from.
	CredentialSource CredentialSource

	// Duration is the elapsed time for completed or failed requests.
	Duration time.Duration

	// Usage contains token usage for completed chat requests.
	Usage *ai.Usage

	// CostUSD is the estimated cost of the request at current pricing.
	CostUSD float64

	// Error contains the failure for EventRequestError.
	Error error

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// emit sends an event with timestamp to the channel without blocking.
func emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}

package orchestrator

import "errors"

// ErrIterationLimit is returned when a turn exceeds the configured number of
// tool-call rounds. The conversation up to that point is preserved.
var ErrIterationLimit = errors.New("orchestrator: iteration limit exceeded")

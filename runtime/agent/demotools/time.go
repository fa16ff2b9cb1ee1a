// Package demotools provides a small set of illustrative tool handlers
// (§1 scope note: concrete tool implementations are out of scope for the
// engine itself, but a runnable demo needs at least a couple registered).
package demotools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/quillhq/planrunner/runtime/agent/tools"
)

// CurrentTimeSpec describes get_current_time: no arguments, returns the
// current UTC time in RFC 3339.
var CurrentTimeSpec = tools.Spec{
	Name:        "get_current_time",
	Description: "Returns the current date and time in UTC, RFC 3339 format.",
	InputSchema: json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`),
}

// CurrentTime is the get_current_time handler.
func CurrentTime(context.Context, json.RawMessage) (string, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

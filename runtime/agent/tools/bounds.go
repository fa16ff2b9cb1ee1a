package tools

// Bounds describes how a tool result has been bounded relative to the full
// underlying data set. It is a small, provider-agnostic contract used by
// tools like list_files so callers can surface truncation metadata without
// re-inspecting tool-specific fields.
type Bounds struct {
	Returned       int
	Total          *int
	Truncated      bool
	RefinementHint string
}

// BoundedResult is an optional interface implemented by tool result types that
// expose boundedness metadata directly.
type BoundedResult interface {
	Bounds() Bounds
}

package demotools

import (
	"context"
	"encoding/json"
	"os"
	"sort"

	"github.com/quillhq/planrunner/runtime/agent/tools"
)

// ListFilesSpec describes list_files: lists entries under a directory,
// truncated to a configured limit (§6.7 LIST_FILES_LIMIT).
var ListFilesSpec = tools.Spec{
	Name:        "list_files",
	Description: "Lists file names in a directory, truncated to a configured limit.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {"path": {"type": "string"}},
		"required": ["path"],
		"additionalProperties": false
	}`),
}

type listFilesArgs struct {
	Path string `json:"path"`
}

type listFilesResult struct {
	Entries []string `json:"entries"`
	bounds  tools.Bounds
}

// Bounds reports how listFilesResult.Entries relates to the full directory
// listing, satisfying tools.BoundedResult.
func (r listFilesResult) Bounds() tools.Bounds { return r.bounds }

func (r listFilesResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Entries        []string `json:"entries"`
		Truncated      bool     `json:"truncated"`
		Total          *int     `json:"total,omitempty"`
		RefinementHint string   `json:"refinement_hint,omitempty"`
	}{
		Entries:        r.Entries,
		Truncated:      r.bounds.Truncated,
		Total:          r.bounds.Total,
		RefinementHint: r.bounds.RefinementHint,
	})
}

// NewListFiles returns a list_files handler bounded to at most limit
// entries (§6.7 LIST_FILES_LIMIT).
func NewListFiles(limit int) tools.Handler {
	return func(_ context.Context, args json.RawMessage) (string, error) {
		var a listFilesArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return "", err
		}

		entries, err := os.ReadDir(a.Path)
		if err != nil {
			return "", err
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)

		total := len(names)
		truncated := total > limit
		if truncated {
			names = names[:limit]
		}

		result := listFilesResult{
			Entries: names,
			bounds: tools.Bounds{
				Returned:  len(names),
				Total:     &total,
				Truncated: truncated,
			},
		}
		if truncated {
			result.bounds.RefinementHint = "narrow path to a subdirectory for a complete listing"
		}

		out, err := json.Marshal(result)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

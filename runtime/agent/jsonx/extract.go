// Package jsonx implements the JSON extractor/repairer (C3): pulling a single
// JSON object out of LLM output that may be wrapped in code fences or prose,
// and reporting a precise failure position when none can be found.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quillhq/planrunner/runtime/agent/toolerrors"
)

// Extract strips common code-fence wrapping, locates the first balanced
// `{...}` span in text, and parses it as a JSON object. It returns a
// *toolerrors.ToolError with Kind KindMalformedJSON when no valid object can
// be found; when an object span was located, the error names the byte
// position (in the fence-stripped text) at which that span starts.
func Extract(text string) (map[string]any, error) {
	stripped := stripFences(text)

	span, err := firstBalancedObject(stripped)
	if err != nil {
		return nil, err
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		pos := strings.Index(stripped, span)
		return nil, toolerrors.WrapKind(toolerrors.KindMalformedJSON,
			fmt.Sprintf("jsonx: malformed JSON object at position %d: %s", pos, err), err)
	}
	return obj, nil
}

// stripFences removes a leading/trailing ``` or ```json code fence, if
// present, and trims surrounding whitespace. Prose outside the fence (and
// outside the located object span) is tolerated either way.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(s[:nl])
		if firstLine == "" || isLangTag(firstLine) {
			s = s[nl+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func isLangTag(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// firstBalancedObject scans text for the first top-level `{...}` span,
// tracking brace depth and skipping over braces inside JSON string literals
// (honoring backslash escapes) so that a quoted "}" in a field value does
// not end the scan early.
func firstBalancedObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", toolerrors.NewKind(toolerrors.KindMalformedJSON, "jsonx: no JSON object found in model output")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", toolerrors.NewKind(toolerrors.KindMalformedJSON,
		fmt.Sprintf("jsonx: unbalanced JSON object starting at position %d", start))
}

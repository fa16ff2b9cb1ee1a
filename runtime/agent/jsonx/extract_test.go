package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/planrunner/runtime/agent/toolerrors"
)

func TestExtractPlainObject(t *testing.T) {
	obj, err := Extract(`{"reasoning": "ok", "steps": []}`)
	require.NoError(t, err)
	assert.Equal(t, "ok", obj["reasoning"])
}

func TestExtractFencedObject(t *testing.T) {
	text := "Here is the plan:\n```json\n{\"reasoning\": \"ok\", \"steps\": []}\n```\nLet me know if this works."
	obj, err := Extract(text)
	require.NoError(t, err)
	assert.Equal(t, "ok", obj["reasoning"])
}

func TestExtractIgnoresBracesInStrings(t *testing.T) {
	obj, err := Extract(`{"reasoning": "use {not a ref} literally", "steps": []}`)
	require.NoError(t, err)
	assert.Equal(t, "use {not a ref} literally", obj["reasoning"])
}

func TestExtractMalformed(t *testing.T) {
	_, err := Extract(`{"reasoning": "missing closing brace"`)
	require.Error(t, err)
	var te *toolerrors.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, toolerrors.KindMalformedJSON, te.Kind)
}

func TestExtractNoObject(t *testing.T) {
	_, err := Extract("no json here at all")
	require.Error(t, err)
	var te *toolerrors.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, toolerrors.KindMalformedJSON, te.Kind)
}

package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/planrunner/runtime/agent/toolerrors"
)

func TestBindWriteOnce(t *testing.T) {
	e := New()
	require.NoError(t, e.Bind("essay", "once upon a time"))

	err := e.Bind("essay", "again")
	require.Error(t, err)
	var te *toolerrors.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, toolerrors.KindDuplicateBinding, te.Kind)
}

func TestSeedAllowsOverwrite(t *testing.T) {
	e := New()
	e.Seed("user_query", "first")
	e.Seed("user_query", "second")
	v, ok := e.Lookup("user_query")
	require.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestRenderUnknownReference(t *testing.T) {
	e := New()
	text, used, missing := e.Render("hello {ghost}!")
	assert.Equal(t, "hello !", text)
	assert.Empty(t, used)
	assert.Equal(t, []string{"ghost"}, missing)
}

func TestRenderDoubledBraces(t *testing.T) {
	e := New()
	text, _, missing := e.Render("a {{b}} c")
	assert.Equal(t, "a {b} c", text)
	assert.Empty(t, missing)
}

func TestRenderIdempotentWithoutBraces(t *testing.T) {
	e := New()
	require.NoError(t, e.Bind("x", "1"))
	s := "no placeholders here"
	text, _, _ := e.Render(s)
	assert.Equal(t, s, text)
}

func TestRenderDoesNotRecursivelyExpand(t *testing.T) {
	e := New()
	require.NoError(t, e.Bind("tricky", "{other}"))
	text, used, missing := e.Render("value={tricky}")
	assert.Equal(t, "value={other}", text)
	assert.Equal(t, []string{"tricky"}, used)
	assert.Empty(t, missing)
}

func TestRenderBoundValue(t *testing.T) {
	e := New()
	require.NoError(t, e.Bind("name", "world"))
	text, used, missing := e.Render("hello {name}!")
	assert.Equal(t, "hello world!", text)
	assert.Equal(t, []string{"name"}, used)
	assert.Empty(t, missing)
}

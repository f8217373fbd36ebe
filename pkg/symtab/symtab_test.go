package symtab

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAssignsDenseOffsets(t *testing.T) {
	tab := New()
	tab.EnterScope("main")

	for i, name := range []string{"a", "b", "c"} {
		sym, err := tab.Insert(name, "int", i == 0)
		require.NoError(t, err)
		assert.Equal(t, i, sym.Offset)
		assert.Equal(t, "main", sym.Scope)
	}
	assert.True(t, tab.Lookup("a", true).IsParam)
}

func TestInsertRejectsRedeclaration(t *testing.T) {
	tab := New()
	_, err := tab.Insert("x", "int", false)
	require.NoError(t, err)

	_, err = tab.Insert("x", "int", false)
	require.ErrorIs(t, err, ErrRedeclared)
	require.ErrorContains(t, err, "'x'")

	// the failed insert must not consume an offset
	sym, err := tab.Insert("y", "int", false)
	require.NoError(t, err)
	assert.Equal(t, 1, sym.Offset)
}

func TestShadowingAcrossScopes(t *testing.T) {
	tab := New()
	_, err := tab.Insert("x", "int", false)
	require.NoError(t, err)

	tab.EnterScope("f")
	inner, err := tab.Insert("x", "int", true)
	require.NoError(t, err)
	assert.Same(t, inner, tab.Lookup("x", false))

	require.NoError(t, tab.ExitScope())
	outer := tab.Lookup("x", false)
	require.NotNil(t, outer)
	assert.False(t, outer.IsParam)
	assert.Equal(t, GlobalScope, outer.Scope)
}

func TestLookupCurrentOnly(t *testing.T) {
	tab := New()
	_, err := tab.InsertFunc("f", []ParamInfo{{"a", "int"}})
	require.NoError(t, err)

	tab.EnterScope("f")
	assert.Nil(t, tab.Lookup("f", true))
	fn := tab.Lookup("f", false)
	require.NotNil(t, fn)
	assert.Equal(t, FuncType, fn.Type)
	assert.Len(t, fn.Params, 1)
	assert.Nil(t, tab.Lookup("missing", false))
}

func TestExitGlobalFails(t *testing.T) {
	tab := New()
	require.ErrorIs(t, tab.ExitScope(), ErrExitGlobal)

	tab.EnterScope("f")
	require.NoError(t, tab.ExitScope())
	require.ErrorIs(t, tab.ExitScope(), ErrExitGlobal)
}

func TestClosedScopesStayListed(t *testing.T) {
	tab := New()
	tab.EnterScope("f")
	_, err := tab.Insert("local", "int", false)
	require.NoError(t, err)
	require.NoError(t, tab.ExitScope())

	require.Len(t, tab.Scopes(), 2)
	f := tab.Scope("f")
	require.NotNil(t, f)
	assert.True(t, f.Closed)
	assert.Equal(t, 1, f.Level)
	assert.Nil(t, tab.Lookup("local", false))

	var buf bytes.Buffer
	tab.Fprint(&buf)
	assert.Contains(t, buf.String(), "scope f (level 1)")
	assert.Contains(t, buf.String(), "local")
}

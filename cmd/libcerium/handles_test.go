package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tree_sitter_barq "tree-sitter-cerium/bindings/go/barq"
	tree_sitter_cerium "tree-sitter-cerium/bindings/go/cerium"
)

func TestLookup(t *testing.T) {
	barq, ok := lookup(handleBarq)
	require.True(t, ok)
	assert.Same(t, tree_sitter_barq.Language(), barq)

	cerium, ok := lookup(handleCerium)
	require.True(t, ok)
	assert.Same(t, tree_sitter_cerium.Language(), cerium)
	assert.False(t, barq.Equal(cerium))
}

func TestLookup_RejectsUnknownHandles(t *testing.T) {
	for _, handle := range []uintptr{0, handleCerium + 1, ^uintptr(0)} {
		_, ok := lookup(handle)
		assert.False(t, ok, "handle %d", handle)
	}
}

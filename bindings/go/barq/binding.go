// Package tree_sitter_barq publishes the barq grammar descriptor.
package tree_sitter_barq

import (
	_ "embed"

	"tree-sitter-cerium/pkg/descriptor"
)

//go:embed grammar.json
var grammarJSON []byte

// Built during package initialization, before any caller can reach Language.
var language = descriptor.MustLoad(grammarJSON)

// Language returns the barq grammar descriptor. Every call returns the same
// immutable value; it is safe to call from any goroutine.
func Language() *descriptor.Language {
	return language
}

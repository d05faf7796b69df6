// Package tree_sitter_cerium publishes the cerium grammar descriptor.
package tree_sitter_cerium

import (
	_ "embed"

	"tree-sitter-cerium/pkg/descriptor"
)

//go:embed grammar.json
var grammarJSON []byte

var language = descriptor.MustLoad(grammarJSON)

// Language returns the cerium grammar descriptor.
func Language() *descriptor.Language {
	return language
}

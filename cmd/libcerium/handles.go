// Command libcerium is built with -buildmode=c-shared and exposes the grammar
// descriptors to C callers. See bindings/c/cerium.h.
package main

import (
	tree_sitter_barq "tree-sitter-cerium/bindings/go/barq"
	tree_sitter_cerium "tree-sitter-cerium/bindings/go/cerium"
	"tree-sitter-cerium/pkg/descriptor"
)

// Handles are indexes into descriptors. 0 is never a valid handle.
const (
	handleBarq uintptr = iota + 1
	handleCerium
)

var descriptors = [...]*descriptor.Language{
	handleBarq - 1:   tree_sitter_barq.Language(),
	handleCerium - 1: tree_sitter_cerium.Language(),
}

func lookup(handle uintptr) (*descriptor.Language, bool) {
	if handle == 0 || handle > uintptr(len(descriptors)) {
		return nil, false
	}
	return descriptors[handle-1], true
}

func main() {}

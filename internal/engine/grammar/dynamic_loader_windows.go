//go:build windows

package grammar

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	domainerrors "tree-sitter-cerium/internal/core/errors"
)

// LoadDynamic is not available on Windows.
func LoadDynamic(path, langName string) (*sitter.Language, error) {
	return nil, domainerrors.New(domainerrors.CodeNotSupported, "dynamic grammar loading is not supported on Windows")
}

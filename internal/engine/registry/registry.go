// Package registry enumerates the grammars built into this module and the
// per-language settings the tooling applies to them.
package registry

import (
	"fmt"
	"sort"
	"strings"

	tree_sitter_barq "tree-sitter-cerium/bindings/go/barq"
	tree_sitter_cerium "tree-sitter-cerium/bindings/go/cerium"
	domainerrors "tree-sitter-cerium/internal/core/errors"
	"tree-sitter-cerium/pkg/descriptor"
)

// The set of grammar identities is fixed at build time.
var accessors = map[string]func() *descriptor.Language{
	"barq":   tree_sitter_barq.Language,
	"cerium": tree_sitter_cerium.Language,
}

type LanguageSpec struct {
	Name                string
	Enabled             bool
	Extensions          []string
	Filenames           []string
	RequireVerification bool
}

type LanguageOverride struct {
	Enabled             *bool
	Extensions          []string
	Filenames           []string
	RequireVerification *bool
}

// Names returns the supported grammar names in sorted order.
func Names() []string {
	names := make([]string, 0, len(accessors))
	for name := range accessors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptor returns the built-in descriptor for a grammar name.
func Descriptor(name string) (*descriptor.Language, error) {
	accessor, ok := accessors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, domainerrors.Newf(domainerrors.CodeNotFound, "unsupported grammar %q", name)
	}
	return accessor(), nil
}

func DefaultLanguageRegistry() map[string]LanguageSpec {
	return map[string]LanguageSpec{
		"barq": {
			Name:                "barq",
			Enabled:             true,
			Extensions:          []string{".barq"},
			RequireVerification: true,
		},
		"cerium": {
			Name:                "cerium",
			Enabled:             true,
			Extensions:          []string{".ce", ".cerium"},
			RequireVerification: true,
		},
	}
}

func BuildLanguageRegistry(overrides map[string]LanguageOverride) (map[string]LanguageSpec, error) {
	registry := DefaultLanguageRegistry()

	for rawName, override := range overrides {
		name := strings.ToLower(strings.TrimSpace(rawName))
		spec, ok := registry[name]
		if !ok {
			return nil, domainerrors.Newf(domainerrors.CodeValidationError, "unknown language %q in overrides", rawName)
		}
		if override.Enabled != nil {
			spec.Enabled = *override.Enabled
		}
		if override.RequireVerification != nil {
			spec.RequireVerification = *override.RequireVerification
		}
		if len(override.Extensions) > 0 {
			exts, err := normalizeExtensions(name, override.Extensions)
			if err != nil {
				return nil, err
			}
			spec.Extensions = exts
		}
		if len(override.Filenames) > 0 {
			spec.Filenames = normalizeFilenames(override.Filenames)
		}
		registry[name] = spec
	}

	if err := validateRegistry(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

func normalizeExtensions(language string, exts []string) ([]string, error) {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			return nil, domainerrors.Newf(domainerrors.CodeValidationError, "languages.%s.extensions must not include empty values", language)
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out, nil
}

func normalizeFilenames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func validateRegistry(registry map[string]LanguageSpec) error {
	owners := make(map[string]string)
	for _, name := range sortedNames(registry) {
		spec := registry[name]
		if !spec.Enabled {
			continue
		}
		for _, ext := range spec.Extensions {
			if owner, taken := owners[ext]; taken {
				return domainerrors.New(
					domainerrors.CodeConflict,
					fmt.Sprintf("extension %s is claimed by both %s and %s", ext, owner, name),
				)
			}
			owners[ext] = name
		}
	}
	return nil
}

// Clone deep-copies a registry so callers can hand it out safely.
func Clone(in map[string]LanguageSpec) map[string]LanguageSpec {
	out := make(map[string]LanguageSpec, len(in))
	for id, spec := range in {
		copySpec := spec
		copySpec.Extensions = append([]string(nil), spec.Extensions...)
		copySpec.Filenames = append([]string(nil), spec.Filenames...)
		out[id] = copySpec
	}
	return out
}

func sortedNames(registry map[string]LanguageSpec) []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

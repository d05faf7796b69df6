package registry

import (
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	domainerrors "tree-sitter-cerium/internal/core/errors"
)

type filenameRoute struct {
	language string
	pattern  glob.Glob
}

// Detector maps source file paths to enabled languages.
type Detector struct {
	byExtension map[string]string
	filenames   []filenameRoute
}

func NewDetector(registry map[string]LanguageSpec) (*Detector, error) {
	d := &Detector{byExtension: make(map[string]string)}
	for _, name := range sortedNames(registry) {
		spec := registry[name]
		if !spec.Enabled {
			continue
		}
		for _, ext := range spec.Extensions {
			d.byExtension[strings.ToLower(ext)] = name
		}
		for _, pattern := range spec.Filenames {
			g, err := glob.Compile(strings.ToLower(pattern))
			if err != nil {
				de := &domainerrors.DomainError{Code: domainerrors.CodeValidationError, Message: "invalid filename pattern", Err: err}
				return nil, de.WithContext(domainerrors.CtxLanguage, name)
			}
			d.filenames = append(d.filenames, filenameRoute{language: name, pattern: g})
		}
	}
	return d, nil
}

// Detect returns the language for a path. Filename patterns win over extensions.
func (d *Detector) Detect(path string) (string, bool) {
	base := strings.ToLower(filepath.Base(path))
	for _, route := range d.filenames {
		if route.pattern.Match(base) {
			return route.language, true
		}
	}
	language, ok := d.byExtension[strings.ToLower(filepath.Ext(base))]
	return language, ok
}

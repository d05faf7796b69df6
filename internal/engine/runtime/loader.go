package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"

	domainerrors "tree-sitter-cerium/internal/core/errors"
	"tree-sitter-cerium/internal/engine/grammar"
	"tree-sitter-cerium/internal/engine/registry"
	"tree-sitter-cerium/internal/shared/observability"
	"tree-sitter-cerium/internal/shared/util"
	"tree-sitter-cerium/pkg/descriptor"
)

// GrammarLoader holds the descriptor of every enabled language and, where the
// grammars directory ships a compiled parser, the matching host language.
type GrammarLoader struct {
	grammarsPath string
	registry     map[string]registry.LanguageSpec
	detector     *registry.Detector
	descriptors  map[string]*descriptor.Language

	mu    sync.RWMutex
	hosts map[string]*sitter.Language
	pools map[string]*ParserPool
}

// NewGrammarLoader builds a loader for the enabled languages of languages
// (the default registry when nil). With verify set, artifact verification
// issues are fatal. Compiled parsers listed in the manifest are loaded and
// must pass CheckCompatibility.
func NewGrammarLoader(ctx context.Context, grammarsPath string, languages map[string]registry.LanguageSpec, verify bool) (*GrammarLoader, error) {
	if languages == nil {
		var err error
		languages, err = registry.BuildLanguageRegistry(nil)
		if err != nil {
			return nil, err
		}
	}

	haveDir := false
	if grammarsPath != "" {
		info, err := os.Stat(grammarsPath)
		switch {
		case err == nil && !info.IsDir():
			return nil, domainerrors.Newf(domainerrors.CodeValidationError, "grammars path is not a directory: %s", grammarsPath)
		case err == nil:
			haveDir = true
		case verify:
			return nil, domainerrors.AddContext(err, domainerrors.CtxPath, grammarsPath)
		}
	}

	if verify && haveDir {
		issues, err := grammar.VerifyRegistryArtifacts(grammarsPath, languages)
		if err != nil {
			return nil, err
		}
		if len(issues) > 0 {
			return nil, domainerrors.Newf(domainerrors.CodeValidationError,
				"grammar verification failed (%d issues): %s", len(issues), issues[0])
		}
	}

	detector, err := registry.NewDetector(languages)
	if err != nil {
		return nil, err
	}

	gl := &GrammarLoader{
		grammarsPath: grammarsPath,
		registry:     registry.Clone(languages),
		detector:     detector,
		descriptors:  make(map[string]*descriptor.Language),
		hosts:        make(map[string]*sitter.Language),
		pools:        make(map[string]*ParserPool),
	}

	for _, name := range util.SortedStringKeys(gl.registry) {
		if !gl.registry[name].Enabled {
			continue
		}
		desc, err := registry.Descriptor(name)
		if err != nil {
			return nil, err
		}
		gl.descriptors[name] = desc
	}

	if haveDir {
		if err := gl.loadSharedObjects(ctx); err != nil {
			return nil, err
		}
	}
	return gl, nil
}

func (gl *GrammarLoader) loadSharedObjects(ctx context.Context) error {
	manifest, err := grammar.ReadGrammarManifest(filepath.Join(gl.grammarsPath, grammar.ManifestFileName))
	if err != nil {
		if domainerrors.IsCode(err, domainerrors.CodeNotFound) {
			slog.Debug("no grammar manifest, using descriptors only", "path", gl.grammarsPath)
			return nil
		}
		return err
	}

	for _, artifact := range manifest.Artifacts {
		if _, enabled := gl.descriptors[artifact.Language]; !enabled || !artifact.HasSharedObject() {
			continue
		}
		_, span := observability.StartLoadSpan(ctx, artifact.Language)
		start := time.Now()

		path := filepath.Join(gl.grammarsPath, filepath.FromSlash(artifact.SharedObjectPath))
		host, err := grammar.LoadDynamic(path, artifact.Language)
		if err == nil {
			err = gl.RegisterHost(artifact.Language, host)
		}
		observability.GrammarLoadDuration.WithLabelValues(artifact.Language).Observe(time.Since(start).Seconds())
		observability.RecordError(span, err)
		span.End()
		if err != nil {
			return err
		}
		slog.Info("loaded compiled grammar", "language", artifact.Language, "path", path, "abi", host.AbiVersion())
	}
	return nil
}

// RegisterHost attaches a host language to an enabled grammar after checking
// it against the grammar's descriptor.
func (gl *GrammarLoader) RegisterHost(name string, host *sitter.Language) error {
	desc, ok := gl.descriptors[name]
	if !ok {
		return domainerrors.Newf(domainerrors.CodeNotFound, "language %q is not enabled", name)
	}
	if mismatches := CheckCompatibility(desc, host); len(mismatches) > 0 {
		details := make([]string, 0, len(mismatches))
		for _, m := range mismatches {
			details = append(details, m.String())
		}
		de := &domainerrors.DomainError{
			Code:    domainerrors.CodeIncompatible,
			Message: fmt.Sprintf("host language disagrees with descriptor (%d mismatches): %s", len(mismatches), strings.Join(details, "; ")),
		}
		return de.WithContext(domainerrors.CtxLanguage, name).WithContext(domainerrors.CtxABIVersion, host.AbiVersion())
	}
	gl.attachHost(name, host)
	return nil
}

func (gl *GrammarLoader) attachHost(name string, host *sitter.Language) {
	gl.mu.Lock()
	defer gl.mu.Unlock()
	gl.hosts[name] = host
	gl.pools[name] = NewParserPool(name, host)
}

// Descriptor returns the descriptor of an enabled language.
func (gl *GrammarLoader) Descriptor(name string) (*descriptor.Language, bool) {
	desc, ok := gl.descriptors[name]
	return desc, ok
}

// Host returns the host language attached to name, if any.
func (gl *GrammarLoader) Host(name string) (*sitter.Language, bool) {
	gl.mu.RLock()
	defer gl.mu.RUnlock()
	host, ok := gl.hosts[name]
	return host, ok
}

func (gl *GrammarLoader) pool(name string) (*ParserPool, bool) {
	gl.mu.RLock()
	defer gl.mu.RUnlock()
	p, ok := gl.pools[name]
	return p, ok
}

// Languages returns the enabled language names in sorted order.
func (gl *GrammarLoader) Languages() []string {
	return util.SortedStringKeys(gl.descriptors)
}

func (gl *GrammarLoader) LanguageRegistry() map[string]registry.LanguageSpec {
	return registry.Clone(gl.registry)
}

func (gl *GrammarLoader) SupportedExtensions() []string {
	set := make(map[string]bool)
	for _, spec := range gl.registry {
		if !spec.Enabled {
			continue
		}
		for _, ext := range spec.Extensions {
			set[ext] = true
		}
	}
	extensions := make([]string, 0, len(set))
	for ext := range set {
		extensions = append(extensions, ext)
	}
	sort.Strings(extensions)
	return extensions
}

// DetectLanguage maps a source path to an enabled language.
func (gl *GrammarLoader) DetectLanguage(path string) (string, bool) {
	return gl.detector.Detect(path)
}

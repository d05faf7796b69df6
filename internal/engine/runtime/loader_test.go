package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "tree-sitter-cerium/internal/core/errors"
	"tree-sitter-cerium/internal/engine/grammar"
	"tree-sitter-cerium/internal/engine/registry"
)

func TestNewGrammarLoader_Defaults(t *testing.T) {
	gl, err := NewGrammarLoader(context.Background(), "", nil, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"barq", "cerium"}, gl.Languages())
	assert.Equal(t, []string{".barq", ".ce", ".cerium"}, gl.SupportedExtensions())

	desc, ok := gl.Descriptor("cerium")
	require.True(t, ok)
	assert.Equal(t, "cerium", desc.Name())

	_, ok = gl.Host("cerium")
	assert.False(t, ok, "no compiled parser is attached without a grammars directory")

	lang, ok := gl.DetectLanguage("pkg/io.cerium")
	assert.True(t, ok)
	assert.Equal(t, "cerium", lang)
}

func TestNewGrammarLoader_SkipsDisabledLanguages(t *testing.T) {
	disabled := false
	languages, err := registry.BuildLanguageRegistry(map[string]registry.LanguageOverride{
		"barq": {Enabled: &disabled},
	})
	require.NoError(t, err)

	gl, err := NewGrammarLoader(context.Background(), "", languages, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"cerium"}, gl.Languages())
	_, ok := gl.DetectLanguage("main.barq")
	assert.False(t, ok)

	languages["cerium"] = registry.LanguageSpec{}
	assert.True(t, gl.LanguageRegistry()["cerium"].Enabled, "loader must keep its own registry copy")
}

func TestNewGrammarLoader_RejectsFileAsGrammarsPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "grammars")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := NewGrammarLoader(context.Background(), file, nil, false)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeValidationError))
}

func TestNewGrammarLoader_MissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := NewGrammarLoader(context.Background(), missing, nil, false)
	assert.NoError(t, err, "a missing directory is fine when verification is off")

	_, err = NewGrammarLoader(context.Background(), missing, nil, true)
	assert.Error(t, err)
}

func TestNewGrammarLoader_VerificationFailure(t *testing.T) {
	dir := t.TempDir()
	manifest := grammar.GrammarManifest{Version: 1, AllowedABIVersions: []int{14}}
	manifest.AddArtifact(grammar.GrammarArtifact{Language: "barq", ABIVersion: 14, GrammarPath: "barq/grammar.json", GrammarHash: "00"})
	require.NoError(t, manifest.Save(filepath.Join(dir, grammar.ManifestFileName)))

	_, err := NewGrammarLoader(context.Background(), dir, nil, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grammar verification failed")

	// Without verification the same directory loads, since no shared objects are listed.
	_, err = NewGrammarLoader(context.Background(), dir, nil, false)
	assert.NoError(t, err)
}

func TestRegisterHost_RejectsIncompatibleHost(t *testing.T) {
	gl, err := NewGrammarLoader(context.Background(), "", nil, false)
	require.NoError(t, err)

	err = gl.RegisterHost("barq", goLanguage())
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeIncompatible))
	_, ok := gl.Host("barq")
	assert.False(t, ok)

	err = gl.RegisterHost("kotlin", goLanguage())
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeNotFound))
}

package grammar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "tree-sitter-cerium/internal/core/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadGrammarManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	writeFile(t, path, `
version = 1
allowed_abi_versions = [14, 15]

[[artifacts]]
language = " BARQ "
abi_version = 14
grammar_path = "./barq/grammar.json"
grammar_sha256 = "ABCDEF"
source = "https://example.invalid/tree-sitter-barq"
approved_date = "2026-10-01"
`)

	manifest, err := LoadGrammarManifest(path)
	require.NoError(t, err)
	require.Len(t, manifest.Artifacts, 1)

	artifact := manifest.Artifacts[0]
	assert.Equal(t, "barq", artifact.Language)
	assert.Equal(t, "barq/grammar.json", artifact.GrammarPath)
	assert.Equal(t, "abcdef", artifact.GrammarHash)
	assert.False(t, artifact.HasSharedObject())
	assert.Equal(t, []int{14, 15}, manifest.AllowedABIVersions)
}

func TestLoadGrammarManifest_Missing(t *testing.T) {
	_, err := LoadGrammarManifest(filepath.Join(t.TempDir(), ManifestFileName))
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeNotFound))
}

func TestLoadGrammarManifest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "bad toml", body: "version = ", wantErr: "decode grammar manifest"},
		{name: "no version", body: "allowed_abi_versions = [14]", wantErr: "version must be > 0"},
		{name: "no abi list", body: "version = 1", wantErr: "allowed_abi_versions"},
		{name: "no artifacts", body: "version = 1\nallowed_abi_versions = [14]", wantErr: "at least one artifact"},
		{
			name: "duplicate language",
			body: `version = 1
allowed_abi_versions = [14]
[[artifacts]]
language = "barq"
abi_version = 14
grammar_path = "a.json"
grammar_sha256 = "aa"
[[artifacts]]
language = "barq"
abi_version = 14
grammar_path = "b.json"
grammar_sha256 = "bb"`,
			wantErr: "duplicate language",
		},
		{
			name: "half shared object",
			body: `version = 1
allowed_abi_versions = [14]
[[artifacts]]
language = "barq"
abi_version = 14
grammar_path = "a.json"
grammar_sha256 = "aa"
so_path = "libbarq.so"`,
			wantErr: "must be set together",
		},
		{
			name: "escaping path",
			body: `version = 1
allowed_abi_versions = [14]
[[artifacts]]
language = "barq"
abi_version = 14
grammar_path = "../outside.json"
grammar_sha256 = "aa"`,
			wantErr: "inside the grammars directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ManifestFileName)
			writeFile(t, path, tt.body)
			_, err := LoadGrammarManifest(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestManifest_ValidationNamesArtifact(t *testing.T) {
	manifest := GrammarManifest{
		Version:            1,
		AllowedABIVersions: []int{14},
		Artifacts: []GrammarArtifact{
			{Language: "barq", ABIVersion: 14, GrammarPath: "barq/grammar.json", GrammarHash: "aa"},
			{Language: "cerium", ABIVersion: 14, GrammarPath: "/etc/grammar.json", GrammarHash: "bb"},
		},
	}

	err := manifest.Validate()
	require.Error(t, err)
	var de *domainerrors.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domainerrors.CodeValidationError, de.Code)
	assert.Equal(t, "artifacts[1]", de.Context[domainerrors.CtxArtifact])
}

func TestReadFailure(t *testing.T) {
	denied := &os.PathError{Op: "open", Path: "grammars/manifest.toml", Err: os.ErrPermission}
	err := readFailure(denied, "grammars/manifest.toml", "grammar manifest")
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodePermissionDenied))
	assert.ErrorIs(t, err, os.ErrPermission)

	missing := &os.PathError{Op: "open", Path: "grammars/manifest.toml", Err: os.ErrNotExist}
	assert.True(t, domainerrors.IsCode(readFailure(missing, "grammars/manifest.toml", "grammar manifest"), domainerrors.CodeNotFound))

	other := os.ErrClosed
	assert.Equal(t, other, readFailure(other, "grammars/manifest.toml", "grammar manifest"))
}

func TestManifest_AddRemoveSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestFileName)
	manifest := GrammarManifest{Version: 1, AllowedABIVersions: []int{14}}

	manifest.AddArtifact(GrammarArtifact{Language: "cerium", ABIVersion: 14, GrammarPath: "cerium/grammar.json", GrammarHash: "11"})
	manifest.AddArtifact(GrammarArtifact{Language: "barq", ABIVersion: 14, GrammarPath: "barq/grammar.json", GrammarHash: "22"})
	manifest.AddArtifact(GrammarArtifact{Language: "Cerium", ABIVersion: 14, GrammarPath: "cerium/grammar.json", GrammarHash: "33"})

	require.Len(t, manifest.Artifacts, 2)
	assert.Equal(t, "barq", manifest.Artifacts[0].Language)
	assert.Equal(t, "33", manifest.Artifacts[1].GrammarHash)

	require.NoError(t, manifest.Save(path))
	reloaded, err := LoadGrammarManifest(path)
	require.NoError(t, err)
	assert.Equal(t, manifest, reloaded)

	assert.True(t, reloaded.RemoveArtifact("barq"))
	assert.False(t, reloaded.RemoveArtifact("barq"))
	_, ok := reloaded.Artifact("barq")
	assert.False(t, ok)

	assert.True(t, reloaded.RemoveArtifact("cerium"))
	assert.Error(t, reloaded.Save(path), "an empty manifest must not be written")
}

func TestCalculateSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grammar.json")
	writeFile(t, path, "abc")

	sum, err := CalculateSHA256(path)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)

	_, err = CalculateSHA256(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

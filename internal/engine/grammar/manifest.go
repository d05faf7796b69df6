// Package grammar reads the grammars directory manifest and checks the
// artifacts it lists.
package grammar

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	domainerrors "tree-sitter-cerium/internal/core/errors"
	"tree-sitter-cerium/internal/shared/util"
)

// ManifestFileName is the manifest looked up inside a grammars directory.
const ManifestFileName = "manifest.toml"

type GrammarManifest struct {
	Version            int               `toml:"version"`
	AllowedABIVersions []int             `toml:"allowed_abi_versions"`
	Artifacts          []GrammarArtifact `toml:"artifacts"`
}

type GrammarArtifact struct {
	Language         string `toml:"language"`
	ABIVersion       int    `toml:"abi_version"`
	GrammarPath      string `toml:"grammar_path"`
	GrammarHash      string `toml:"grammar_sha256"`
	SharedObjectPath string `toml:"so_path,omitempty"`
	SharedObjectHash string `toml:"so_sha256,omitempty"`
	Source           string `toml:"source,omitempty"`
	ApprovedDate     string `toml:"approved_date,omitempty"`
}

// HasSharedObject reports whether the artifact ships a compiled parser.
func (a GrammarArtifact) HasSharedObject() bool {
	return a.SharedObjectPath != ""
}

// LoadGrammarManifest reads and validates a manifest file.
func LoadGrammarManifest(path string) (GrammarManifest, error) {
	manifest, err := ReadGrammarManifest(path)
	if err != nil {
		return GrammarManifest{}, err
	}
	if err := manifest.Validate(); err != nil {
		return GrammarManifest{}, domainerrors.AddContext(err, domainerrors.CtxPath, path)
	}
	return manifest, nil
}

// ReadGrammarManifest decodes a manifest without validating it. Artifact
// fields are normalized.
func ReadGrammarManifest(path string) (GrammarManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GrammarManifest{}, readFailure(err, path, "grammar manifest")
	}

	var manifest GrammarManifest
	if _, err := toml.Decode(string(data), &manifest); err != nil {
		de := &domainerrors.DomainError{Code: domainerrors.CodeValidationError, Message: "decode grammar manifest", Err: err}
		return GrammarManifest{}, de.WithContext(domainerrors.CtxPath, path)
	}
	for i := range manifest.Artifacts {
		manifest.Artifacts[i] = normalizeArtifact(manifest.Artifacts[i])
	}
	return manifest, nil
}

// readFailure classifies an error from reading a file in the grammars
// directory. Errors other than missing or unreadable files pass through.
func readFailure(err error, path, what string) error {
	var de *domainerrors.DomainError
	switch {
	case os.IsNotExist(err):
		de = &domainerrors.DomainError{Code: domainerrors.CodeNotFound, Message: what + " not found", Err: err}
	case os.IsPermission(err):
		de = &domainerrors.DomainError{Code: domainerrors.CodePermissionDenied, Message: what + " is not readable", Err: err}
	default:
		return err
	}
	return de.WithContext(domainerrors.CtxPath, path)
}

func normalizeArtifact(artifact GrammarArtifact) GrammarArtifact {
	artifact.Language = strings.TrimSpace(strings.ToLower(artifact.Language))
	artifact.GrammarPath = cleanRelPath(artifact.GrammarPath)
	artifact.GrammarHash = strings.TrimSpace(strings.ToLower(artifact.GrammarHash))
	artifact.SharedObjectPath = cleanRelPath(artifact.SharedObjectPath)
	artifact.SharedObjectHash = strings.TrimSpace(strings.ToLower(artifact.SharedObjectHash))
	artifact.Source = strings.TrimSpace(artifact.Source)
	artifact.ApprovedDate = strings.TrimSpace(artifact.ApprovedDate)
	return artifact
}

func cleanRelPath(path string) string {
	return util.NormalizePatternPath(path)
}

func (m GrammarManifest) Validate() error {
	if m.Version <= 0 {
		return domainerrors.New(domainerrors.CodeValidationError, "manifest version must be > 0")
	}
	if len(m.AllowedABIVersions) == 0 {
		return domainerrors.New(domainerrors.CodeValidationError, "manifest must define allowed_abi_versions")
	}
	if len(m.Artifacts) == 0 {
		return domainerrors.New(domainerrors.CodeValidationError, "manifest must define at least one artifact")
	}

	seen := make(map[string]bool, len(m.Artifacts))
	for i, artifact := range m.Artifacts {
		ref := fmt.Sprintf("artifacts[%d]", i)
		invalid := func(code domainerrors.ErrorCode, format string, args ...interface{}) error {
			return domainerrors.AddContext(domainerrors.Newf(code, format, args...), domainerrors.CtxArtifact, ref)
		}
		if artifact.Language == "" {
			return invalid(domainerrors.CodeValidationError, "%s.language must not be empty", ref)
		}
		if seen[artifact.Language] {
			return invalid(domainerrors.CodeConflict, "duplicate language entry %q in manifest", artifact.Language)
		}
		seen[artifact.Language] = true
		if artifact.ABIVersion <= 0 {
			return invalid(domainerrors.CodeValidationError, "%s.abi_version must be > 0", ref)
		}
		if artifact.GrammarPath == "" || artifact.GrammarHash == "" {
			return invalid(domainerrors.CodeValidationError, "%s.grammar_path and grammar_sha256 must not be empty", ref)
		}
		if (artifact.SharedObjectPath == "") != (artifact.SharedObjectHash == "") {
			return invalid(domainerrors.CodeValidationError, "%s.so_path and so_sha256 must be set together", ref)
		}
		for _, rel := range []string{artifact.GrammarPath, artifact.SharedObjectPath} {
			if filepath.IsAbs(rel) || util.HasPathPrefix(rel, "..") {
				return invalid(domainerrors.CodeValidationError, "%s path %q must stay inside the grammars directory", ref, rel)
			}
		}
	}
	return nil
}

// Artifact returns the entry for a language.
func (m GrammarManifest) Artifact(language string) (GrammarArtifact, bool) {
	language = strings.TrimSpace(strings.ToLower(language))
	for _, artifact := range m.Artifacts {
		if artifact.Language == language {
			return artifact, true
		}
	}
	return GrammarArtifact{}, false
}

// AddArtifact inserts or replaces the entry for artifact.Language and keeps
// entries sorted by language.
func (m *GrammarManifest) AddArtifact(artifact GrammarArtifact) {
	artifact = normalizeArtifact(artifact)
	replaced := false
	for i := range m.Artifacts {
		if m.Artifacts[i].Language == artifact.Language {
			m.Artifacts[i] = artifact
			replaced = true
			break
		}
	}
	if !replaced {
		m.Artifacts = append(m.Artifacts, artifact)
	}
	sort.Slice(m.Artifacts, func(i, j int) bool {
		return m.Artifacts[i].Language < m.Artifacts[j].Language
	})
}

// RemoveArtifact drops the entry for a language and reports whether one existed.
func (m *GrammarManifest) RemoveArtifact(language string) bool {
	language = strings.TrimSpace(strings.ToLower(language))
	for i := range m.Artifacts {
		if m.Artifacts[i].Language == language {
			m.Artifacts = append(m.Artifacts[:i], m.Artifacts[i+1:]...)
			return true
		}
	}
	return false
}

// Save validates the manifest and writes it atomically.
func (m GrammarManifest) Save(path string) error {
	if err := m.Validate(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "encode grammar manifest")
	}

	tmp := path + ".tmp"
	if err := util.WriteFileWithDirs(tmp, buf.Bytes(), 0o644); err != nil {
		return domainerrors.AddContext(err, domainerrors.CtxPath, tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return domainerrors.AddContext(err, domainerrors.CtxPath, path)
	}
	return nil
}

// CalculateSHA256 returns the hex SHA-256 of a file.
func CalculateSHA256(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}

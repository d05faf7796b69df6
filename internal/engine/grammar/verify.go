package grammar

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	domainerrors "tree-sitter-cerium/internal/core/errors"
	"tree-sitter-cerium/internal/engine/registry"
)

// Artifact kinds reported in VerificationIssue.ArtifactKind.
const (
	KindGrammar      = "grammar"
	KindSharedObject = "shared-object"
	KindDescriptor   = "descriptor"
)

type VerificationIssue struct {
	Language     string
	ArtifactKind string
	ArtifactPath string
	ExpectedHash string
	ActualHash   string
	Reason       string
}

func (i VerificationIssue) String() string {
	var b strings.Builder
	b.WriteString(i.Language)
	if i.ArtifactKind != "" {
		b.WriteString(" ")
		b.WriteString(i.ArtifactKind)
	}
	if i.ArtifactPath != "" {
		b.WriteString(" ")
		b.WriteString(i.ArtifactPath)
	}
	b.WriteString(": ")
	b.WriteString(i.Reason)
	if i.ExpectedHash != "" || i.ActualHash != "" {
		fmt.Fprintf(&b, " (expected %s, got %s)", shortHash(i.ExpectedHash), shortHash(i.ActualHash))
	}
	return b.String()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// VerifyGrammarArtifacts checks every manifest entry against the files under baseDir.
func VerifyGrammarArtifacts(baseDir string, manifest GrammarManifest) ([]VerificationIssue, error) {
	if err := checkBaseDir(baseDir); err != nil {
		return nil, err
	}

	allowed := make(map[int]bool, len(manifest.AllowedABIVersions))
	for _, version := range manifest.AllowedABIVersions {
		allowed[version] = true
	}

	issues := make([]VerificationIssue, 0)
	for _, artifact := range manifest.Artifacts {
		if !allowed[artifact.ABIVersion] {
			issues = append(issues, VerificationIssue{
				Language: artifact.Language,
				Reason:   fmt.Sprintf("unsupported ABI version %d", artifact.ABIVersion),
			})
		}
		issues = append(issues, verifyArtifactHash(baseDir, artifact.Language, KindGrammar, artifact.GrammarPath, artifact.GrammarHash)...)
		if artifact.HasSharedObject() {
			issues = append(issues, verifyArtifactHash(baseDir, artifact.Language, KindSharedObject, artifact.SharedObjectPath, artifact.SharedObjectHash)...)
		}
	}

	sortIssues(issues)
	return issues, nil
}

// VerifyRegistryArtifacts verifies the manifest in baseDir for the enabled
// languages of a registry and compares it with the descriptors compiled into
// this binary.
func VerifyRegistryArtifacts(baseDir string, languages map[string]registry.LanguageSpec) ([]VerificationIssue, error) {
	if err := checkBaseDir(baseDir); err != nil {
		return nil, err
	}
	manifest, err := LoadGrammarManifest(filepath.Join(baseDir, ManifestFileName))
	if err != nil {
		return nil, err
	}

	issues, err := VerifyGrammarArtifacts(baseDir, manifest)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool)
	for _, name := range registry.Names() {
		known[name] = true
	}

	filtered := make([]VerificationIssue, 0, len(issues))
	for _, issue := range issues {
		if spec, ok := languages[issue.Language]; ok && spec.Enabled {
			filtered = append(filtered, issue)
		}
	}

	for _, artifact := range manifest.Artifacts {
		if !known[artifact.Language] {
			filtered = append(filtered, VerificationIssue{
				Language: artifact.Language,
				Reason:   "manifest lists a language with no built-in grammar",
			})
		}
	}

	for name, spec := range languages {
		if !spec.Enabled {
			continue
		}
		artifact, ok := manifest.Artifact(name)
		if !ok {
			if spec.RequireVerification {
				filtered = append(filtered, VerificationIssue{
					Language: name,
					Reason:   "language missing from manifest",
				})
			}
			continue
		}
		filtered = append(filtered, verifyDescriptor(baseDir, artifact)...)
	}

	sortIssues(filtered)
	return filtered, nil
}

// verifyDescriptor reports drift between the compiled-in descriptor and the
// artifact on disk.
func verifyDescriptor(baseDir string, artifact GrammarArtifact) []VerificationIssue {
	desc, err := registry.Descriptor(artifact.Language)
	if err != nil {
		return nil
	}

	var issues []VerificationIssue
	if uint32(artifact.ABIVersion) != desc.ABIVersion() {
		issues = append(issues, VerificationIssue{
			Language:     artifact.Language,
			ArtifactKind: KindDescriptor,
			Reason:       fmt.Sprintf("manifest ABI version %d does not match compiled descriptor ABI %d", artifact.ABIVersion, desc.ABIVersion()),
		})
	}

	actual, err := CalculateSHA256(filepath.Join(baseDir, filepath.FromSlash(artifact.GrammarPath)))
	if err != nil {
		// Already reported as a missing grammar artifact.
		return issues
	}
	if actual != desc.ArtifactHash() {
		issues = append(issues, VerificationIssue{
			Language:     artifact.Language,
			ArtifactKind: KindDescriptor,
			ArtifactPath: artifact.GrammarPath,
			ExpectedHash: desc.ArtifactHash(),
			ActualHash:   actual,
			Reason:       "grammar artifact differs from compiled descriptor",
		})
	}
	return issues
}

func checkBaseDir(baseDir string) error {
	if strings.TrimSpace(baseDir) == "" {
		return domainerrors.New(domainerrors.CodeValidationError, "baseDir must not be empty")
	}
	info, err := os.Stat(baseDir)
	if err != nil {
		de := &domainerrors.DomainError{Code: domainerrors.CodeNotFound, Message: "grammars directory not found", Err: err}
		return de.WithContext(domainerrors.CtxPath, baseDir)
	}
	if !info.IsDir() {
		return domainerrors.Newf(domainerrors.CodeValidationError, "grammar base path is not a directory: %s", baseDir)
	}
	return nil
}

func sortIssues(issues []VerificationIssue) {
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Language != issues[j].Language {
			return issues[i].Language < issues[j].Language
		}
		if issues[i].ArtifactKind != issues[j].ArtifactKind {
			return issues[i].ArtifactKind < issues[j].ArtifactKind
		}
		if issues[i].ArtifactPath != issues[j].ArtifactPath {
			return issues[i].ArtifactPath < issues[j].ArtifactPath
		}
		return issues[i].Reason < issues[j].Reason
	})
}

func verifyArtifactHash(baseDir, language, kind, relPath, expectedHash string) []VerificationIssue {
	fullPath := filepath.Join(baseDir, filepath.FromSlash(relPath))
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return []VerificationIssue{{
			Language:     language,
			ArtifactKind: kind,
			ArtifactPath: relPath,
			ExpectedHash: expectedHash,
			ActualHash:   "<missing>",
			Reason:       "artifact missing or unreadable",
		}}
	}

	actual := fmt.Sprintf("%x", sha256.Sum256(data))
	if actual == expectedHash {
		return nil
	}
	return []VerificationIssue{{
		Language:     language,
		ArtifactKind: kind,
		ArtifactPath: relPath,
		ExpectedHash: expectedHash,
		ActualHash:   actual,
		Reason:       "checksum mismatch",
	}}
}

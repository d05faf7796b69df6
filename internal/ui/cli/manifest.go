package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	domainerrors "tree-sitter-cerium/internal/core/errors"
	"tree-sitter-cerium/internal/engine/grammar"
	"tree-sitter-cerium/internal/engine/registry"
	"tree-sitter-cerium/pkg/descriptor"
)

func (s *session) runManifest(args []string) int {
	if len(args) == 0 {
		s.printManifestHelp()
		return 2
	}

	switch args[0] {
	case "list":
		return s.runManifestList()
	case "add":
		return s.runManifestAdd(args[1:])
	case "remove":
		if len(args) != 2 {
			return s.usageError("manifest remove <language>")
		}
		return s.runManifestRemove(args[1])
	default:
		fmt.Fprintf(s.stderr, "Unknown manifest command: %s\n", args[0])
		s.printManifestHelp()
		return 2
	}
}

func (s *session) printManifestHelp() {
	fmt.Fprintln(s.stderr, "Usage: cerium manifest <command> [args]")
	fmt.Fprintln(s.stderr, "\nCommands:")
	fmt.Fprintln(s.stderr, "  list                                     List manifest artifacts")
	fmt.Fprintln(s.stderr, "  add [-so path] [-source url] <language>  Record <language>/grammar.json and an optional compiled parser")
	fmt.Fprintln(s.stderr, "  remove <language>                        Drop a language from the manifest")
}

func (s *session) manifestPath() string {
	return filepath.Join(s.cfg.ResolvedGrammarsPath(), grammar.ManifestFileName)
}

func (s *session) runManifestList() int {
	m, err := grammar.LoadGrammarManifest(s.manifestPath())
	if err != nil {
		return s.fail("failed to load manifest", err)
	}

	fmt.Fprintln(s.stdout, titleStyle.Render(fmt.Sprintf("Manifest v%d (ABI %s)", m.Version, joinInts(m.AllowedABIVersions))))
	w := tabwriter.NewWriter(s.stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "LANGUAGE\tABI\tGRAMMAR\tSHARED OBJECT\tSOURCE\tAPPROVED")
	for _, art := range m.Artifacts {
		so := "-"
		if art.HasSharedObject() {
			so = art.SharedObjectPath
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", art.Language, art.ABIVersion, art.GrammarPath, so, art.Source, art.ApprovedDate)
	}
	w.Flush()
	return 0
}

// runManifestAdd hashes <grammars>/<language>/grammar.json (and -so, a path
// relative to the grammars directory) and records them. The manifest is
// created when missing.
func (s *session) runManifestAdd(args []string) int {
	fs := newFlagSet("manifest add", s.stderr)
	soPath := fs.String("so", "", "Compiled parser, relative to the grammars directory")
	source := fs.String("source", "", "Where the artifacts came from")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		return s.usageError("manifest add [-so path] [-source url] <language>")
	}
	language := strings.ToLower(strings.TrimSpace(fs.Arg(0)))
	if _, err := registry.Descriptor(language); err != nil {
		return s.fail("cannot add artifact", err)
	}

	base := s.cfg.ResolvedGrammarsPath()
	m, err := grammar.ReadGrammarManifest(s.manifestPath())
	switch {
	case domainerrors.IsCode(err, domainerrors.CodeNotFound):
		m = grammar.GrammarManifest{
			Version:            1,
			AllowedABIVersions: []int{int(descriptor.MinCompatibleABIVersion), int(descriptor.ABIVersion), int(descriptor.MaxCompatibleABIVersion)},
		}
	case err != nil:
		return s.fail("failed to load manifest", err)
	}

	artifact := grammar.GrammarArtifact{
		Language:     language,
		ABIVersion:   int(descriptor.ABIVersion),
		GrammarPath:  language + "/grammar.json",
		Source:       *source,
		ApprovedDate: time.Now().UTC().Format("2006-01-02"),
	}
	artifact.GrammarHash, err = grammar.CalculateSHA256(filepath.Join(base, filepath.FromSlash(artifact.GrammarPath)))
	if err != nil {
		return s.fail("failed to hash grammar artifact", err)
	}
	if *soPath != "" {
		artifact.SharedObjectPath = filepath.ToSlash(*soPath)
		artifact.SharedObjectHash, err = grammar.CalculateSHA256(filepath.Join(base, *soPath))
		if err != nil {
			return s.fail("failed to hash shared object", err)
		}
	}

	m.AddArtifact(artifact)
	if err := m.Save(s.manifestPath()); err != nil {
		return s.fail("failed to save manifest", err)
	}
	fmt.Fprintf(s.stdout, "Recorded %s (%s).\n", language, shortFingerprint(artifact.GrammarHash))
	return 0
}

func (s *session) runManifestRemove(language string) int {
	m, err := grammar.LoadGrammarManifest(s.manifestPath())
	if err != nil {
		return s.fail("failed to load manifest", err)
	}
	if !m.RemoveArtifact(language) {
		fmt.Fprintf(s.stderr, "%s is not in the manifest\n", language)
		return 1
	}
	if len(m.Artifacts) == 0 {
		// A manifest must list at least one artifact.
		if err := os.Remove(s.manifestPath()); err != nil {
			return s.fail("failed to delete manifest", err)
		}
		fmt.Fprintf(s.stdout, "Removed %s; the manifest was empty and has been deleted.\n", language)
		return 0
	}
	if err := m.Save(s.manifestPath()); err != nil {
		return s.fail("failed to save manifest", err)
	}
	fmt.Fprintf(s.stdout, "Removed %s from the manifest.\n", language)
	return 0
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, ",")
}


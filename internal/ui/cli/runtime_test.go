package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tree-sitter-cerium/internal/data/fingerprints"
	"tree-sitter-cerium/internal/engine/registry"
	"tree-sitter-cerium/pkg/descriptor"
)

// setupWorkspace writes a config and a grammars directory holding the
// artifacts the bindings were built from. extra is appended to the config.
func setupWorkspace(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range registry.Names() {
		data, err := os.ReadFile(filepath.Join("..", "..", "..", "bindings", "go", name, "grammar.json"))
		if err != nil {
			t.Fatal(err)
		}
		target := filepath.Join(dir, "grammars", name, "grammar.json")
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfgPath := filepath.Join(dir, "cerium.toml")
	content := "grammars_path = \"grammars\"\n\n[history]\nenabled = true\npath = \"state/fp.db\"\n\n" + extra
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, cfgPath
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func addManifestEntries(t *testing.T, cfgPath string, languages ...string) {
	t.Helper()
	for _, lang := range languages {
		if code, _, stderr := runCLI(t, "-config", cfgPath, "manifest", "add", lang); code != 0 {
			t.Fatalf("manifest add %s failed (%d): %s", lang, code, stderr)
		}
	}
}

func TestRun_VersionAndUsage(t *testing.T) {
	code, stdout, _ := runCLI(t, "-version")
	if code != 0 || !strings.Contains(stdout, "cerium v"+versionString) {
		t.Fatalf("unexpected version output (%d): %q", code, stdout)
	}

	code, _, stderr := runCLI(t)
	if code != 2 || !strings.Contains(stderr, "missing command") {
		t.Fatalf("expected usage error, got %d: %q", code, stderr)
	}

	_, cfgPath := setupWorkspace(t, "")
	code, _, stderr = runCLI(t, "-config", cfgPath, "frobnicate")
	if code != 2 || !strings.Contains(stderr, `unknown command "frobnicate"`) {
		t.Fatalf("expected unknown command error, got %d: %q", code, stderr)
	}

	if code, _, _ := runCLI(t, "-no-such-flag"); code != 2 {
		t.Fatalf("expected flag error exit 2, got %d", code)
	}
}

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{"-config", "x.toml", "-verbose", "inspect", "-ui", "barq"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if opts.configPath != "x.toml" || !opts.verbose {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.command != "inspect" || strings.Join(opts.args, " ") != "-ui barq" {
		t.Fatalf("unexpected command %q args %v", opts.command, opts.args)
	}
}

func TestRun_MissingExplicitConfigFails(t *testing.T) {
	code, _, stderr := runCLI(t, "-config", filepath.Join(t.TempDir(), "nope.toml"), "list")
	if code != 1 || !strings.Contains(stderr, "failed to load config") {
		t.Fatalf("expected config error, got %d: %q", code, stderr)
	}
}

func TestRun_ManifestAddListRemove(t *testing.T) {
	dir, cfgPath := setupWorkspace(t, "")

	addManifestEntries(t, cfgPath, "barq")
	code, stdout, stderr := runCLI(t, "-config", cfgPath, "manifest", "add", "-source", "https://example.com/cerium", "cerium")
	if code != 0 {
		t.Fatalf("manifest add cerium failed: %s", stderr)
	}
	if !strings.Contains(stdout, "Recorded cerium") {
		t.Fatalf("unexpected add output %q", stdout)
	}

	code, stdout, _ = runCLI(t, "-config", cfgPath, "manifest", "list")
	if code != 0 {
		t.Fatalf("manifest list failed: %d", code)
	}
	for _, want := range []string{"barq/grammar.json", "cerium/grammar.json", "https://example.com/cerium", "ABI 13,14,15"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("manifest list missing %q:\n%s", want, stdout)
		}
	}

	if code, _, _ := runCLI(t, "-config", cfgPath, "manifest", "add", "zig"); code != 1 {
		t.Fatalf("expected unknown language to fail, got %d", code)
	}
	if code, _, stderr := runCLI(t, "-config", cfgPath, "manifest", "remove", "zig"); code != 1 || !strings.Contains(stderr, "not in the manifest") {
		t.Fatalf("expected missing entry error, got %d: %q", code, stderr)
	}

	if code, _, _ := runCLI(t, "-config", cfgPath, "manifest", "remove", "barq"); code != 0 {
		t.Fatalf("manifest remove barq failed: %d", code)
	}
	code, stdout, _ = runCLI(t, "-config", cfgPath, "manifest", "remove", "cerium")
	if code != 0 || !strings.Contains(stdout, "deleted") {
		t.Fatalf("expected empty manifest to be deleted, got %d: %q", code, stdout)
	}
	if _, err := os.Stat(filepath.Join(dir, "grammars", "manifest.toml")); !os.IsNotExist(err) {
		t.Fatalf("expected manifest to be gone, stat err = %v", err)
	}

	if code, _, _ := runCLI(t, "-config", cfgPath, "manifest", "explode"); code != 2 {
		t.Fatalf("expected unknown manifest command exit 2, got %d", code)
	}
}

func TestRun_VerifyRecordsHistory(t *testing.T) {
	dir, cfgPath := setupWorkspace(t, "")
	addManifestEntries(t, cfgPath, "barq", "cerium")

	for i := 0; i < 2; i++ {
		code, stdout, stderr := runCLI(t, "-config", cfgPath, "verify")
		if code != 0 {
			t.Fatalf("verify run %d failed (%d):\n%s\n%s", i, code, stdout, stderr)
		}
		if !strings.Contains(stdout, "passed for 2 languages") || !strings.Contains(stdout, "Recorded run") {
			t.Fatalf("unexpected verify output:\n%s", stdout)
		}
		if strings.Contains(stdout, "fingerprint changed") {
			t.Fatalf("unexpected drift on run %d:\n%s", i, stdout)
		}
	}

	store, err := fingerprints.Open(filepath.Join(dir, "state", "fp.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	records, err := store.List("barq", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 recorded barq runs, got %d", len(records))
	}
	desc, _ := registry.Descriptor("barq")
	if records[0].Fingerprint != desc.Fingerprint() {
		t.Fatalf("recorded fingerprint %s does not match descriptor %s", records[0].Fingerprint, desc.Fingerprint())
	}

	if code, _, _ := runCLI(t, "-config", cfgPath, "verify", "-no-history"); code != 0 {
		t.Fatalf("verify -no-history failed: %d", code)
	}
	records, _ = store.List("barq", 0)
	if len(records) != 2 {
		t.Fatalf("expected -no-history to skip recording, got %d runs", len(records))
	}
}

func TestRun_VerifyReportsMissingManifestEntry(t *testing.T) {
	_, cfgPath := setupWorkspace(t, "")
	addManifestEntries(t, cfgPath, "barq")

	code, stdout, _ := runCLI(t, "-config", cfgPath, "verify")
	if code != 1 {
		t.Fatalf("expected verify failure, got %d", code)
	}
	if !strings.Contains(stdout, "language missing from manifest") || !strings.Contains(stdout, "verification failed") {
		t.Fatalf("unexpected output:\n%s", stdout)
	}
}

func TestRun_VerifyWithoutGrammarsDirectory(t *testing.T) {
	dir, cfgPath := setupWorkspace(t, "")
	if err := os.RemoveAll(filepath.Join(dir, "grammars")); err != nil {
		t.Fatal(err)
	}
	code, _, stderr := runCLI(t, "-config", cfgPath, "verify")
	if code != 1 || !strings.Contains(stderr, "grammars directory not found") {
		t.Fatalf("expected missing directory error, got %d: %q", code, stderr)
	}
}

func TestRun_VerifyDriftFailsWhenConfigured(t *testing.T) {
	dir, cfgPath := setupWorkspace(t, "[grammar_verification]\nfail_on_drift = true\n")
	addManifestEntries(t, cfgPath, "barq", "cerium")

	store, err := fingerprints.Open(filepath.Join(dir, "state", "fp.db"))
	if err != nil {
		t.Fatal(err)
	}
	desc, _ := registry.Descriptor("barq")
	previous := fingerprints.NewRun(filepath.Join(dir, "grammars"), []*descriptor.Language{desc})
	previous.Timestamp = previous.Timestamp.Add(-time.Hour)
	previous.Records[0].Timestamp = previous.Timestamp
	previous.Records[0].Fingerprint = strings.Repeat("0", 64)
	if err := store.Record(previous); err != nil {
		t.Fatal(err)
	}
	store.Close()

	code, stdout, _ := runCLI(t, "-config", cfgPath, "verify")
	if code != 1 {
		t.Fatalf("expected drift to fail verify, got %d:\n%s", code, stdout)
	}
	if !strings.Contains(stdout, "barq: fingerprint changed since run "+previous.ID) {
		t.Fatalf("expected drift report, got:\n%s", stdout)
	}

	// The new fingerprint is now the latest one, so the next run is clean.
	if code, stdout, _ := runCLI(t, "-config", cfgPath, "verify"); code != 0 {
		t.Fatalf("expected second run to pass, got %d:\n%s", code, stdout)
	}
}

func TestRun_VerifyDisabled(t *testing.T) {
	_, cfgPath := setupWorkspace(t, "[grammar_verification]\nenabled = false\n")
	code, stdout, _ := runCLI(t, "-config", cfgPath, "verify")
	if code != 0 || !strings.Contains(stdout, "disabled") {
		t.Fatalf("expected disabled notice, got %d: %q", code, stdout)
	}
}

func TestRun_ListAndInspect(t *testing.T) {
	_, cfgPath := setupWorkspace(t, "[languages.cerium]\nenabled = false\n")

	code, stdout, _ := runCLI(t, "-config", cfgPath, "list")
	if code != 0 {
		t.Fatalf("list failed: %d", code)
	}
	barq, _ := registry.Descriptor("barq")
	for _, want := range []string{"LANGUAGE", "barq", "cerium", "false", ".barq", barq.Fingerprint()[:12]} {
		if !strings.Contains(stdout, want) {
			t.Errorf("list output missing %q:\n%s", want, stdout)
		}
	}

	code, stdout, _ = runCLI(t, "-config", cfgPath, "inspect", "barq")
	if code != 0 {
		t.Fatalf("inspect failed: %d", code)
	}
	for _, want := range []string{"Start symbol:  module", "Word token:    identifier", "Symbols (", "Fields (", "Productions (", barq.Fingerprint()} {
		if !strings.Contains(stdout, want) {
			t.Errorf("inspect output missing %q", want)
		}
	}

	if code, _, _ := runCLI(t, "-config", cfgPath, "inspect", "zig"); code != 1 {
		t.Fatalf("expected unknown grammar to fail, got %d", code)
	}
	if code, _, _ := runCLI(t, "-config", cfgPath, "inspect"); code != 2 {
		t.Fatalf("expected usage error, got %d", code)
	}
}

func TestRun_InspectFormats(t *testing.T) {
	_, cfgPath := setupWorkspace(t, "")

	tests := []struct {
		format string
		want   string
	}{
		{format: "dot", want: `digraph "barq" {`},
		{format: "mermaid", want: "flowchart LR"},
		{format: "symbols", want: "ID\tName\tKind\tNamed\tVisible\tExtra\n0\tend\tend"},
		{format: "productions", want: "Index\tLHS\tSteps"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			code, stdout, _ := runCLI(t, "-config", cfgPath, "inspect", "-format", tt.format, "barq")
			if code != 0 {
				t.Fatalf("inspect -format %s failed: %d", tt.format, code)
			}
			if !strings.Contains(stdout, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, stdout)
			}
		})
	}

	if code, _, _ := runCLI(t, "-config", cfgPath, "inspect", "-format", "svg", "barq"); code != 1 {
		t.Fatalf("expected unknown format to fail, got %d", code)
	}
}

func TestRun_ParseWithoutCompiledGrammar(t *testing.T) {
	dir, cfgPath := setupWorkspace(t, "")
	addManifestEntries(t, cfgPath, "barq", "cerium")

	src := filepath.Join(dir, "main.barq")
	if err := os.WriteFile(src, []byte("module main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, stderr := runCLI(t, "-config", cfgPath, "parse", src)
	if code != 1 || !strings.Contains(stderr, "no compiled parser loaded") {
		t.Fatalf("expected NOT_SUPPORTED error, got %d: %q", code, stderr)
	}

	code, _, stderr = runCLI(t, "-config", cfgPath, "parse", filepath.Join(dir, "notes.txt"))
	if code != 1 || !strings.Contains(stderr, "unsupported language") {
		t.Fatalf("expected unsupported language, got %d: %q", code, stderr)
	}
}

func TestFormatProduction(t *testing.T) {
	desc, err := descriptor.Load([]byte(`{
  "name": "sum",
  "rules": {
    "expr": {"type": "PREC_LEFT", "value": 2, "content": {"type": "SEQ", "members": [
      {"type": "FIELD", "name": "left", "content": {"type": "SYMBOL", "name": "number"}},
      {"type": "STRING", "value": "+"},
      {"type": "ALIAS", "value": "rhs", "named": true, "content": {"type": "SYMBOL", "name": "number"}}
    ]}},
    "number": {"type": "PATTERN", "value": "[0-9]+"}
  }
}`))
	if err != nil {
		t.Fatal(err)
	}
	p, ok := desc.Production(0)
	if !ok {
		t.Fatal("expected a production")
	}
	got := formatProduction(desc, p)
	want := `expr -> left:number "+" number@rhs  [prec 2, left]`
	if got != want {
		t.Fatalf("formatProduction = %q, want %q", got, want)
	}
}

func TestVerifyReportFailed(t *testing.T) {
	tests := []struct {
		name        string
		report      verifyReport
		failOnDrift bool
		want        bool
	}{
		{name: "clean", want: false},
		{name: "drift tolerated", report: verifyReport{Drift: []fingerprints.Drift{{Language: "barq"}}}, want: false},
		{name: "drift fatal", report: verifyReport{Drift: []fingerprints.Drift{{Language: "barq"}}}, failOnDrift: true, want: true},
		{name: "host error", report: verifyReport{HostErr: os.ErrNotExist}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.failed(tt.failOnDrift); got != tt.want {
				t.Fatalf("failed() = %v, want %v", got, tt.want)
			}
		})
	}
}

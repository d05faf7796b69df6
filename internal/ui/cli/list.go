package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"tree-sitter-cerium/internal/engine/registry"
	"tree-sitter-cerium/internal/engine/runtime"
	"tree-sitter-cerium/internal/shared/util"
)

func (s *session) runList(ctx context.Context, args []string) int {
	if len(args) != 0 {
		return s.usageError("list")
	}
	languages, err := s.languages()
	if err != nil {
		return s.fail("invalid language registry", err)
	}

	loader, err := runtime.NewGrammarLoader(ctx, s.cfg.ResolvedGrammarsPath(), languages, false)
	if err != nil {
		slog.Warn("compiled grammars unavailable", "path", s.cfg.ResolvedGrammarsPath(), "error", err)
		loader = nil
	}

	fmt.Fprintln(s.stdout, titleStyle.Render("Grammars"))
	w := tabwriter.NewWriter(s.stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "LANGUAGE\tENABLED\tEXTENSIONS\tABI\tSYMBOLS\tTOKENS\tFIELDS\tPRODUCTIONS\tFINGERPRINT\tHOST")
	for _, name := range util.SortedStringKeys(languages) {
		spec := languages[name]
		desc, err := registry.Descriptor(name)
		if err != nil {
			return s.fail("missing descriptor", err, "language", name)
		}
		host := "-"
		if loader != nil {
			if lang, ok := loader.Host(name); ok {
				host = fmt.Sprintf("abi %d", lang.AbiVersion())
			}
		}
		fmt.Fprintf(w, "%s\t%t\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			name, spec.Enabled, strings.Join(spec.Extensions, ","),
			desc.ABIVersion(), desc.SymbolCount(), desc.TokenCount(), desc.FieldCount(), desc.ProductionCount(),
			shortFingerprint(desc.Fingerprint()), host)
	}
	w.Flush()
	return 0
}

package cli

import (
	"context"
	"fmt"
	"time"

	"tree-sitter-cerium/internal/engine/runtime"
)

func (s *session) runParse(ctx context.Context, args []string) int {
	fs := newFlagSet("parse", s.stderr)
	timeout := fs.Duration("timeout", 0, "Abort parsing after this long (0 = no limit)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		return s.usageError("parse [-timeout d] <file>")
	}

	languages, err := s.languages()
	if err != nil {
		return s.fail("invalid language registry", err)
	}
	loader, err := runtime.NewGrammarLoader(ctx, s.cfg.ResolvedGrammarsPath(), languages, s.cfg.GrammarVerification.IsEnabled())
	if err != nil {
		return s.fail("failed to load grammars", err, "path", s.cfg.ResolvedGrammarsPath())
	}

	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	result, err := runtime.NewParser(loader).ParseFile(ctx, fs.Arg(0))
	if err != nil {
		return s.fail("parse failed", err, "path", fs.Arg(0))
	}

	fmt.Fprintln(s.stdout, result.Sexp)
	summary := statusStyle.Render(fmt.Sprintf("%s parsed as %s in %s", result.Path, result.Language, result.Duration.Round(time.Microsecond)))
	fmt.Fprintln(s.stderr, summary)
	if result.HasError {
		fmt.Fprintln(s.stderr, warnStyle.Render("tree contains syntax errors"))
		return 1
	}
	return 0
}

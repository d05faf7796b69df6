package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"

	domainerrors "tree-sitter-cerium/internal/core/errors"
	"tree-sitter-cerium/internal/engine/registry"
	"tree-sitter-cerium/internal/output"
	"tree-sitter-cerium/pkg/descriptor"
)

func (s *session) runInspect(args []string) int {
	fs := newFlagSet("inspect", s.stderr)
	ui := fs.Bool("ui", false, "Browse the tables in a terminal UI")
	format := fs.String("format", "text", "Output format: text, dot, mermaid, symbols or productions")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		return s.usageError("inspect [-ui] [-format text|dot|mermaid|symbols|productions] <language>")
	}

	desc, err := registry.Descriptor(fs.Arg(0))
	if err != nil {
		return s.fail("cannot inspect grammar", err)
	}

	if *ui {
		p := tea.NewProgram(newInspectModel(desc), tea.WithAltScreen(), tea.WithOutput(s.stdout))
		if _, err := p.Run(); err != nil {
			return s.fail("failed to run UI", err)
		}
		return 0
	}

	if *format == "text" {
		writeInspect(s.stdout, desc)
		return 0
	}
	rendered, err := renderInspect(desc, *format)
	if err != nil {
		return s.fail("cannot render grammar", err, "format", *format)
	}
	fmt.Fprint(s.stdout, rendered)
	return 0
}

func renderInspect(desc *descriptor.Language, format string) (string, error) {
	switch format {
	case "dot":
		return output.NewDOTGenerator(output.BuildRuleGraph(desc)).Generate()
	case "mermaid":
		return output.NewMermaidGenerator(output.BuildRuleGraph(desc)).Generate()
	case "symbols":
		return output.NewTSVGenerator(desc).Symbols()
	case "productions":
		return output.NewTSVGenerator(desc).Productions()
	}
	return "", domainerrors.Newf(domainerrors.CodeValidationError, "unknown inspect format %q", format)
}

func writeInspect(out io.Writer, desc *descriptor.Language) {
	fmt.Fprintln(out, titleStyle.Render(desc.Name()))
	fmt.Fprintf(out, "ABI version:   %d\n", desc.ABIVersion())
	fmt.Fprintf(out, "Start symbol:  %s\n", desc.SymbolName(desc.StartSymbol()))
	if word, ok := desc.WordSymbol(); ok {
		fmt.Fprintf(out, "Word token:    %s\n", desc.SymbolName(word))
	}
	extras := make([]string, 0, len(desc.Extras()))
	for _, extra := range desc.Extras() {
		extras = append(extras, desc.SymbolName(extra))
	}
	fmt.Fprintf(out, "Extras:        %s\n", strings.Join(extras, ", "))
	fmt.Fprintf(out, "Fingerprint:   %s\n", desc.Fingerprint())
	fmt.Fprintf(out, "Artifact hash: %s\n\n", desc.ArtifactHash())

	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Symbols (%d, %d tokens)", desc.SymbolCount(), desc.TokenCount())))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND\tNAMED\tVISIBLE\tEXTRA")
	for id := uint32(0); id < desc.SymbolCount(); id++ {
		info, _ := desc.SymbolInfo(descriptor.Symbol(id))
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%t\t%t\n", id, info.Name, info.Kind, info.Named, info.Visible, info.Extra)
	}
	w.Flush()

	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Fields (%d)", desc.FieldCount())))
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for id := uint32(1); id <= desc.FieldCount(); id++ {
		fmt.Fprintf(w, "%d\t%s\n", id, desc.FieldName(descriptor.FieldID(id)))
	}
	w.Flush()

	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Productions (%d)", desc.ProductionCount())))
	for i := 0; i < int(desc.ProductionCount()); i++ {
		p, _ := desc.Production(i)
		fmt.Fprintf(out, "%4d  %s\n", i, formatProduction(desc, p))
	}
}

// formatProduction renders a production as "lhs -> step step [prec]".
func formatProduction(desc *descriptor.Language, p descriptor.Production) string {
	var b strings.Builder
	b.WriteString(desc.SymbolName(p.LHS))
	b.WriteString(" ->")
	if len(p.Steps) == 0 {
		b.WriteString(" ε")
	}
	for _, step := range p.Steps {
		b.WriteByte(' ')
		if step.Field != 0 {
			b.WriteString(desc.FieldName(step.Field))
			b.WriteByte(':')
		}
		name := desc.SymbolName(step.Symbol)
		if info, ok := desc.SymbolInfo(step.Symbol); ok && info.Kind == descriptor.KindToken && !info.Named {
			name = fmt.Sprintf("%q", name)
		}
		b.WriteString(name)
		if step.Alias != "" {
			fmt.Fprintf(&b, "@%s", step.Alias)
		}
	}

	var notes []string
	if p.PrecedenceName != "" {
		notes = append(notes, "prec "+p.PrecedenceName)
	} else if p.Precedence != 0 {
		notes = append(notes, fmt.Sprintf("prec %d", p.Precedence))
	}
	if p.Associativity != descriptor.AssocNone {
		notes = append(notes, p.Associativity.String())
	}
	if p.DynamicPrecedence != 0 {
		notes = append(notes, fmt.Sprintf("dynamic %d", p.DynamicPrecedence))
	}
	if len(notes) > 0 {
		fmt.Fprintf(&b, "  [%s]", strings.Join(notes, ", "))
	}
	return b.String()
}

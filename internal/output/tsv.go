package output

import (
	"fmt"
	"strings"

	"tree-sitter-cerium/pkg/descriptor"
)

type TSVGenerator struct {
	desc *descriptor.Language
}

func NewTSVGenerator(desc *descriptor.Language) *TSVGenerator {
	return &TSVGenerator{desc: desc}
}

// Symbols renders the symbol table, one row per id.
func (t *TSVGenerator) Symbols() (string, error) {
	var buf strings.Builder
	buf.WriteString("ID\tName\tKind\tNamed\tVisible\tExtra\n")
	for id := uint32(0); id < t.desc.SymbolCount(); id++ {
		info, _ := t.desc.SymbolInfo(descriptor.Symbol(id))
		fmt.Fprintf(&buf, "%d\t%s\t%s\t%t\t%t\t%t\n", id, tsvEscape(info.Name), info.Kind, info.Named, info.Visible, info.Extra)
	}
	return buf.String(), nil
}

// Productions renders one row per production; steps are space separated
// as field:symbol@alias.
func (t *TSVGenerator) Productions() (string, error) {
	var buf strings.Builder
	buf.WriteString("Index\tLHS\tSteps\tPrecedence\tAssociativity\tDynamic\n")
	for i := 0; i < int(t.desc.ProductionCount()); i++ {
		p, _ := t.desc.Production(i)
		steps := make([]string, 0, len(p.Steps))
		for _, step := range p.Steps {
			s := t.desc.SymbolName(step.Symbol)
			if step.Field != 0 {
				s = t.desc.FieldName(step.Field) + ":" + s
			}
			if step.Alias != "" {
				s += "@" + step.Alias
			}
			steps = append(steps, tsvEscape(s))
		}
		prec := p.PrecedenceName
		if prec == "" {
			prec = fmt.Sprint(p.Precedence)
		}
		fmt.Fprintf(&buf, "%d\t%s\t%s\t%s\t%s\t%d\n",
			i, tsvEscape(t.desc.SymbolName(p.LHS)), strings.Join(steps, " "), prec, p.Associativity, p.DynamicPrecedence)
	}
	return buf.String(), nil
}

func tsvEscape(s string) string {
	return strings.NewReplacer("\\", "\\\\", "\t", "\\t", "\n", "\\n").Replace(s)
}

package output

import (
	"fmt"
	"strings"
)

type DOTGenerator struct {
	graph *RuleGraph
}

func NewDOTGenerator(g *RuleGraph) *DOTGenerator {
	return &DOTGenerator{graph: g}
}

// Generate renders the rule graph. Recursive rule groups are drawn in red.
func (d *DOTGenerator) Generate() (string, error) {
	var buf strings.Builder
	g := d.graph
	groupOf, recursive := recursiveSets(g.RecursiveGroups())

	fmt.Fprintf(&buf, "digraph %q {\n", g.Name)
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  ranksep=1.2;\n")
	buf.WriteString("  nodesep=0.5;\n\n")

	for _, rule := range g.Rules {
		label := fmt.Sprintf("%s\\n(%d tokens)", rule, g.TokenCount(rule))
		attrs := []string{fmt.Sprintf("label=\"%s\"", label)}
		switch {
		case recursive[rule]:
			attrs = append(attrs, "fillcolor=\"mistyrose\"", "color=\"red\"", "style=\"rounded,filled\"")
		case g.Hidden(rule):
			attrs = append(attrs, "color=\"grey\"", "style=\"rounded,dashed\"")
		default:
			attrs = append(attrs, "color=\"darkslategrey\"")
		}
		if rule == g.Start {
			attrs = append(attrs, "penwidth=2.5")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", rule, strings.Join(attrs, ", "))
	}
	buf.WriteString("\n")

	for _, from := range g.Rules {
		for _, to := range g.References(from) {
			if recursive[from] && recursive[to] && groupOf[from] == groupOf[to] {
				fmt.Fprintf(&buf, "  %q -> %q [color=\"red\", penwidth=2.0];\n", from, to)
				continue
			}
			fmt.Fprintf(&buf, "  %q -> %q [color=\"forestgreen\"];\n", from, to)
		}
	}

	buf.WriteString("\n  subgraph cluster_legend {\n")
	buf.WriteString("    label=\"Legend\";\n")
	buf.WriteString("    style=dashed;\n")
	buf.WriteString("    legend_rule [label=\"Rule\", color=\"darkslategrey\"];\n")
	buf.WriteString("    legend_hidden [label=\"Hidden Rule\", color=\"grey\", style=\"rounded,dashed\"];\n")
	buf.WriteString("    legend_recursive [label=\"Recursive Group\", fillcolor=\"mistyrose\", color=\"red\", style=\"rounded,filled\"];\n")
	buf.WriteString("  }\n")
	buf.WriteString("}\n")
	return buf.String(), nil
}

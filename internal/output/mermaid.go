package output

import (
	"fmt"
	"strings"
	"unicode"
)

type MermaidGenerator struct {
	graph *RuleGraph
}

func NewMermaidGenerator(g *RuleGraph) *MermaidGenerator {
	return &MermaidGenerator{graph: g}
}

func (m *MermaidGenerator) Generate() (string, error) {
	var b strings.Builder
	g := m.graph
	groups := g.RecursiveGroups()
	groupOf, recursive := recursiveSets(groups)
	ids := makeMermaidIDs(g.Rules)

	b.WriteString("%%{init: {'flowchart': {'nodeSpacing': 60, 'rankSpacing': 90, 'curve': 'basis'}}}%%\n")
	b.WriteString("flowchart LR\n")
	b.WriteString("  classDef rule fill:#ffffff,stroke:#2f4f4f;\n")
	b.WriteString("  classDef hidden fill:#f5f5f5,stroke:#9e9e9e,stroke-dasharray: 4 3;\n")
	b.WriteString("  classDef recursive fill:#ffe4e1,stroke:#d32f2f,stroke-width:2px;\n")

	for _, rule := range g.Rules {
		fmt.Fprintf(&b, "  %s[\"%s<br/>%d tokens\"]\n", ids[rule], escapeMermaidLabel(rule), g.TokenCount(rule))
	}

	edgeIndex := 0
	var recursiveEdges []string
	for _, from := range g.Rules {
		for _, to := range g.References(from) {
			fmt.Fprintf(&b, "  %s --> %s\n", ids[from], ids[to])
			if recursive[from] && recursive[to] && groupOf[from] == groupOf[to] {
				recursiveEdges = append(recursiveEdges, fmt.Sprint(edgeIndex))
			}
			edgeIndex++
		}
	}

	for _, rule := range g.Rules {
		class := "rule"
		switch {
		case recursive[rule]:
			class = "recursive"
		case g.Hidden(rule):
			class = "hidden"
		}
		fmt.Fprintf(&b, "  class %s %s\n", ids[rule], class)
	}
	if len(recursiveEdges) > 0 {
		fmt.Fprintf(&b, "  linkStyle %s stroke:#d32f2f,stroke-width:2px\n", strings.Join(recursiveEdges, ","))
	}
	return b.String(), nil
}

func sanitizeMermaidID(name string) string {
	if name == "" {
		return "r"
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	if unicode.IsDigit(rune(out[0])) || out[0] == '_' {
		return "r" + out
	}
	return out
}

// makeMermaidIDs assigns unique node ids; colliding names get a numeric suffix.
func makeMermaidIDs(names []string) map[string]string {
	ids := make(map[string]string, len(names))
	used := make(map[string]int, len(names))
	for _, name := range names {
		base := sanitizeMermaidID(name)
		idx := used[base]
		used[base] = idx + 1
		if idx == 0 {
			ids[name] = base
			continue
		}
		ids[name] = fmt.Sprintf("%s_%d", base, idx+1)
	}
	return ids
}

func escapeMermaidLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

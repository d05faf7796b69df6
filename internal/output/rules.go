// Package output renders grammar descriptors as graphs and tables.
package output

import (
	"sort"

	"tree-sitter-cerium/pkg/descriptor"
)

// RuleGraph is the reference graph between the rules of a grammar.
// Auxiliary repeat symbols are folded into the rule that owns them.
type RuleGraph struct {
	Name  string
	Start string
	// Rules are in symbol id order.
	Rules  []string
	refs   map[string]map[string]bool
	tokens map[string]int
	hidden map[string]bool
}

func BuildRuleGraph(desc *descriptor.Language) *RuleGraph {
	g := &RuleGraph{
		Name:   desc.Name(),
		Start:  desc.SymbolName(desc.StartSymbol()),
		refs:   make(map[string]map[string]bool),
		tokens: make(map[string]int),
		hidden: make(map[string]bool),
	}

	kinds := make(map[descriptor.Symbol]descriptor.SymbolKind, desc.SymbolCount())
	for id := uint32(0); id < desc.SymbolCount(); id++ {
		info, _ := desc.SymbolInfo(descriptor.Symbol(id))
		kinds[descriptor.Symbol(id)] = info.Kind
		if info.Kind == descriptor.KindNonTerminal {
			g.Rules = append(g.Rules, info.Name)
			g.refs[info.Name] = make(map[string]bool)
			g.hidden[info.Name] = !info.Visible
		}
	}

	parent := make(map[descriptor.Symbol]descriptor.Symbol)
	for i := 0; i < int(desc.ProductionCount()); i++ {
		p, _ := desc.Production(i)
		for _, step := range p.Steps {
			if kinds[step.Symbol] != descriptor.KindAuxiliary || step.Symbol == p.LHS {
				continue
			}
			if _, ok := parent[step.Symbol]; !ok {
				parent[step.Symbol] = p.LHS
			}
		}
	}
	owner := func(sym descriptor.Symbol) (descriptor.Symbol, bool) {
		for seen := 0; kinds[sym] == descriptor.KindAuxiliary; seen++ {
			next, ok := parent[sym]
			if !ok || seen > len(parent) {
				return 0, false
			}
			sym = next
		}
		return sym, kinds[sym] == descriptor.KindNonTerminal
	}

	namedTokens := make(map[string]map[descriptor.Symbol]bool)
	for i := 0; i < int(desc.ProductionCount()); i++ {
		p, _ := desc.Production(i)
		lhs, ok := owner(p.LHS)
		if !ok {
			continue
		}
		from := desc.SymbolName(lhs)
		for _, step := range p.Steps {
			switch kinds[step.Symbol] {
			case descriptor.KindNonTerminal:
				g.refs[from][desc.SymbolName(step.Symbol)] = true
			case descriptor.KindAuxiliary:
				if target, ok := owner(step.Symbol); ok && target != lhs {
					g.refs[from][desc.SymbolName(target)] = true
				}
			case descriptor.KindToken, descriptor.KindExternal:
				if namedTokens[from] == nil {
					namedTokens[from] = make(map[descriptor.Symbol]bool)
				}
				namedTokens[from][step.Symbol] = true
			}
		}
	}
	for rule, toks := range namedTokens {
		g.tokens[rule] = len(toks)
	}
	return g
}

// References returns the rules referenced by rule, sorted.
func (g *RuleGraph) References(rule string) []string {
	out := make([]string, 0, len(g.refs[rule]))
	for to := range g.refs[rule] {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

func (g *RuleGraph) TokenCount(rule string) int { return g.tokens[rule] }

func (g *RuleGraph) Hidden(rule string) bool { return g.hidden[rule] }

// RecursiveGroups returns the strongly connected groups of rules that can
// reach themselves, each sorted, ordered by their first rule.
func (g *RuleGraph) RecursiveGroups() [][]string {
	var (
		index   = make(map[string]int)
		low     = make(map[string]int)
		onStack = make(map[string]bool)
		stack   []string
		next    int
		groups  [][]string
	)

	var visit func(rule string)
	visit = func(rule string) {
		index[rule] = next
		low[rule] = next
		next++
		stack = append(stack, rule)
		onStack[rule] = true

		for _, to := range g.References(rule) {
			if _, seen := index[to]; !seen {
				visit(to)
				low[rule] = min(low[rule], low[to])
			} else if onStack[to] {
				low[rule] = min(low[rule], index[to])
			}
		}

		if low[rule] != index[rule] {
			return
		}
		var group []string
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			group = append(group, top)
			if top == rule {
				break
			}
		}
		if len(group) > 1 || g.refs[rule][rule] {
			sort.Strings(group)
			groups = append(groups, group)
		}
	}

	for _, rule := range g.Rules {
		if _, seen := index[rule]; !seen {
			visit(rule)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

func recursiveSets(groups [][]string) (map[string]int, map[string]bool) {
	groupOf := make(map[string]int)
	inGroup := make(map[string]bool)
	for i, group := range groups {
		for _, rule := range group {
			groupOf[rule] = i
			inGroup[rule] = true
		}
	}
	return groupOf, inGroup
}

package descriptor

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// maxAlternatives bounds how many flattened alternatives a single rule may
// expand into.
const maxAlternatives = 4096

var grammarNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type precInfo struct {
	set     bool
	value   int
	name    string
	assoc   Associativity
	dynamic int
}

type alternative struct {
	steps []Step
	prec  precInfo
}

type lowerer struct {
	art *artifact

	rules       map[string]*rule
	lexical     map[string]bool
	symbols     []SymbolInfo
	symbolIndex map[symbolKey]Symbol
	named       map[string]Symbol
	literals    map[string]Symbol
	tokens      map[*rule]Symbol
	auxCounter  map[string]int
	fieldIndex  map[string]FieldID
	precedence  map[string]int
	productions []Production
}

func lower(art *artifact) (*Language, error) {
	if strings.TrimSpace(art.Name) == "" {
		return nil, fmt.Errorf("grammar name must not be empty")
	}
	if !grammarNamePattern.MatchString(art.Name) {
		return nil, fmt.Errorf("invalid grammar name %q", art.Name)
	}
	if len(art.Rules) == 0 {
		return nil, fmt.Errorf("grammar must define at least one rule")
	}
	if art.Rules[0].body.isLexical() {
		return nil, fmt.Errorf("start rule %q must not be a token", art.Rules[0].name)
	}

	lw := &lowerer{
		art:         art,
		rules:       make(map[string]*rule, len(art.Rules)),
		lexical:     make(map[string]bool),
		symbolIndex: make(map[symbolKey]Symbol),
		named:       make(map[string]Symbol),
		literals:    make(map[string]Symbol),
		tokens:      make(map[*rule]Symbol),
		auxCounter:  make(map[string]int),
		fieldIndex:  make(map[string]FieldID),
		precedence:  make(map[string]int),
	}
	for i := range art.Rules {
		nr := &art.Rules[i]
		lw.rules[nr.name] = &nr.body
		if nr.body.isLexical() {
			lw.lexical[nr.name] = true
		}
	}

	if err := lw.buildPrecedences(); err != nil {
		return nil, err
	}
	if err := lw.buildSymbols(); err != nil {
		return nil, err
	}
	fields := lw.buildFields()
	if err := lw.buildProductions(); err != nil {
		return nil, err
	}
	if len(lw.symbols) > math.MaxUint16 {
		return nil, fmt.Errorf("grammar has %d symbols, more than a 16-bit symbol id can address", len(lw.symbols))
	}

	lang := &Language{
		name:        art.Name,
		abiVersion:  ABIVersion,
		symbols:     lw.symbols,
		symbolIndex: lw.symbolIndex,
		fields:      fields,
		fieldIndex:  lw.fieldIndex,
		productions: lw.productions,
		start:       lw.named[art.Rules[0].name],
		precedence:  lw.precedence,
	}
	for _, sym := range lw.symbols {
		if sym.Kind == KindEnd || sym.Kind == KindToken || sym.Kind == KindExternal {
			lang.tokenCount++
		}
	}

	if art.Word != "" {
		word, ok := lw.named[art.Word]
		if !ok {
			return nil, fmt.Errorf("word token %q is not a rule", art.Word)
		}
		lang.word, lang.hasWord = word, true
	}

	extras, err := lw.buildExtras()
	if err != nil {
		return nil, err
	}
	lang.extras = extras

	if err := lw.checkNameLists(); err != nil {
		return nil, err
	}
	return lang, nil
}

func (lw *lowerer) addSymbol(info SymbolInfo) Symbol {
	key := symbolKey{name: info.Name, named: info.Named}
	id := Symbol(len(lw.symbols))
	lw.symbols = append(lw.symbols, info)
	// The end symbol and repeat helpers are never looked up by name, so an
	// "end" keyword keeps its own entry.
	if info.Kind == KindEnd || info.Kind == KindAuxiliary {
		return id
	}
	if _, exists := lw.symbolIndex[key]; !exists {
		lw.symbolIndex[key] = id
	}
	return id
}

func (lw *lowerer) nextAuxName(ruleName, kind string) string {
	key := ruleName + "_" + kind
	lw.auxCounter[key]++
	return fmt.Sprintf("%s%d", key, lw.auxCounter[key])
}

func (lw *lowerer) buildPrecedences() error {
	for _, list := range lw.art.Precedences {
		for i, entry := range list {
			var name string
			switch entry.Type {
			case ruleString:
				value, err := entry.stringValue()
				if err != nil {
					return err
				}
				name = value
			case ruleSymbol:
				name = entry.Name
			default:
				return fmt.Errorf("precedence entries must be strings or symbols, got %s", entry.Type)
			}
			level := len(list) - i
			if existing, ok := lw.precedence[name]; ok && existing != level {
				return fmt.Errorf("precedence %q is declared at conflicting levels", name)
			}
			lw.precedence[name] = level
		}
	}
	return nil
}

// buildSymbols lays out the symbol table: end, tokens, externals, then rules.
// Auxiliary repeat symbols are appended while productions are expanded.
func (lw *lowerer) buildSymbols() error {
	lw.addSymbol(SymbolInfo{Name: "end", Kind: KindEnd})

	for _, nr := range lw.art.Rules {
		if !lw.lexical[nr.name] {
			continue
		}
		hidden := strings.HasPrefix(nr.name, "_")
		lw.named[nr.name] = lw.addSymbol(SymbolInfo{Name: nr.name, Kind: KindToken, Named: true, Visible: !hidden})
	}

	for i := range lw.art.Rules {
		nr := &lw.art.Rules[i]
		if lw.lexical[nr.name] {
			continue
		}
		if err := lw.collectTokens(nr.name, &nr.body); err != nil {
			return fmt.Errorf("rule %q: %w", nr.name, err)
		}
	}
	for i := range lw.art.Extras {
		extra := &lw.art.Extras[i]
		if extra.Type == ruleString {
			if err := lw.collectTokens("extras", extra); err != nil {
				return err
			}
		}
	}

	for _, ext := range lw.art.Externals {
		var name string
		switch ext.Type {
		case ruleSymbol:
			name = ext.Name
		case ruleString:
			value, err := ext.stringValue()
			if err != nil {
				return err
			}
			name = value
		default:
			return fmt.Errorf("external tokens must be symbols or strings, got %s", ext.Type)
		}
		if _, isRule := lw.rules[name]; isRule {
			continue
		}
		hidden := strings.HasPrefix(name, "_")
		lw.named[name] = lw.addSymbol(SymbolInfo{Name: name, Kind: KindExternal, Named: ext.Type == ruleSymbol, Visible: !hidden})
	}

	for _, nr := range lw.art.Rules {
		if lw.lexical[nr.name] {
			continue
		}
		hidden := strings.HasPrefix(nr.name, "_")
		lw.named[nr.name] = lw.addSymbol(SymbolInfo{Name: nr.name, Kind: KindNonTerminal, Named: true, Visible: !hidden})
	}
	return nil
}

func (lw *lowerer) collectTokens(ruleName string, r *rule) error {
	switch r.Type {
	case ruleString:
		value, err := r.stringValue()
		if err != nil {
			return err
		}
		if value == "" {
			return fmt.Errorf("string literals must not be empty")
		}
		if _, ok := lw.literals[value]; !ok {
			lw.literals[value] = lw.addSymbol(SymbolInfo{Name: value, Kind: KindToken, Visible: true})
		}
	case rulePattern, ruleToken, ruleImmediateToken:
		name := lw.nextAuxName(ruleName, "token")
		lw.tokens[r] = lw.addSymbol(SymbolInfo{Name: name, Kind: KindToken})
	case ruleBlank, ruleSymbol:
	case ruleSeq, ruleChoice:
		for i := range r.Members {
			if err := lw.collectTokens(ruleName, &r.Members[i]); err != nil {
				return err
			}
		}
	case ruleRepeat, ruleRepeat1, ruleField, ruleAlias, rulePrec, rulePrecLeft, rulePrecRight, rulePrecDynamic:
		if r.Content == nil {
			return fmt.Errorf("%s rule has no content", r.Type)
		}
		return lw.collectTokens(ruleName, r.Content)
	default:
		return fmt.Errorf("unknown rule type %q", r.Type)
	}
	return nil
}

// buildFields assigns ids to field names in lexicographic order, starting at 1.
func (lw *lowerer) buildFields() []string {
	set := make(map[string]bool)
	var walk func(r *rule)
	walk = func(r *rule) {
		switch r.Type {
		case ruleToken, ruleImmediateToken:
			return
		case ruleField:
			set[r.Name] = true
		}
		for i := range r.Members {
			walk(&r.Members[i])
		}
		if r.Content != nil {
			walk(r.Content)
		}
	}
	for i := range lw.art.Rules {
		nr := &lw.art.Rules[i]
		if !lw.lexical[nr.name] {
			walk(&nr.body)
		}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]string, 1, len(names)+1)
	for _, name := range names {
		lw.fieldIndex[name] = FieldID(len(fields))
		fields = append(fields, name)
	}
	return fields
}

func (lw *lowerer) buildProductions() error {
	for i := range lw.art.Rules {
		nr := &lw.art.Rules[i]
		if lw.lexical[nr.name] {
			continue
		}
		alts, err := lw.expand(nr.name, &nr.body)
		if err != nil {
			return fmt.Errorf("rule %q: %w", nr.name, err)
		}
		if len(alts) == 0 {
			return fmt.Errorf("rule %q has no productions", nr.name)
		}
		lhs := lw.named[nr.name]
		for _, alt := range alts {
			lw.appendProduction(lhs, alt)
		}
	}
	return nil
}

func (lw *lowerer) appendProduction(lhs Symbol, alt alternative) {
	lw.productions = append(lw.productions, Production{
		LHS:               lhs,
		Steps:             alt.steps,
		Precedence:        alt.prec.value,
		PrecedenceName:    alt.prec.name,
		Associativity:     alt.prec.assoc,
		DynamicPrecedence: alt.prec.dynamic,
	})
}

func (lw *lowerer) expand(ruleName string, r *rule) ([]alternative, error) {
	switch r.Type {
	case ruleBlank:
		return []alternative{{}}, nil

	case ruleString:
		value, err := r.stringValue()
		if err != nil {
			return nil, err
		}
		return single(lw.literals[value]), nil

	case rulePattern, ruleToken, ruleImmediateToken:
		id, ok := lw.tokens[r]
		if !ok {
			return nil, fmt.Errorf("token was not registered")
		}
		return single(id), nil

	case ruleSymbol:
		id, ok := lw.named[r.Name]
		if !ok {
			return nil, fmt.Errorf("undefined symbol %q", r.Name)
		}
		return single(id), nil

	case ruleSeq:
		result := []alternative{{}}
		for i := range r.Members {
			member, err := lw.expand(ruleName, &r.Members[i])
			if err != nil {
				return nil, err
			}
			if len(result)*len(member) > maxAlternatives {
				return nil, fmt.Errorf("more than %d alternatives", maxAlternatives)
			}
			next := make([]alternative, 0, len(result)*len(member))
			for _, left := range result {
				for _, right := range member {
					steps := make([]Step, 0, len(left.steps)+len(right.steps))
					steps = append(steps, left.steps...)
					steps = append(steps, right.steps...)
					prec := left.prec
					if !prec.set {
						prec = right.prec
					}
					next = append(next, alternative{steps: steps, prec: prec})
				}
			}
			result = next
		}
		return result, nil

	case ruleChoice:
		if len(r.Members) == 0 {
			return nil, fmt.Errorf("CHOICE rule has no members")
		}
		var result []alternative
		for i := range r.Members {
			member, err := lw.expand(ruleName, &r.Members[i])
			if err != nil {
				return nil, err
			}
			result = append(result, member...)
			if len(result) > maxAlternatives {
				return nil, fmt.Errorf("more than %d alternatives", maxAlternatives)
			}
		}
		return result, nil

	case ruleRepeat, ruleRepeat1:
		content, err := lw.expand(ruleName, r.Content)
		if err != nil {
			return nil, err
		}
		aux := lw.addSymbol(SymbolInfo{Name: lw.nextAuxName(ruleName, "repeat"), Kind: KindAuxiliary})
		lw.appendProduction(aux, alternative{steps: []Step{{Symbol: aux}, {Symbol: aux}}})
		for _, alt := range content {
			lw.appendProduction(aux, alt)
		}
		if r.Type == ruleRepeat {
			return []alternative{{steps: []Step{{Symbol: aux}}}, {}}, nil
		}
		return single(aux), nil

	case ruleField:
		content, err := lw.expand(ruleName, r.Content)
		if err != nil {
			return nil, err
		}
		field := lw.fieldIndex[r.Name]
		for _, alt := range content {
			for i := range alt.steps {
				if alt.steps[i].Field == 0 {
					alt.steps[i].Field = field
				}
			}
		}
		return content, nil

	case ruleAlias:
		value, err := r.stringValue()
		if err != nil {
			return nil, err
		}
		content, err := lw.expand(ruleName, r.Content)
		if err != nil {
			return nil, err
		}
		for _, alt := range content {
			if len(alt.steps) != 1 {
				return nil, fmt.Errorf("alias %q must wrap a single symbol", value)
			}
			alt.steps[0].Alias = value
			alt.steps[0].AliasNamed = r.Named
		}
		return content, nil

	case rulePrec, rulePrecLeft, rulePrecRight, rulePrecDynamic:
		value, name, err := r.precedence()
		if err != nil {
			return nil, err
		}
		if name != "" {
			if _, ok := lw.precedence[name]; !ok {
				return nil, fmt.Errorf("undeclared precedence %q", name)
			}
		}
		content, err := lw.expand(ruleName, r.Content)
		if err != nil {
			return nil, err
		}
		for i := range content {
			if content[i].prec.set {
				continue
			}
			prec := precInfo{set: true}
			switch r.Type {
			case rulePrecDynamic:
				prec.dynamic = value
			default:
				prec.value, prec.name = value, name
			}
			switch r.Type {
			case rulePrecLeft:
				prec.assoc = AssocLeft
			case rulePrecRight:
				prec.assoc = AssocRight
			}
			content[i].prec = prec
		}
		return content, nil
	}
	return nil, fmt.Errorf("unknown rule type %q", r.Type)
}

func single(id Symbol) []alternative {
	return []alternative{{steps: []Step{{Symbol: id}}}}
}

func (lw *lowerer) buildExtras() ([]Symbol, error) {
	var extras []Symbol
	for _, extra := range lw.art.Extras {
		var id Symbol
		switch extra.Type {
		case ruleSymbol:
			found, ok := lw.named[extra.Name]
			if !ok {
				return nil, fmt.Errorf("extra %q is not a rule", extra.Name)
			}
			id = found
		case ruleString:
			value, err := extra.stringValue()
			if err != nil {
				return nil, err
			}
			id = lw.literals[value]
		case rulePattern, ruleToken:
			// Separators such as whitespace are skipped by the lexer and get no symbol.
			continue
		default:
			return nil, fmt.Errorf("unsupported extra of type %s", extra.Type)
		}
		lw.symbols[id].Extra = true
		extras = append(extras, id)
	}
	return extras, nil
}

func (lw *lowerer) checkNameLists() error {
	for _, group := range lw.art.Conflicts {
		for _, name := range group {
			if _, ok := lw.named[name]; !ok {
				return fmt.Errorf("conflict references undefined rule %q", name)
			}
		}
	}
	for _, name := range lw.art.Inline {
		if _, ok := lw.rules[name]; !ok {
			return fmt.Errorf("inline references undefined rule %q", name)
		}
	}
	for _, name := range lw.art.Supertypes {
		if _, ok := lw.rules[name]; !ok {
			return fmt.Errorf("supertype references undefined rule %q", name)
		}
	}
	return nil
}

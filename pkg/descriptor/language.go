// Package descriptor holds the read-only tables a grammar binding hands to a
// host parsing runtime.
//
// A Language is built once from a generated grammar.json artifact and is
// never modified afterwards. Its layout is private: callers go through the
// accessor methods, and every method that returns a slice returns a copy, so
// a *Language can be shared by any number of goroutines without locking.
package descriptor

import (
	"fmt"
)

const (
	// ABIVersion is the table format version published by this package.
	ABIVersion uint32 = 14
	// MinCompatibleABIVersion is the oldest host ABI able to consume it.
	MinCompatibleABIVersion uint32 = 13
	// MaxCompatibleABIVersion is the newest host ABI known to consume it.
	MaxCompatibleABIVersion uint32 = 15
)

// Symbol identifies a grammar symbol. 0 is always the end-of-input symbol.
type Symbol uint16

// FieldID identifies a field name. 0 means "no field".
type FieldID uint16

// SymbolKind classifies an entry of the symbol table.
type SymbolKind uint8

const (
	KindEnd SymbolKind = iota
	KindToken
	KindExternal
	KindNonTerminal
	KindAuxiliary
)

func (k SymbolKind) String() string {
	switch k {
	case KindEnd:
		return "end"
	case KindToken:
		return "token"
	case KindExternal:
		return "external"
	case KindNonTerminal:
		return "nonterminal"
	case KindAuxiliary:
		return "auxiliary"
	}
	return fmt.Sprintf("SymbolKind(%d)", uint8(k))
}

// SymbolInfo describes one symbol table entry.
type SymbolInfo struct {
	Name    string
	Kind    SymbolKind
	Named   bool
	Visible bool
	Extra   bool
}

// Associativity of a precedence annotation.
type Associativity uint8

const (
	AssocNone Associativity = iota
	AssocLeft
	AssocRight
)

func (a Associativity) String() string {
	switch a {
	case AssocLeft:
		return "left"
	case AssocRight:
		return "right"
	}
	return "none"
}

// Step is one right-hand-side element of a production.
type Step struct {
	Symbol     Symbol
	Field      FieldID
	Alias      string
	AliasNamed bool
}

// Production is one flattened alternative of a rule.
type Production struct {
	LHS               Symbol
	Steps             []Step
	Precedence        int
	PrecedenceName    string
	Associativity     Associativity
	DynamicPrecedence int
}

type symbolKey struct {
	name  string
	named bool
}

// Language is an opaque, immutable grammar descriptor.
type Language struct {
	name        string
	abiVersion  uint32
	symbols     []SymbolInfo
	symbolIndex map[symbolKey]Symbol
	tokenCount  uint32
	fields      []string
	fieldIndex  map[string]FieldID
	productions []Production
	start       Symbol
	word        Symbol
	hasWord     bool
	extras      []Symbol
	precedence  map[string]int

	artifactHash string
	fingerprint  string
}

// Load builds a Language from a generated grammar.json artifact.
func Load(artifact []byte) (*Language, error) {
	art, err := decodeArtifact(artifact)
	if err != nil {
		return nil, err
	}
	lang, err := lower(art)
	if err != nil {
		return nil, fmt.Errorf("grammar %q: %w", art.Name, err)
	}
	lang.artifactHash = hashArtifact(artifact)
	lang.fingerprint = fingerprint(lang)
	return lang, nil
}

// MustLoad is like Load but panics if the artifact cannot be lowered. It is
// meant for package-level initialization of grammar bindings, where a bad
// artifact must stop the program before any accessor can be reached.
func MustLoad(artifact []byte) *Language {
	lang, err := Load(artifact)
	if err != nil {
		panic("descriptor: " + err.Error())
	}
	return lang
}

func (l *Language) Name() string { return l.name }

func (l *Language) ABIVersion() uint32 { return l.abiVersion }

// SymbolCount includes the end symbol, tokens and auxiliary symbols.
func (l *Language) SymbolCount() uint32 { return uint32(len(l.symbols)) }

// TokenCount is the number of leading symbol ids that are tokens.
func (l *Language) TokenCount() uint32 { return l.tokenCount }

// FieldCount excludes the reserved id 0.
func (l *Language) FieldCount() uint32 { return uint32(len(l.fields) - 1) }

func (l *Language) ProductionCount() uint32 { return uint32(len(l.productions)) }

// SymbolName returns the name of a symbol, or "" when the id is out of range.
func (l *Language) SymbolName(id Symbol) string {
	if int(id) >= len(l.symbols) {
		return ""
	}
	return l.symbols[id].Name
}

// SymbolInfo returns the table entry for a symbol.
func (l *Language) SymbolInfo(id Symbol) (SymbolInfo, bool) {
	if int(id) >= len(l.symbols) {
		return SymbolInfo{}, false
	}
	return l.symbols[id], true
}

// SymbolForName looks a symbol up by name and namedness.
func (l *Language) SymbolForName(name string, named bool) (Symbol, bool) {
	id, ok := l.symbolIndex[symbolKey{name: name, named: named}]
	return id, ok
}

// FieldName returns the name of a field, or "" for 0 and unknown ids.
func (l *Language) FieldName(id FieldID) string {
	if int(id) >= len(l.fields) {
		return ""
	}
	return l.fields[id]
}

func (l *Language) FieldForName(name string) (FieldID, bool) {
	id, ok := l.fieldIndex[name]
	return id, ok
}

// Production returns a copy of the i-th production.
func (l *Language) Production(i int) (Production, bool) {
	if i < 0 || i >= len(l.productions) {
		return Production{}, false
	}
	p := l.productions[i]
	p.Steps = append([]Step(nil), p.Steps...)
	return p, true
}

func (l *Language) StartSymbol() Symbol { return l.start }

// WordSymbol returns the keyword-extraction token, if the grammar declares one.
func (l *Language) WordSymbol() (Symbol, bool) { return l.word, l.hasWord }

func (l *Language) Extras() []Symbol { return append([]Symbol(nil), l.extras...) }

// PrecedenceLevel returns the numeric level of a named precedence. Names listed
// first in the grammar get the highest level.
func (l *Language) PrecedenceLevel(name string) (int, bool) {
	level, ok := l.precedence[name]
	return level, ok
}

// ArtifactHash is the hex SHA-256 of the grammar.json the tables were built from.
func (l *Language) ArtifactHash() string { return l.artifactHash }

// Fingerprint is the hex SHA-256 of the canonical table encoding. Two
// descriptors with equal fingerprints have identical content.
func (l *Language) Fingerprint() string { return l.fingerprint }

// Equal reports whether two descriptors carry identical content.
func (l *Language) Equal(other *Language) bool {
	if l == other {
		return true
	}
	if l == nil || other == nil {
		return false
	}
	return l.fingerprint == other.fingerprint
}

func (l *Language) String() string {
	return fmt.Sprintf("%s (abi %d, %d symbols, %d fields, %d productions)",
		l.name, l.abiVersion, len(l.symbols), len(l.fields)-1, len(l.productions))
}

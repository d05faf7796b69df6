package runtime

import (
	"testing"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tree_sitter_barq "tree-sitter-cerium/bindings/go/barq"
	"tree-sitter-cerium/pkg/descriptor"
)

// fakeHost answers from a descriptor, optionally with edits applied.
type fakeHost struct {
	abi     uint32
	fields  []string
	kinds   map[string]uint16
	dropped map[string]bool
}

func hostFor(desc *descriptor.Language) *fakeHost {
	h := &fakeHost{abi: desc.ABIVersion(), fields: []string{""}, kinds: map[string]uint16{}, dropped: map[string]bool{}}
	for id := uint32(1); id <= desc.FieldCount(); id++ {
		h.fields = append(h.fields, desc.FieldName(descriptor.FieldID(id)))
	}
	for id := uint32(1); id < desc.SymbolCount(); id++ {
		info, _ := desc.SymbolInfo(descriptor.Symbol(id))
		if info.Named {
			h.kinds[info.Name] = uint16(id)
		}
	}
	return h
}

func (h *fakeHost) AbiVersion() uint32 { return h.abi }
func (h *fakeHost) FieldCount() uint32 { return uint32(len(h.fields) - 1) }

func (h *fakeHost) FieldNameForId(id uint16) string {
	if int(id) >= len(h.fields) {
		return ""
	}
	return h.fields[id]
}

func (h *fakeHost) IdForNodeKind(kind string, named bool) uint16 {
	if !named || h.dropped[kind] {
		return 0
	}
	return h.kinds[kind]
}

func TestCheckCompatibility_MatchingHost(t *testing.T) {
	desc := tree_sitter_barq.Language()
	assert.Empty(t, CheckCompatibility(desc, hostFor(desc)))
}

func TestCheckCompatibility_ReportsEveryMismatch(t *testing.T) {
	desc := tree_sitter_barq.Language()

	tests := []struct {
		name  string
		edit  func(h *fakeHost)
		kinds []string
	}{
		{name: "abi too new", edit: func(h *fakeHost) { h.abi = 16 }, kinds: []string{MismatchABI}},
		{name: "abi too old", edit: func(h *fakeHost) { h.abi = 12 }, kinds: []string{MismatchABI}},
		{name: "abi in range but different", edit: func(h *fakeHost) { h.abi = 15 }, kinds: []string{MismatchABI}},
		{
			name:  "renamed field",
			edit:  func(h *fakeHost) { h.fields[1] = "body" },
			kinds: []string{MismatchField},
		},
		{
			name:  "extra field",
			edit:  func(h *fakeHost) { h.fields = append(h.fields, "zzz") },
			kinds: []string{MismatchField},
		},
		{
			name:  "missing node",
			edit:  func(h *fakeHost) { h.dropped["module"] = true },
			kinds: []string{MismatchSymbol},
		},
		{
			name: "several",
			edit: func(h *fakeHost) {
				h.dropped["identifier"] = true
				h.abi = 13
			},
			kinds: []string{MismatchABI, MismatchSymbol},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := hostFor(desc)
			tt.edit(host)
			mismatches := CheckCompatibility(desc, host)
			var kinds []string
			for _, m := range mismatches {
				if len(kinds) == 0 || kinds[len(kinds)-1] != m.Kind {
					kinds = append(kinds, m.Kind)
				}
			}
			assert.Equal(t, tt.kinds, kinds)
		})
	}
}

func TestCheckCompatibility_ForeignHost(t *testing.T) {
	goHost := sitter.NewLanguage(tree_sitter_go.Language())

	mismatches := CheckCompatibility(tree_sitter_barq.Language(), goHost)
	require.NotEmpty(t, mismatches)

	sawField := false
	for i, m := range mismatches {
		if m.Kind == MismatchField {
			sawField = true
		}
		if i > 0 {
			prev := mismatches[i-1]
			assert.True(t, prev.Kind < m.Kind || (prev.Kind == m.Kind && prev.Detail <= m.Detail), "mismatches must be sorted")
		}
	}
	assert.True(t, sawField, "the Go grammar's field table differs from barq's")
}

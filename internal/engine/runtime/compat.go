// Package runtime connects grammar descriptors to the tree-sitter host
// runtime: it checks that a compiled parser agrees with its descriptor,
// pools parsers and parses source files.
package runtime

import (
	"fmt"
	"sort"

	"tree-sitter-cerium/pkg/descriptor"
)

// HostLanguage is the part of a host language handle the compatibility check
// reads. *sitter.Language satisfies it.
type HostLanguage interface {
	AbiVersion() uint32
	FieldCount() uint32
	FieldNameForId(id uint16) string
	IdForNodeKind(kind string, named bool) uint16
}

// Mismatch kinds.
const (
	MismatchABI    = "abi"
	MismatchField  = "field"
	MismatchSymbol = "symbol"
)

type Mismatch struct {
	Kind   string
	Detail string
}

func (m Mismatch) String() string {
	return m.Kind + ": " + m.Detail
}

// CheckCompatibility compares a descriptor with a host language and returns
// every disagreement, sorted. An empty result means the host can consume trees
// described by desc.
func CheckCompatibility(desc *descriptor.Language, host HostLanguage) []Mismatch {
	var out []Mismatch

	abi := host.AbiVersion()
	if abi < descriptor.MinCompatibleABIVersion || abi > descriptor.MaxCompatibleABIVersion {
		out = append(out, Mismatch{
			Kind: MismatchABI,
			Detail: fmt.Sprintf("host ABI %d outside supported range [%d, %d]",
				abi, descriptor.MinCompatibleABIVersion, descriptor.MaxCompatibleABIVersion),
		})
	} else if abi != desc.ABIVersion() {
		out = append(out, Mismatch{
			Kind:   MismatchABI,
			Detail: fmt.Sprintf("host ABI %d differs from descriptor ABI %d", abi, desc.ABIVersion()),
		})
	}

	if host.FieldCount() != desc.FieldCount() {
		out = append(out, Mismatch{
			Kind:   MismatchField,
			Detail: fmt.Sprintf("host has %d fields, descriptor has %d", host.FieldCount(), desc.FieldCount()),
		})
	}
	for id := uint32(1); id <= desc.FieldCount(); id++ {
		want := desc.FieldName(descriptor.FieldID(id))
		if got := host.FieldNameForId(uint16(id)); got != want {
			out = append(out, Mismatch{
				Kind:   MismatchField,
				Detail: fmt.Sprintf("field %d is %q in descriptor, %q in host", id, want, got),
			})
		}
	}

	for id := uint32(1); id < desc.SymbolCount(); id++ {
		info, _ := desc.SymbolInfo(descriptor.Symbol(id))
		if !info.Named || !info.Visible {
			continue
		}
		if host.IdForNodeKind(info.Name, true) == 0 {
			out = append(out, Mismatch{
				Kind:   MismatchSymbol,
				Detail: fmt.Sprintf("named node %q unknown to host", info.Name),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Detail < out[j].Detail
	})
	return out
}

package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"tree-sitter-cerium/internal/engine/registry"
)

func TestInspectModel_PanelsAndDetails(t *testing.T) {
	desc, err := registry.Descriptor("barq")
	if err != nil {
		t.Fatal(err)
	}
	m := newInspectModel(desc)
	if len(m.symbolList.Items()) != int(desc.SymbolCount()) {
		t.Fatalf("expected %d symbol items, got %d", desc.SymbolCount(), len(m.symbolList.Items()))
	}
	if len(m.fieldList.Items()) != int(desc.FieldCount()) {
		t.Fatalf("expected %d field items, got %d", desc.FieldCount(), len(m.fieldList.Items()))
	}

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	state := updated.(inspectModel)

	updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyTab})
	state = updated.(inspectModel)
	if state.mode != panelFields {
		t.Fatalf("expected field panel after tab, got %v", state.mode)
	}
	if !strings.Contains(state.View(), "Fields") {
		t.Fatal("expected field list in view")
	}

	updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyTab})
	state = updated.(inspectModel)
	if state.mode != panelSymbols {
		t.Fatalf("expected symbol panel after second tab, got %v", state.mode)
	}

	updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyEnter})
	state = updated.(inspectModel)
	if !state.showDetails {
		t.Fatal("expected productions to open")
	}
	view := state.View()
	for _, want := range []string{"Symbol end", "Productions (", "Referenced by ("} {
		if !strings.Contains(view, want) {
			t.Errorf("details view missing %q", want)
		}
	}

	updated, _ = state.Update(tea.KeyMsg{Type: tea.KeyEsc})
	state = updated.(inspectModel)
	if state.showDetails {
		t.Fatal("expected esc to close details")
	}

	_, cmd := state.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
}

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"tree-sitter-cerium/pkg/descriptor"
)

type item struct {
	title, desc string
	symbol      descriptor.Symbol
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title }

type panelMode int

const (
	panelSymbols panelMode = iota
	panelFields
)

type inspectModel struct {
	desc        *descriptor.Language
	symbolList  list.Model
	fieldList   list.Model
	mode        panelMode
	showDetails bool
}

func newInspectModel(desc *descriptor.Language) inspectModel {
	symbols := make([]list.Item, 0, desc.SymbolCount())
	for id := uint32(0); id < desc.SymbolCount(); id++ {
		info, _ := desc.SymbolInfo(descriptor.Symbol(id))
		symbols = append(symbols, item{
			title:  info.Name,
			desc:   fmt.Sprintf("#%d %s named=%t visible=%t extra=%t", id, info.Kind, info.Named, info.Visible, info.Extra),
			symbol: descriptor.Symbol(id),
		})
	}
	fields := make([]list.Item, 0, desc.FieldCount())
	for id := uint32(1); id <= desc.FieldCount(); id++ {
		fields = append(fields, item{
			title: desc.FieldName(descriptor.FieldID(id)),
			desc:  fmt.Sprintf("field #%d", id),
		})
	}

	symbolList := list.New(symbols, list.NewDefaultDelegate(), 0, 0)
	symbolList.Title = "Symbols"
	symbolList.SetShowStatusBar(false)
	symbolList.SetFilteringEnabled(true)

	fieldList := list.New(fields, list.NewDefaultDelegate(), 0, 0)
	fieldList.Title = "Fields"
	fieldList.SetShowStatusBar(false)
	fieldList.SetFilteringEnabled(true)

	return inspectModel{
		desc:       desc,
		symbolList: symbolList,
		fieldList:  fieldList,
		mode:       panelSymbols,
	}
}

func (m inspectModel) Init() tea.Cmd {
	return nil
}

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filtering() {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			if m.mode == panelSymbols {
				m.mode = panelFields
			} else {
				m.mode = panelSymbols
			}
			m.showDetails = false
			return m, nil
		case "enter":
			if m.mode == panelSymbols {
				m.showDetails = !m.showDetails
			}
			return m, nil
		case "esc":
			if m.showDetails {
				m.showDetails = false
				return m, nil
			}
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		height := msg.Height - v - 4
		if height < 5 {
			height = 5
		}
		m.symbolList.SetSize(msg.Width-h, height)
		m.fieldList.SetSize(msg.Width-h, height)
	}

	var cmd tea.Cmd
	if m.mode == panelSymbols {
		m.symbolList, cmd = m.symbolList.Update(msg)
	} else {
		m.fieldList, cmd = m.fieldList.Update(msg)
	}
	return m, cmd
}

func (m inspectModel) filtering() bool {
	if m.mode == panelSymbols {
		return m.symbolList.FilterState() == list.Filtering
	}
	return m.fieldList.FilterState() == list.Filtering
}

func (m inspectModel) View() string {
	header := titleStyle.Render(m.desc.Name()) + " " +
		statusStyle.Render(fmt.Sprintf("abi %d | %d symbols | %d fields | %d productions",
			m.desc.ABIVersion(), m.desc.SymbolCount(), m.desc.FieldCount(), m.desc.ProductionCount()))
	help := statusStyle.Render("Keys: tab panel | / filter | enter productions | esc back | q quit")

	body := m.symbolList.View()
	if m.mode == panelFields {
		body = m.fieldList.View()
	} else if m.showDetails {
		body = m.renderProductions()
	}
	return docStyle.Render(header + "\n" + help + "\n\n" + body)
}

// renderProductions lists the productions of the selected symbol and the
// productions that reference it.
func (m inspectModel) renderProductions() string {
	selected, ok := m.symbolList.SelectedItem().(item)
	if !ok {
		return statusStyle.Render("No symbol selected.")
	}

	var defines, uses []string
	for i := 0; i < int(m.desc.ProductionCount()); i++ {
		p, _ := m.desc.Production(i)
		line := fmt.Sprintf("  %4d  %s", i, formatProduction(m.desc, p))
		if p.LHS == selected.symbol {
			defines = append(defines, line)
			continue
		}
		for _, step := range p.Steps {
			if step.Symbol == selected.symbol {
				uses = append(uses, line)
				break
			}
		}
	}

	lines := []string{titleStyle.Render("Symbol " + selected.title)}
	lines = append(lines, fmt.Sprintf("Productions (%d):", len(defines)))
	lines = append(lines, orNone(defines)...)
	lines = append(lines, fmt.Sprintf("Referenced by (%d):", len(uses)))
	lines = append(lines, orNone(uses)...)
	return strings.Join(lines, "\n")
}

func orNone(lines []string) []string {
	if len(lines) == 0 {
		return []string{"  none"}
	}
	return lines
}

package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/lineage/pkg/backend"
	"github.com/matzehuels/lineage/pkg/lineage"
	"github.com/matzehuels/lineage/pkg/search"
)

func (c *CLI) searchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search [name]",
		Short: "Search clergy by name and trace the selection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withClient(ctx, func(client *backend.Client) error {
				initial := ""
				if len(args) == 1 {
					initial = args[0]
				}
				var p *tea.Program
				deb := search.NewDebouncer(client, func(term string, results []lineage.Entry) {
					p.Send(resultsMsg{term: term, results: results})
				}, search.Options{Logger: loggerFromContext(ctx)})
				defer deb.Close()

				p = tea.NewProgram(NewSearchModel(initial, deb.Query), tea.WithContext(ctx))
				final, err := p.Run()
				if err != nil {
					return err
				}
				m := final.(SearchModel)
				if m.Selected == nil {
					return nil
				}

				spinner := newSpinnerWithContext(ctx, "Tracing "+displayName(*m.Selected)+"...")
				spinner.Start()
				chain, err := client.Trace(ctx, m.Selected.ID)
				spinner.Stop()
				if err != nil {
					return err
				}
				if len(chain) == 0 {
					chain = []lineage.Entry{*m.Selected}
				}
				fmt.Println(traceTable(chain))
				printTraceEnd(chain[len(chain)-1], c.Config.LineageConfig())
				return nil
			})
		},
	}
}

// =============================================================================
// SearchModel - Interactive clergy search
// =============================================================================

// resultsMsg carries debounced results for term.
type resultsMsg struct {
	term    string
	results []lineage.Entry
}

// SearchModel is the bubbletea model for the search picker.
type SearchModel struct {
	Query    string
	Results  []lineage.Entry
	Cursor   int
	Selected *lineage.Entry

	searching bool
	query     func(string)
}

// NewSearchModel creates a picker that calls query whenever the input
// changes.
func NewSearchModel(initial string, query func(string)) SearchModel {
	return SearchModel{Query: initial, query: query, searching: initial != ""}
}

func (m SearchModel) Init() tea.Cmd {
	if m.Query != "" {
		m.query(m.Query)
	}
	return nil
}

func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp, tea.KeyCtrlP:
			if m.Cursor > 0 {
				m.Cursor--
			}
		case tea.KeyDown, tea.KeyCtrlN, tea.KeyTab:
			if m.Cursor < len(m.Results)-1 {
				m.Cursor++
			}
		case tea.KeyEnter:
			if len(m.Results) == 0 {
				return m, nil
			}
			e := m.Results[m.Cursor]
			m.Selected = &e
			return m, tea.Quit
		case tea.KeyBackspace:
			if r := []rune(m.Query); len(r) > 0 {
				m.setQuery(string(r[:len(r)-1]))
			}
		case tea.KeySpace:
			m.setQuery(m.Query + " ")
		case tea.KeyRunes:
			m.setQuery(m.Query + string(msg.Runes))
		}
	case resultsMsg:
		// Drop results for a term the user has already typed past.
		if msg.term != strings.TrimSpace(m.Query) {
			return m, nil
		}
		m.Results = msg.results
		m.Cursor = 0
		m.searching = false
	}
	return m, nil
}

func (m *SearchModel) setQuery(q string) {
	m.Query = q
	m.searching = strings.TrimSpace(q) != ""
	if !m.searching {
		m.Results = nil
		m.Cursor = 0
	}
	m.query(strings.TrimSpace(q))
}

func (m SearchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Search Clergy"))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("type to search  ↑/↓ navigate  ⏎ trace  esc quit"))
	b.WriteString("\n\n")
	b.WriteString(StyleHighlight.Render(iconInfo) + " " + StyleValue.Render(m.Query) + StyleDim.Render("▏"))
	b.WriteString("\n\n")

	switch {
	case m.searching:
		b.WriteString(StyleDim.Render("  searching..."))
		b.WriteString("\n")
	case m.Query != "" && len(m.Results) == 0:
		b.WriteString(StyleDim.Render("  no matches"))
		b.WriteString("\n")
	}

	for i, e := range m.Results {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		line := fmt.Sprintf("%s%-32s %s", cursor, displayName(e), StyleDim.Render(yearString(e.Year())+" "+e.Role))
		if i == m.Cursor {
			b.WriteString(styleListSelected.Render(line))
		} else {
			b.WriteString(styleListNormal.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/lineage/pkg/backend"
	"github.com/matzehuels/lineage/pkg/lineage"
	"github.com/matzehuels/lineage/pkg/render"
)

// withClient opens the cache and runs fn with a backend client.
func (c *CLI) withClient(ctx context.Context, fn func(*backend.Client) error) error {
	store, err := c.newCache(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(c.newClient(store))
}

// =============================================================================
// trace
// =============================================================================

func (c *CLI) traceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "trace <id>",
		Short: "Print the ancestry of a clergy member back to the root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withClient(ctx, func(client *backend.Client) error {
				spinner := newSpinnerWithContext(ctx, "Tracing lineage...")
				spinner.Start()
				chain, err := client.Trace(ctx, args[0])
				spinner.Stop()
				if err != nil {
					return err
				}
				if len(chain) == 0 {
					printWarning("No lineage recorded for %s", args[0])
					return nil
				}
				fmt.Println(traceTable(chain))
				printTraceEnd(chain[len(chain)-1], c.Config.LineageConfig())
				return nil
			})
		},
	}
}

// traceTable renders a chain from the traced node upward.
func traceTable(chain []lineage.Entry) string {
	rows := make([][]string, 0, len(chain))
	for i, e := range chain {
		rows = append(rows, []string{strconv.Itoa(i + 1), displayName(e), yearString(e.Year()), e.Role, e.ID})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleTableBorder).
		Headers("#", "Name", "Year", "Role", "ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styleTableHeader
			case row == 0:
				return styleTraced
			case col == 4:
				return StyleDim
			}
			return StyleValue
		}).
		Render()
}

// printTraceEnd explains how the chain connects to the backbone.
func printTraceEnd(last lineage.Entry, cfg lineage.Config) {
	switch {
	case last.ID == cfg.Root.ID || last.ID == cfg.AnchorID:
		printSuccess("Chain reaches %s", StyleHighlight.Render(last.Name))
	case last.ParentID == cfg.AnchorID || last.ParentID == cfg.Root.ID:
		printSuccess("Chain joins the main line at %s", StyleHighlight.Render(last.ParentID))
	case last.ParentID == "" || lineage.IsSentinel(last.ParentID):
		printWarning("Lineage lost after %s", styleLost.Render(displayName(last)))
	default:
		printInfo("Chain continues at %s", last.ParentID)
	}
}

// =============================================================================
// node
// =============================================================================

func (c *CLI) nodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "node <id>",
		Short: "Show a single clergy record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd.Context(), func(client *backend.Client) error {
				e, err := client.Node(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Println(StyleTitle.Render(displayName(e)))
				printKeyValue("ID", e.ID)
				printKeyValue("Role", orDash(e.Role))
				printKeyValue("Year", yearString(e.Year()))
				printKeyValue("Era", eraString(e.Year()))
				printKeyValue("Parent", orDash(e.ParentID))
				if e.ImageURL != "" {
					printKeyValue("Portrait", StyleLink.Render(e.ImageURL))
				}
				return nil
			})
		},
	}
}

// =============================================================================
// eras
// =============================================================================

func (c *CLI) erasCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "eras",
		Short: "List the eras of the main chain and their first pope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd.Context(), func(client *backend.Client) error {
				entries, err := client.MainChain(cmd.Context())
				if err != nil {
					return err
				}
				g := lineage.NewGraph(c.Config.LineageConfig())
				g.LoadBackbone(entries)
				for _, line := range eraLines(g) {
					fmt.Println(line)
				}
				printDetail("%d popes on the main chain", len(g.Backbone())-1)
				return nil
			})
		},
	}
}

func eraLines(g *lineage.Graph) []string {
	keyStyle := lipgloss.NewStyle().Foreground(colorAccent).Width(8)
	var lines []string
	for _, era := range g.Eras() {
		anchor := g.EraAnchor(era)
		if anchor == nil {
			continue
		}
		lines = append(lines, keyStyle.Render(render.Roman(era))+" "+StyleValue.Render(anchor.Name)+" "+StyleDim.Render(yearString(anchor.Year)))
	}
	return lines
}

// =============================================================================
// stats
// =============================================================================

func (c *CLI) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show backend statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withClient(cmd.Context(), func(client *backend.Client) error {
				st, err := client.Stats(cmd.Context())
				if err != nil {
					return err
				}
				printKeyValue("Bishops", StyleNumber.Render(strconv.Itoa(st.TotalBishops)))
				printKeyValue("Popes", StyleNumber.Render(strconv.Itoa(st.TotalPopes)))
				printKeyValue("Clergy", StyleNumber.Render(strconv.Itoa(st.TotalClergy)))
				printKeyValue("Views", fmt.Sprintf("%d today, %d total", st.TodayViews, st.TotalViews))
				if len(st.RecentPopes) > 0 {
					printNewline()
					fmt.Println(StyleTitle.Render("Recent popes"))
					for _, e := range st.RecentPopes {
						printDetail("%s (%s)", displayName(e), yearString(e.Year()))
					}
				}
				return nil
			})
		},
	}
}

// =============================================================================
// Formatting
// =============================================================================

func displayName(e lineage.Entry) string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

func yearString(y *int) string {
	if y == nil {
		return "—"
	}
	return strconv.Itoa(*y)
}

func eraString(y *int) string {
	era := lineage.EraOf(y)
	if era == lineage.UnknownEra {
		return "unknown"
	}
	return render.Roman(era)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

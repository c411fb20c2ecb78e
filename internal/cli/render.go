package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lineage/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output     string   // output file path (or base path for multiple outputs)
	formats    []string // png, svg, dot, graphviz, json
	width      int
	height     int
	scale      float64
	trace      string
	era        int
	zoom       float64
	seed       int64
	detailed   bool
	embedFonts bool
	portraits  bool
}

// renderCommand creates the render command for one-shot frames.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	opts := renderOpts{scale: pipeline.DefaultScale, seed: pipeline.DefaultSeed, portraits: true}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the lineage graph to PNG, SVG, DOT or JSON",
		Long: `Render loads the main chain, lets the layout settle and writes one frame per format.

With --trace the ancestry of a node is highlighted and framed; --era flies
to an era's anchor and --zoom overrides the final scale.`,
		Example: `  lineage render -o lineage.png
  lineage render --trace 4f2a --format png,svg,json -o out/lineage
  lineage render --era 16 --zoom 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			return c.runRender(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): png (default), svg, dot, graphviz, json (comma-separated)")
	cmd.Flags().IntVar(&opts.width, "width", 0, "frame width (default from config)")
	cmd.Flags().IntVar(&opts.height, "height", 0, "frame height (default from config)")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "device pixel ratio for PNG")
	cmd.Flags().StringVar(&opts.trace, "trace", "", "node id whose ancestry is highlighted")
	cmd.Flags().IntVar(&opts.era, "era", 0, "fly to the anchor of this era (century)")
	cmd.Flags().Float64Var(&opts.zoom, "zoom", 0, "final camera zoom")
	cmd.Flags().Int64Var(&opts.seed, "seed", opts.seed, "layout seed")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include years and roles in DOT labels")
	cmd.Flags().BoolVar(&opts.embedFonts, "embed-fonts", false, "embed fonts in SVG output")
	cmd.Flags().BoolVar(&opts.portraits, "portraits", opts.portraits, "draw node portraits")

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, opts renderOpts) error {
	ctx := cmd.Context()
	runner, closeRunner, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer closeRunner()

	popts := pipeline.Options{
		Config:     c.Config.LineageConfig(),
		Width:      firstNonZero(opts.width, c.Config.Frame.Width),
		Height:     firstNonZero(opts.height, c.Config.Frame.Height),
		Scale:      opts.scale,
		Seed:       opts.seed,
		Trace:      opts.trace,
		Era:        opts.era,
		Zoom:       opts.zoom,
		Formats:    opts.formats,
		Detailed:   opts.detailed,
		EmbedFonts: opts.embedFonts,
		Portraits:  opts.portraits,
		Refresh:    c.refresh,
		Logger:     c.Logger,
	}

	spinner := newSpinnerWithContext(ctx, "Rendering lineage...")
	spinner.Start()
	prog := newProgress(c.Logger)
	result, err := runner.Execute(ctx, popts)
	spinner.Stop()
	if err != nil {
		if spinner.Cancelled() {
			return ctx.Err()
		}
		return err
	}
	prog.done("rendered lineage", "formats", len(popts.Formats), "cached", result.CacheInfo.RenderHit)

	printSuccess("Rendered %s", strings.Join(popts.Formats, ", "))
	printStats(result.Stats.NodeCount, result.Stats.LinkCount, result.CacheInfo.RenderHit)
	for _, format := range popts.Formats {
		path := outputPath(opts.output, format, len(popts.Formats) > 1)
		if err := writeArtifact(path, result.Artifacts[format]); err != nil {
			return err
		}
		printFile(path)
	}
	if opts.trace == "" {
		printNextStep("Highlight an ancestry", appName+" render --trace <id>")
	}
	return nil
}

// outputPath resolves the file for one format. A single format writes to
// output verbatim; multiple formats treat output as a base path.
func outputPath(output, format string, multi bool) string {
	ext := pipeline.Extension(format)
	if output == "" {
		return appName + "." + ext
	}
	if !multi {
		return output
	}
	base := strings.TrimSuffix(output, filepath.Ext(output))
	return base + "." + ext
}

func writeArtifact(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

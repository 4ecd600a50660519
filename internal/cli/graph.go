package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/msftcangoblowm/drain-swamp/pkg/render"
	"github.com/msftcangoblowm/drain-swamp/pkg/req"
)

// graphCommand creates the include-graph rendering command.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		venvKey string
		format  string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Draw the requirement include graph",
		Long: `Walk the -r/-c references between .in files and emit the include
graph as Graphviz DOT (default) or rendered SVG. Shared files are
drawn dashed, referenced-but-missing files in red.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "dot" && format != "svg" {
				return fmt.Errorf("unknown format %q, want dot or svg", format)
			}

			m, err := c.loadVenvMap(req.SuffixIn)
			if err != nil {
				return err
			}
			g, err := render.BuildIncludeGraph(m, venvKey)
			if err != nil {
				return err
			}

			dot := g.ToDOT()
			data := []byte(dot)
			if format == "svg" {
				data, err = render.RenderSVG(dot)
				if err != nil {
					return err
				}
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			printFile(output)
			edges := 0
			for _, node := range g.Nodes() {
				edges += len(g.Refs(node))
			}
			printStats(len(g.Nodes()), edges)
			return nil
		},
	}

	cmd.Flags().StringVar(&venvKey, "venv", "", "limit to one venv (relative path)")
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot or svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

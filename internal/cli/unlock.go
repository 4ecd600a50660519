package cli

import (
	"github.com/spf13/cobra"

	"github.com/msftcangoblowm/drain-swamp/pkg/compile"
	"github.com/msftcangoblowm/drain-swamp/pkg/req"
)

// unlockCommand creates the unlock command.
func (c *CLI) unlockCommand() *cobra.Command {
	var venvKey string

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Flatten .in include graphs into .unlock files",
		Long: `Resolve the -r/-c include graph of every requirement stem and write
the flattened dependency list to an .unlock file. Runs entirely
locally; no resolver and no network.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			prog := newProgress(logger)

			m, err := c.loadVenvMap(req.SuffixIn)
			if err != nil {
				return err
			}
			if err := m.EnsureComplete(); err != nil {
				return err
			}

			written, err := compile.UnlockCompile(m, venvKey)
			if err != nil {
				return err
			}
			for _, path := range written {
				printFile(path)
			}
			prog.done(countMsg("Wrote %d unlock file", len(written)))
			return nil
		},
	}

	cmd.Flags().StringVar(&venvKey, "venv", "", "limit to one venv (relative path)")
	return cmd
}

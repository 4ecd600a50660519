package cli

import (
	"github.com/spf13/cobra"

	"github.com/msftcangoblowm/drain-swamp/pkg/inspect"
)

// fixCommand creates the fix command.
func (c *CLI) fixCommand() *cobra.Command {
	var (
		venvKey          string
		dryRun           bool
		showUnresolvable bool
		showFixed        bool
	)

	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Repair version discrepancies across lock files",
		Long: `Scan each venv's .lock files for packages pinned to more than one
version. When every constraint declared in the .unlock files admits
the highest pinned version, the package is nudged to it in every
affected .lock/.unlock pair. Conflicts a constraint rejects, and
conflicts touching .shared files, are reported for manual review.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			prog := newProgress(logger)

			m, err := c.loadVenvMap()
			if err != nil {
				return err
			}

			results, err := inspect.FixRequirements(m, venvKey, dryRun)
			if err != nil {
				return err
			}

			filter := resultFilter{
				unresolvables: showUnresolvable || !showFixed,
				fixed:         showFixed || !showUnresolvable,
			}
			totalFixed := 0
			for _, result := range results {
				printVenvResult(result, dryRun, filter)
				totalFixed += len(result.Fixed)
			}
			if dryRun {
				prog.done(countMsg("Dry run: %d pin", totalFixed) + " would be rewritten")
			} else {
				prog.done(countMsg("Rewrote %d pin", totalFixed))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&venvKey, "venv", "", "limit to one venv (relative path)")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report fixes without writing files")
	cmd.Flags().BoolVar(&showUnresolvable, "show-unresolvables", false, "print only unresolvable conflicts")
	cmd.Flags().BoolVar(&showFixed, "show-fixed", false, "print only fixed pins")
	return cmd
}

// resultFilter selects which sections of a venv result are printed.
type resultFilter struct {
	unresolvables bool
	fixed         bool
}

// printVenvResult renders one venv's fixing outcome.
func printVenvResult(result inspect.VenvResult, dryRun bool, filter resultFilter) {
	if len(result.Fixed)+len(result.UnResolvables)+len(result.Shared) == 0 {
		printSuccess("%s: no discrepancies", result.VenvPath)
		return
	}

	printInfo("%s", StyleTitle.Render(result.VenvPath))
	if filter.fixed {
		for _, msg := range result.Fixed {
			if dryRun {
				printDetail("would pin %s in %s", msg.NudgePinLine, msg.File)
			} else {
				printFile(msg.File)
				printDetail("pinned %s", msg.NudgePinLine)
			}
		}
		for _, notice := range result.Shared {
			printWarning("%s pins %s; shared files are never rewritten, edit manually",
				notice.Entry.File, notice.Resolvable.PkgName)
		}
	}
	if filter.unresolvables {
		for _, u := range result.UnResolvables {
			printError("unresolvable: %s", u.String())
		}
	}
	for _, err := range result.WriteErrors {
		printError("%v", err)
	}
}

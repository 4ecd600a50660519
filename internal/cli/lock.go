package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/msftcangoblowm/drain-swamp/pkg/compile"
	"github.com/msftcangoblowm/drain-swamp/pkg/req"
)

// lockCommand creates the lock command.
func (c *CLI) lockCommand() *cobra.Command {
	var (
		venvKey string
		timeout time.Duration
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Compile .in files into pinned .lock files",
		Long: `Compile every requirement stem's .in file into a fully pinned
.lock file by shelling out to pip-compile, one invocation per stem.
Unchanged stems are served from the compile cache; pass --refresh to
force recompilation. A stem that fails or times out is reported and the
remaining stems still compile.`,
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

			compileCache, err := newCache(refresh)
			if err != nil {
				return err
			}
			defer compileCache.Close()

			locker, err := compile.NewLocker(m,
				compile.WithTimeout(timeout),
				compile.WithCache(compileCache),
			)
			if err != nil {
				return err
			}

			spin := newSpinner(cmd.Context(), "Compiling lock files...")
			spin.Start()
			compiled, failures, err := locker.LockCompile(cmd.Context(), venvKey)
			spin.Stop()
			if err != nil {
				return err
			}

			for _, path := range compiled {
				printFile(path)
			}
			for _, failure := range failures {
				printWarning("%s: %s", failure.InFile, failure.Reason)
			}
			if len(failures) == 0 {
				prog.done(countMsg("Compiled %d lock file", len(compiled)))
				printNextStep("Check for version discrepancies", appName+" fix --dry-run")
			} else {
				printError("%d of %d stems failed to compile", len(failures), len(compiled)+len(failures))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&venvKey, "venv", "", "limit to one venv (relative path)")
	cmd.Flags().DurationVar(&timeout, "timeout", compile.DefaultTimeout, "per-file resolver deadline")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the compile cache")
	return cmd
}

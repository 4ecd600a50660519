package cli

import (
	"github.com/spf13/cobra"
)

// venvsCommand creates the venvs listing command.
func (c *CLI) venvsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "venvs",
		Short: "List venvs and requirement stems from pyproject.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.loadVenvMap()
			if err != nil {
				return err
			}

			printKeyValue("pyproject", m.Loader().PyprojectToml)
			printNewline()

			current := ""
			for _, vr := range m.All() {
				if vr.VenvRelpath != current {
					current = vr.VenvRelpath
					printInfo("%s", StyleTitle.Render(current))
				}
				stem := vr.ReqRelpath
				if vr.IsReqShared() {
					stem += " " + StyleDim.Render("(shared)")
				}
				printDetail("%s", stem)
			}

			if missing := m.Missing(); len(missing) != 0 {
				printNewline()
				for _, msg := range missing {
					printWarning("%s", msg)
				}
				printNextStep("Create missing files, then compile",
					appName+" unlock && "+appName+" lock")
			}
			return nil
		},
	}
}

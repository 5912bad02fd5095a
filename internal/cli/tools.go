package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stepwise-ai/stepwise/internal/profile"
	"github.com/stepwise-ai/stepwise/internal/registry"
	"github.com/stepwise-ai/stepwise/internal/sandbox"
	"github.com/stepwise-ai/stepwise/internal/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the capability catalogue as advertised to the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		// The catalogue text depends only on registration, not on live
		// collaborators, so a throwaway sandbox over the cwd is enough.
		sb, err := sandbox.New([]string{"."}, nil, "")
		if err != nil {
			return err
		}
		reg := registry.New()
		tools.RegisterAll(reg, tools.Deps{Sandbox: sb, Profile: profile.NewStore("")})
		fmt.Fprint(cmd.OutOrStdout(), reg.Catalog())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

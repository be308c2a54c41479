package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List the running versions, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, _, client, err := setup(cmd)
		if err != nil {
			return err
		}
		vs, err := client.ListVersions(cmd.Context())
		if err != nil {
			p.SetFailed(fmt.Sprintf("Unable to determine current versions: %v", err))
			return errRunFailed
		}
		for _, v := range vs {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}
		return nil
	},
}

func init() {
	addInputFlags(versionsCmd)
}

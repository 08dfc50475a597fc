package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// NewProjectionCmd создаёт группу команд для проекции аккаунтов.
func NewProjectionCmd(backendFn func() Backend, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projection",
		Short: "Inspect the Postgres account projection",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List active accounts known to attendees",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := backendFn().ListAccounts(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, len(list))
			for i, acc := range list {
				rows[i] = []string{acc.Email, acc.FirstName, acc.LastName, acc.Updated.Format(time.RFC3339)}
			}

			outputFn().Print([]string{"EMAIL", "FIRST_NAME", "LAST_NAME", "UPDATED"}, rows, list)
			return nil
		},
	})

	return cmd
}

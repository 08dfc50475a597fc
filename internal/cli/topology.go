package cli

import (
	"github.com/spf13/cobra"

	"github.com/shaiso/confbus/internal/mq"
)

// NewTopologyCmd создаёт группу команд для топологии брокера.
func NewTopologyCmd(backendFn func() Backend, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topology",
		Short: "Inspect and declare the broker topology",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print exchanges, queues and their consumers",
			RunE: func(cmd *cobra.Command, args []string) error {
				outputFn().Text(mq.TopologyInfo())
				return nil
			},
		},
		&cobra.Command{
			Use:   "setup",
			Short: "Declare exchanges and queues (idempotent)",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := backendFn().SetupTopology(cmd.Context()); err != nil {
					return err
				}
				outputFn().Success("Topology declared")
				return nil
			},
		},
	)

	return cmd
}

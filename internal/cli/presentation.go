package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/confbus/internal/events"
	"github.com/shaiso/confbus/internal/mq"
)

// NewPresentationCmd создаёт группу команд для решений по докладам.
func NewPresentationCmd(backendFn func() Backend, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presentation",
		Short: "Publish presentation decisions",
	}

	cmd.AddCommand(
		newDecisionCmd("approve", "Approve a presentation and notify the presenter", events.DecisionApproved, backendFn, outputFn),
		newDecisionCmd("reject", "Reject a presentation and notify the presenter", events.DecisionRejected, backendFn, outputFn),
	)

	return cmd
}

func newDecisionCmd(use, short string, decision events.Decision, backendFn func() Backend, outputFn func() *Output) *cobra.Command {
	var name, email, title string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			ev := events.PresentationDecisionEvent{
				PresenterName:  name,
				PresenterEmail: email,
				Title:          title,
				Decision:       decision,
			}

			id, err := backendFn().PublishDecision(cmd.Context(), ev)
			if errors.Is(err, mq.ErrUnroutable) {
				out.Warn(fmt.Sprintf("decision for %s was returned by the broker: %v", email, err))
				return nil
			}
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Presentation %s: %s", decision, id))
			out.Print(
				[]string{"MESSAGE_ID", "DECISION", "PRESENTER", "TITLE"},
				[][]string{{id, string(decision), email, title}},
				map[string]any{"message_id": id, "decision": decision, "event": ev},
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Presenter name (required)")
	cmd.Flags().StringVar(&email, "email", "", "Presenter email (required)")
	cmd.Flags().StringVar(&title, "title", "", "Presentation title (required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("title")

	return cmd
}

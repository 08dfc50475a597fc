package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/confbus/internal/events"
)

// NewAccountCmd создаёт группу команд для событий аккаунтов.
func NewAccountCmd(backendFn func() Backend, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Publish account lifecycle events",
	}

	cmd.AddCommand(newAccountPublishCmd(backendFn, outputFn))

	return cmd
}

func newAccountPublishCmd(backendFn func() Backend, outputFn func() *Output) *cobra.Command {
	var (
		email     string
		firstName string
		lastName  string
		inactive  bool
		updated   string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Broadcast the current state of an account to account_info",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			ts := time.Now().UTC()
			if updated != "" {
				parsed, err := events.ParseTimestamp(updated)
				if err != nil {
					return fmt.Errorf("invalid --updated: %w", err)
				}
				ts = parsed
			}

			ev := events.AccountEvent{
				Email:     email,
				FirstName: firstName,
				LastName:  lastName,
				IsActive:  !inactive,
				Updated:   ts,
			}

			id, err := backendFn().PublishAccount(cmd.Context(), ev)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Account event published: %s", id))
			out.Print(
				[]string{"MESSAGE_ID", "EMAIL", "ACTIVE", "UPDATED"},
				[][]string{{id, ev.Email, strconv.FormatBool(ev.IsActive), ev.Updated.Format(time.RFC3339)}},
				map[string]any{"message_id": id, "event": ev},
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (required)")
	cmd.Flags().StringVar(&firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Publish a deactivation")
	cmd.Flags().StringVar(&updated, "updated", "", "Update timestamp, RFC3339 or naive ISO-8601 (default: now)")
	cmd.MarkFlagRequired("email")

	return cmd
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stemsi/classroom-client/internal/apperr"
)

// maxCodeTries bounds how often a mistyped recovery code can be re-entered.
const maxCodeTries = 3

func recoverCmd() *cobra.Command {
	var username, email string

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Reset a forgotten password with an emailed code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if username == "" {
				username = readLine("Username: ")
			}
			if email == "" {
				email = readLine("Email: ")
			}

			if err := core.Session.RequestPasswordReset(ctx, username, email); err != nil {
				return err
			}

			verified := false
			for i := 0; i < maxCodeTries && !verified; i++ {
				verified = core.Session.VerifyResetCode(readLine("Code: "))
				if !verified {
					fmt.Println("Incorrect or expired code")
				}
			}
			if !verified {
				return apperr.New(apperr.CodeResetCodeInvalid, "classroom.recover", nil)
			}

			password, err := readPassword("New password: ")
			if err != nil {
				return err
			}
			if err := core.Session.SetNewPassword(ctx, password); err != nil {
				return err
			}
			fmt.Println("Password updated, sign in with the new password")
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

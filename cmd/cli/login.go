package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/spf13/cobra"
	"github.com/visarisk/agent/internal/common"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the Visarisk backend",
	Long: `Exchange your email and password for a session and keep it on this
device. Missing values are asked for interactively.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		session, state, err := openSession(cmd)
		if err != nil {
			return err
		}

		if state.IsAuthenticated() {
			fmt.Println(successStyle.Render("Already signed in"))
			printIdentity(state.Identity)
			fmt.Println("   Use 'visarisk logout' to switch accounts")
			return nil
		}

		if len(email) == 0 || len(password) == 0 {
			if err := promptCredentials(&email, &password); err != nil {
				return err
			}
		}

		var loginErr error
		err = spinner.New().
			Title("Signing in to " + cfg.GetLoginServerHostname() + "...").
			Action(func() {
				loginErr = session.Controller.Login(cmd.Context(), strings.TrimSpace(email), password)
			}).
			Run()
		if err != nil {
			return err
		}

		if loginErr != nil {
			return fmt.Errorf("sign in failed: %w", loginErr)
		}

		fmt.Println(successStyle.Render("Signed in"))
		printIdentity(session.Controller.State().Identity)
		return nil
	},
}

func promptCredentials(email, password *string) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(email).
				Validate(func(value string) error {
					if !common.IsValidEmail(strings.TrimSpace(value)) {
						return errors.New("enter a valid email address")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(func(value string) error {
					if len(value) == 0 {
						return errors.New("password is required")
					}
					return nil
				}),
		),
	)

	return form.Run()
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().String("email", "", "Account email")
	loginCmd.Flags().String("password", "", "Account password (prompted when omitted)")
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, state, err := openSession(cmd)
		if err != nil {
			return err
		}

		if !state.IsAuthenticated() {
			fmt.Println(warningStyle.Render("Not signed in"))
			return nil
		}

		session.Controller.Logout(cmd.Context())

		fmt.Println(successStyle.Render("Signed out of " + cfg.GetLoginServerHostname()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

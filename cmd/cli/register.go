package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/spf13/cobra"
	"github.com/visarisk/agent/internal/agent"
	"github.com/visarisk/agent/internal/common"
	"github.com/visarisk/agent/internal/models"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a Visarisk account",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile := models.RegistrationProfile{
			Role: string(models.RoleStudent),
		}

		if err := promptProfile(&profile); err != nil {
			return err
		}

		session, err := agent.NewSession(cfg)
		if err != nil {
			return err
		}

		var registerErr error
		err = spinner.New().
			Title("Creating your account...").
			Action(func() {
				registerErr = session.Controller.Register(cmd.Context(), profile)
			}).
			Run()
		if err != nil {
			return err
		}

		if registerErr != nil {
			fmt.Println(errorStyle.Render("Registration failed"))

			var rejected *models.RegisterError
			if errors.As(registerErr, &rejected) && len(rejected.Messages) > 0 {
				for _, message := range rejected.Messages {
					fmt.Printf("   %s\n", message)
				}
			} else {
				fmt.Printf("   %s\n", registerErr)
			}
			return fmt.Errorf("registration rejected by %s", cfg.GetLoginServerHostname())
		}

		fmt.Println(successStyle.Render("Registration successful!"))
		fmt.Println("   Use 'visarisk login' to sign in")
		return nil
	},
}

func promptProfile(profile *models.RegistrationProfile) error {
	required := func(field string) func(string) error {
		return func(value string) error {
			if len(strings.TrimSpace(value)) == 0 {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&profile.Email).
				Validate(func(value string) error {
					if !common.IsValidEmail(strings.TrimSpace(value)) {
						return errors.New("enter a valid email address")
					}
					return nil
				}),
			huh.NewInput().
				Title("First name").
				Value(&profile.FirstName).
				Validate(required("first name")),
			huh.NewInput().
				Title("Last name").
				Value(&profile.LastName).
				Validate(required("last name")),
			huh.NewSelect[string]().
				Title("I am a").
				Options(
					huh.NewOption("Student", string(models.RoleStudent)),
					huh.NewOption("Parent", string(models.RoleParent)),
				).
				Value(&profile.Role),
			huh.NewInput().
				Title("Location").
				Description("Optional").
				Value(&profile.Location),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&profile.Password).
				Validate(required("password")),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&profile.ConfirmPassword),
		),
	)

	return form.Run()
}

func init() {
	rootCmd.AddCommand(registerCmd)
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/visarisk/agent/internal/agent"
	"github.com/visarisk/agent/internal/models"
)

// openSession restores the saved session for commands that talk to the
// backend without serving pages.
func openSession(cmd *cobra.Command) (*agent.Session, models.SessionState, error) {
	session, err := agent.NewSession(cfg)
	if err != nil {
		return nil, models.UnknownState(), err
	}

	state := session.Restore(cmd.Context())
	return session, state, nil
}

func printIdentity(identity *models.Identity) {
	if identity == nil {
		return
	}

	fmt.Printf("%s %s\n", labelStyle.Render("Email:"), identity.Email)
	fmt.Printf("%s %s\n", labelStyle.Render("Role:"), identity.Role)
	if identity.ExpiresAt != nil {
		fmt.Printf("%s %s\n", labelStyle.Render("Expires:"), formatDuration(time.Until(*identity.ExpiresAt)))
	}
	if identity.HasRole() {
		fmt.Printf("%s %s%s\n", labelStyle.Render("Dashboard:"), cfg.GetLocalServerUrl(), identity.Role.DashboardPath())
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "expired"
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 24 {
		days := hours / 24
		hours = hours % 24
		if days == 1 {
			return fmt.Sprintf("%d day, %d hours", days, hours)
		}
		return fmt.Sprintf("%d days, %d hours", days, hours)
	}

	if hours > 0 {
		if hours == 1 {
			return fmt.Sprintf("%d hour, %d minutes", hours, minutes)
		}
		return fmt.Sprintf("%d hours, %d minutes", hours, minutes)
	}

	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

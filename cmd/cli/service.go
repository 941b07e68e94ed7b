package cli

import (
	"fmt"
	"os"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"github.com/visarisk/agent/internal/agent"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Service management commands",
	Long:  `Manage the Visarisk agent as a system service`,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the agent as a system service",
	Long:  `Install the Visarisk agent as a service that starts automatically on login`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := agent.CreateService(cfg)
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}

		if err := s.Install(); err != nil {
			printInstallInstructions()
			return fmt.Errorf("failed to install service: %w", err)
		}

		fmt.Println(successStyle.Render("Visarisk agent service installed"))
		fmt.Println("   Use 'visarisk service start' to start the service")
		return nil
	},
}

// serviceAction runs one kardianos control action such as start or stop.
func serviceAction(action string, done string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("%s the agent service", action),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := agent.CreateService(cfg)
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}

			if err := service.Control(s, action); err != nil {
				return fmt.Errorf("failed to %s service: %w", action, err)
			}

			fmt.Println(successStyle.Render("Visarisk agent service " + done))
			return nil
		},
	}
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the agent service status",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := agent.CreateService(cfg)
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}

		status, err := s.Status()
		if err != nil && status != service.StatusUnknown {
			return fmt.Errorf("failed to get service status: %w", err)
		}

		var statusText string
		switch status {
		case service.StatusRunning:
			statusText = successStyle.Render("Running")
		case service.StatusStopped:
			statusText = warningStyle.Render("Stopped")
		default:
			statusText = "Not installed"
		}

		fmt.Printf("Visarisk agent service: %s\n", statusText)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Uninstall the agent service",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := agent.CreateService(cfg)
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}

		// Don't fail if service is already stopped
		if err := s.Stop(); err != nil {
			fmt.Println("Service was not running")
		}

		if err := s.Uninstall(); err != nil {
			return fmt.Errorf("failed to uninstall service: %w", err)
		}

		fmt.Println(successStyle.Render("Visarisk agent service uninstalled"))
		return nil
	},
}

func printInstallInstructions() {
	exePath, _ := os.Executable()
	fmt.Println("\nService installation failed. You may need to run with elevated privileges:")
	fmt.Println("\nLinux / macOS:")
	fmt.Printf("   sudo %s service install\n", exePath)
	fmt.Println("\nWindows:")
	fmt.Printf("   Run as Administrator: %s service install\n", exePath)
}

func init() {
	rootCmd.AddCommand(serviceCmd)

	serviceCmd.AddCommand(installCmd)
	serviceCmd.AddCommand(serviceAction("start", "started"))
	serviceCmd.AddCommand(serviceAction("stop", "stopped"))
	serviceCmd.AddCommand(serviceAction("restart", "restarted"))
	serviceCmd.AddCommand(serviceStatusCmd)
	serviceCmd.AddCommand(removeCmd)
}

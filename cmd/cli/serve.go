package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/visarisk/agent/internal/agent"
	"github.com/visarisk/agent/internal/common"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local web application",
	Long: `Restore the saved session and serve the Visarisk dashboard in the
foreground until interrupted.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	sigChan, cleanup := common.NewInterruptChannel()
	defer cleanup()

	running, err := agent.StartWebService(cfg)
	if err != nil {
		return fmt.Errorf("agent failed to start: %w", err)
	}

	state := running.Controller.State()

	fmt.Println(titleStyle.Render("Visarisk Agent"))
	fmt.Printf("Dashboard: %s\n", infoStyle.Render(cfg.GetLocalServerUrl()))
	fmt.Printf("Backend:   %s\n", cfg.GetLoginServerUrl())
	fmt.Printf("Session:   %s\n", renderState(state))
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")

	sig := <-sigChan
	fmt.Printf("\nReceived signal %v, shutting down gracefully...\n", sig)
	running.Stop()
	fmt.Println("Agent stopped")

	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

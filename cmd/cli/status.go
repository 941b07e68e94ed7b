package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/visarisk/agent/internal/agent"
	"github.com/visarisk/agent/internal/models"
)

const watchInterval = time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved session",
	Long: `Show the session kept on this device. With --watch the view follows
sign ins and sign outs made by other agent processes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, state, err := openSession(cmd)
		if err != nil {
			return err
		}

		watch, _ := cmd.Flags().GetBool("watch")
		if !watch {
			modified, _ := session.Store.Modified()
			fmt.Println(renderSummary(state, modified))
			return nil
		}

		program := tea.NewProgram(newStatusModel(cmd.Context(), session, state))
		_, err = program.Run()
		return err
	},
}

type statusModel struct {
	ctx      context.Context
	session  *agent.Session
	state    models.SessionState
	modified time.Time
	checking bool
	spinner  spinner.Model
	err      error
}

type storeCheckedMsg struct {
	state    models.SessionState
	modified time.Time
	err      error
}

type pollMsg struct{}

func newStatusModel(ctx context.Context, session *agent.Session, state models.SessionState) statusModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#3b82f6"))

	modified, _ := session.Store.Modified()

	return statusModel{
		ctx:      ctx,
		session:  session,
		state:    state,
		modified: modified,
		spinner:  s,
	}
}

func (m statusModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, poll())
}

func poll() tea.Cmd {
	return tea.Tick(watchInterval, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

// checkStore restores again only when the record changed on disk.
func (m statusModel) checkStore() tea.Msg {
	modified, err := m.session.Store.Modified()
	if err != nil {
		return storeCheckedMsg{state: m.state, modified: m.modified, err: err}
	}

	if modified.Equal(m.modified) {
		return storeCheckedMsg{state: m.state, modified: modified}
	}

	return storeCheckedMsg{
		state:    m.session.Restore(m.ctx),
		modified: modified,
	}
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pollMsg:
		m.checking = true
		return m, m.checkStore

	case storeCheckedMsg:
		m.checking = false
		m.state = msg.state
		m.modified = msg.modified
		m.err = msg.err
		return m, poll()
	}

	return m, nil
}

func (m statusModel) View() string {
	var b strings.Builder

	b.WriteString(renderSummary(m.state, m.modified))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Failed to read the session store: " + m.err.Error()))
		b.WriteString("\n")
	}

	activity := "Watching for changes"
	if m.checking {
		activity = "Checking the session store"
	}
	b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), activity))
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280")).Render("Press q to quit"))
	b.WriteString("\n")

	return b.String()
}

func renderSummary(state models.SessionState, modified time.Time) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Visarisk session"))
	b.WriteString("\n")

	row := func(label, value string) {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(label), value))
	}

	row("State:", renderState(state))
	row("Backend:", cfg.GetLoginServerUrl())

	if identity := state.Identity; identity != nil {
		if len(identity.Email) > 0 {
			row("Email:", identity.Email)
		}
		if identity.HasRole() {
			row("Role:", identity.Role.String())
			row("Dashboard:", cfg.GetLocalServerUrl()+identity.Role.DashboardPath())
		}
		if identity.ExpiresAt != nil {
			row("Expires:", formatDuration(time.Until(*identity.ExpiresAt)))
		}
	}

	if cfg.Sessions.Ephemeral {
		row("Store:", "memory")
	} else {
		row("Store:", cfg.Sessions.Path)
	}

	if !modified.IsZero() {
		row("Saved:", modified.Local().Format(time.RFC1123))
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolP("watch", "w", false, "Keep watching the session store for changes")
}

package cmd

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/marcus/branger/internal/models"
	"github.com/marcus/branger/internal/output"
	"github.com/marcus/branger/internal/replay"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of the list, updated from the realtime change stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.probeOnce()
		if a.Engine.Online() {
			if err := a.Engine.Refresh(); err != nil {
				output.Warning("could not refresh from server: %v", err)
			}
		}

		m := newWatchModel(a)
		p := tea.NewProgram(m, tea.WithAltScreen())

		// The engine pushes change and sync notifications into the
		// running program; bubbletea serializes them into Update.
		a.Engine.SetOnChange(func() { p.Send(itemsChangedMsg{}) })
		a.Engine.SetOnSyncResult(func(res replay.Result) { p.Send(syncFinishedMsg{res: res}) })

		if err := a.Engine.Watch(); err != nil {
			output.Warning("realtime unavailable: %v", err)
		}
		defer a.Engine.Unwatch()

		a.Monitor.Start()
		defer a.Monitor.Stop()

		_, err = p.Run()
		return err
	},
}

// itemsChangedMsg signals local state changed and the view should re-read.
type itemsChangedMsg struct{}

// syncFinishedMsg carries a replay outcome for the banner.
type syncFinishedMsg struct{ res replay.Result }

var (
	watchTitleStyle   = lipgloss.NewStyle().Bold(true)
	watchOnlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	watchOfflineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	watchHelpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type watchModel struct {
	app    *app
	spin   spinner.Model
	items  []models.ListItem
	banner string
}

func newWatchModel(a *app) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return watchModel{
		app:   a,
		spin:  s,
		items: a.Engine.Items(),
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.spin.Tick
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case itemsChangedMsg:
		m.items = m.app.Engine.Items()
		return m, nil
	case syncFinishedMsg:
		if msg.res.Failed > 0 {
			m.banner = fmt.Sprintf("%d change(s) could not be synced", msg.res.Failed)
		} else if msg.res.Succeeded > 0 {
			m.banner = fmt.Sprintf("synced %d change(s)", msg.res.Succeeded)
		}
		m.items = m.app.Engine.Items()
		return m, nil
	default:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	header := watchTitleStyle.Render("branger") + "  "
	if m.app.Engine.Online() {
		header += watchOnlineStyle.Render("online")
	} else {
		header += watchOfflineStyle.Render(m.spin.View() + " offline")
	}
	if n := m.app.Engine.Pending(); n > 0 {
		header += watchHelpStyle.Render(fmt.Sprintf("  %d pending", n))
	}

	body := output.RenderItems(m.items)

	view := header + "\n\n" + body + "\n"
	if m.banner != "" {
		view += "\n" + watchOfflineStyle.Render(m.banner) + "\n"
	}
	view += "\n" + watchHelpStyle.Render("q to quit")
	return view
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

package tui

import (
	"time"

	"evmconnect/pkg/models"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap = models.Snapshot(msg)
		m.balanceHistory = recordBalance(m.balanceHistory, m.snap.Balance)
		m.lastUpdate = time.Now()
		cmds = append(cmds, listenForStore(m.sub))

	case storeClosedMsg:
		return m, tea.Quit

	case connectResultMsg:
		if status := connectStatus(msg.err); status != "" {
			m.statusMessage = status
			cmds = append(cmds, clearStatusAfter(2*time.Second))
		}

	case clearStatusMsg:
		m.statusMessage = ""

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll

		case key.Matches(msg, keys.Connect):
			if canConnect(m.snap) {
				// Optimistic until the store catches up.
				m.snap.Connecting = true
				cmds = append(cmds, connectCmd(m.ctrl))
			}

		case key.Matches(msg, keys.Dismiss):
			if m.snap.Error {
				cmds = append(cmds, dismissCmd(m.ctrl))
			}

		case key.Matches(msg, keys.Copy):
			if acc := m.snap.Account(); acc != "" {
				if err := clipboard.WriteAll(acc); err != nil {
					m.statusMessage = "Failed to copy to clipboard"
				} else if m.privacyMode {
					m.statusMessage = "Full address copied (Privacy Mode active)!"
				} else {
					m.statusMessage = "Address copied to clipboard!"
				}
				cmds = append(cmds, clearStatusAfter(2*time.Second))
			}

		case key.Matches(msg, keys.Graph):
			m.showGraph = !m.showGraph

		case key.Matches(msg, keys.Privacy):
			m.privacyMode = !m.privacyMode
		}
	}

	return m, tea.Batch(cmds...)
}

package tui

import (
	"fmt"
	"strings"

	"evmconnect/pkg/models"
	"evmconnect/pkg/utils"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

func (m model) View() string {
	if m.showGraph {
		return m.viewGraph()
	}

	header := titleStyle.Render(fmt.Sprintf("EVM Connect %s", Version))
	lines := []string{header, "", m.viewProvider()}

	switch m.snap.Phase() {
	case models.PhaseConnected:
		lines = append(lines, "", m.viewWallet())
	case models.PhaseConnecting:
		lines = append(lines, "", fmt.Sprintf("%s Waiting for wallet approval...", m.spinner.View()))
	case models.PhaseIdle:
		lines = append(lines, "", m.viewConnectButton())
		if m.snap.ChainID != "" {
			lines = append(lines, subtleStyle.Render(fmt.Sprintf("Chain %s", m.chainLabel())))
		}
	}

	if m.snap.Error {
		lines = append(lines, "", errStyle.Render("Error: "+m.snap.ErrorMessage), subtleStyle.Render("press x to dismiss"))
	}
	if m.statusMessage != "" {
		lines = append(lines, "", infoStyle.Render(m.statusMessage))
	}

	if m.configPath != "" {
		lines = append(lines, "", subtleStyle.Render("Config: "+m.configPath))
	}

	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	footer := m.help.View(keys)

	if m.width == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, content, footer)
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer))
}

func (m model) viewProvider() string {
	switch m.snap.Phase() {
	case models.PhaseUninitialized, models.PhaseDetecting:
		return fmt.Sprintf("%s Looking for an injected provider...", m.spinner.View())
	case models.PhaseNoProvider:
		return warnStyle.Render("Injected Provider DOES NOT Exist")
	default:
		return infoStyle.Render("Injected Provider DOES Exist")
	}
}

func (m model) viewConnectButton() string {
	if canConnect(m.snap) {
		return buttonStyle.Render("Connect MetaMask") + subtleStyle.Render("  (c)")
	}
	return disabledButtonStyle.Render("Connect MetaMask")
}

func (m model) chainLabel() string {
	if dec := utils.ChainIDToDecimal(m.snap.ChainID); dec != "" {
		return fmt.Sprintf("%s (%s)", m.snap.ChainID, dec)
	}
	return m.snap.ChainID
}

func (m model) viewWallet() string {
	rows := []string{
		labelStyle.Render("Account") + m.maskAddress(m.snap.Account()),
		labelStyle.Render("Balance") + m.maskString(m.snap.Balance),
		labelStyle.Render("Chain ID") + m.chainLabel(),
	}
	if m.snap.LastTxHash != "" {
		rows = append(rows, labelStyle.Render("Last Tx")+utils.TruncateString(m.snap.LastTxHash, 24))
	}
	return strings.Join(rows, "\n")
}

func (m model) viewGraph() string {
	header := titleStyle.Render("Balance History")
	var graph string
	if len(m.balanceHistory) > 1 {
		width := m.width - 10
		if width < 10 {
			width = 10
		}
		height := m.height - 12
		if height < 5 {
			height = 5
		}
		graph = asciigraph.Plot(m.balanceHistory,
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption(fmt.Sprintf("Balance of %s", utils.ShortAddress(m.snap.Account()))),
		)
	} else {
		graph = "Not enough data to draw graph."
	}

	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, header, "\n", graph))
	footer := subtleStyle.Render("g: back • q: quit")

	if m.width == 0 {
		return lipgloss.JoinVertical(lipgloss.Center, content, footer)
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer))
}

func (m model) maskString(s string) string {
	if m.privacyMode {
		return "****"
	}
	return s
}

func (m model) maskAddress(addr string) string {
	if m.privacyMode {
		return "0x**...**"
	}
	return addr
}

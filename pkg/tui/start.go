package tui

import (
	"fmt"

	"evmconnect/pkg/store"

	tea "github.com/charmbracelet/bubbletea"
)

// Start runs the TUI until the user quits or the store is disposed.
func Start(ctrl Connector, st *store.Store, configPath, version string) error {
	Version = version
	sub := st.Subscribe()
	defer st.Unsubscribe(sub)

	p := tea.NewProgram(
		initialModel(ctrl, sub, configPath),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

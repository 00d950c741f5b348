package tui

import (
	"context"
	"errors"

	"evmconnect/pkg/controller"
	"evmconnect/pkg/models"
	"evmconnect/pkg/store"
	"evmconnect/pkg/utils"

	tea "github.com/charmbracelet/bubbletea"
)

const maxBalanceHistory = 120

// canConnect reports whether the connect affordance is offered.
func canConnect(s models.Snapshot) bool {
	return s.Provider == models.ProviderPresent && len(s.Accounts) == 0 && !s.Connecting
}

// recordBalance appends the balance to the history when it changed. An
// empty balance (disconnected) clears it.
func recordBalance(history []float64, balance string) []float64 {
	if balance == "" {
		return nil
	}
	v, ok := utils.ParseDecimal(balance)
	if !ok {
		return history
	}
	if n := len(history); n > 0 && history[n-1] == v {
		return history
	}
	history = append(history, v)
	if len(history) > maxBalanceHistory {
		history = history[len(history)-maxBalanceHistory:]
	}
	return history
}

func connectStatus(err error) string {
	switch {
	case err == nil:
		return "Wallet connected"
	case errors.Is(err, controller.ErrConnectInProgress):
		return "Connect already in progress"
	default:
		return ""
	}
}

func listenForStore(sub store.Subscriber) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-sub
		if !ok {
			return storeClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func connectCmd(ctrl Connector) tea.Cmd {
	return func() tea.Msg {
		return connectResultMsg{err: ctrl.Connect(context.Background())}
	}
}

func dismissCmd(ctrl Connector) tea.Cmd {
	return func() tea.Msg {
		ctrl.DismissError()
		return nil
	}
}

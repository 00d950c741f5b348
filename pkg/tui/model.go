package tui

import (
	"context"
	"time"

	"evmconnect/pkg/models"
	"evmconnect/pkg/store"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

// Connector is the part of the controller the TUI drives.
type Connector interface {
	Connect(ctx context.Context) error
	DismissError()
}

// --- Messages ---

type clearStatusMsg struct{}
type snapshotMsg models.Snapshot
type storeClosedMsg struct{}
type connectResultMsg struct{ err error }

// --- Model ---

type model struct {
	ctrl           Connector
	sub            store.Subscriber
	snap           models.Snapshot
	width          int
	height         int
	spinner        spinner.Model
	help           help.Model
	statusMessage  string
	showGraph      bool
	privacyMode    bool
	balanceHistory []float64
	lastUpdate     time.Time
	configPath     string
}

func initialModel(ctrl Connector, sub store.Subscriber, configPath string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		ctrl:       ctrl,
		sub:        sub,
		spinner:    s,
		help:       help.New(),
		configPath: configPath,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(listenForStore(m.sub), m.spinner.Tick)
}

package models

// ProviderStatus is the tri-state result of provider detection.
type ProviderStatus int

const (
	ProviderUnknown ProviderStatus = iota
	ProviderPresent
	ProviderAbsent
)

func (s ProviderStatus) String() string {
	switch s {
	case ProviderPresent:
		return "present"
	case ProviderAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// Phase is the connection state machine position derived from a Snapshot.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseDetecting     Phase = "detecting"
	PhaseNoProvider    Phase = "no_provider"
	PhaseIdle          Phase = "idle"
	PhaseConnecting    Phase = "connecting"
	PhaseConnected     Phase = "connected"
)

// WalletState mirrors the provider's view of the wallet.
// Accounts empty means disconnected; only Accounts[0] is used downstream.
type WalletState struct {
	Accounts []string `json:"accounts"`
	Balance  string   `json:"balance"`
	ChainID  string   `json:"chainId"`
}

// Flags holds ephemeral UI/control state.
type Flags struct {
	Provider     ProviderStatus `json:"-"`
	Detecting    bool           `json:"detecting"`
	Connecting   bool           `json:"isConnecting"`
	Error        bool           `json:"error"`
	ErrorMessage string         `json:"errorMessage"`
	LastTxHash   string         `json:"lastTxHash,omitempty"`
}

// Snapshot is a consistent, immutable copy of the store contents.
type Snapshot struct {
	WalletState
	Flags
	Version uint64 `json:"version"`
}

// HasProvider reports detection as a nullable bool, matching the tri-state
// flag exposed to presentation layers.
func (s Snapshot) HasProvider() *bool {
	switch s.Provider {
	case ProviderPresent:
		v := true
		return &v
	case ProviderAbsent:
		v := false
		return &v
	}
	return nil
}

// Account returns the active account or "".
func (s Snapshot) Account() string {
	if len(s.Accounts) == 0 {
		return ""
	}
	return s.Accounts[0]
}

// Phase derives the controller phase from the snapshot.
func (s Snapshot) Phase() Phase {
	switch {
	case s.Provider == ProviderAbsent:
		return PhaseNoProvider
	case s.Provider == ProviderUnknown && s.Detecting:
		return PhaseDetecting
	case s.Provider == ProviderUnknown:
		return PhaseUninitialized
	case s.Connecting:
		return PhaseConnecting
	case len(s.Accounts) > 0:
		return PhaseConnected
	default:
		return PhaseIdle
	}
}

// EventKind names a provider push event.
type EventKind string

const (
	EventAccountsChanged EventKind = "accountsChanged"
	EventChainChanged    EventKind = "chainChanged"
)

// ProviderEvent is a narrowed provider push event. Accounts is set for
// accountsChanged, ChainID for chainChanged.
type ProviderEvent struct {
	Kind     EventKind
	Accounts []string
	ChainID  string
}

// TxParams is the eth_sendTransaction transaction object. Quantities are hex.
type TxParams struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Gas      string `json:"gas,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
	Value    string `json:"value,omitempty"`
	Data     string `json:"data,omitempty"`
}

// CheckReport holds the results of a provider check.
type CheckReport struct {
	ConfigPath     string   `json:"config_path"`
	ProviderURL    string   `json:"provider_url"`
	ProviderFound  bool     `json:"provider_found"`
	Accounts       []string `json:"accounts,omitempty"`
	ChainID        string   `json:"chain_id,omitempty"`
	ChainIDDecimal string   `json:"chain_id_decimal,omitempty"`
	PushEvents     bool     `json:"push_events"`
	Errors         []string `json:"errors,omitempty"`
}

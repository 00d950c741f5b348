package controller

import (
	"context"
	"math/big"
	"sync"

	"evmconnect/pkg/models"
	"evmconnect/pkg/provider"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock

	hmu      sync.Mutex
	nextID   provider.ListenerID
	handlers map[models.EventKind]map[provider.ListenerID]provider.Handler
	subs     map[models.EventKind]int
	unsubs   map[models.EventKind]int
}

func newMockGateway() *MockGateway {
	return &MockGateway{
		handlers: make(map[models.EventKind]map[provider.ListenerID]provider.Handler),
		subs:     make(map[models.EventKind]int),
		unsubs:   make(map[models.EventKind]int),
	}
}

func (m *MockGateway) Detect(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockGateway) Accounts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGateway) RequestAccounts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGateway) Balance(ctx context.Context, address string) (*big.Int, error) {
	args := m.Called(ctx, address)
	b, _ := args.Get(0).(*big.Int)
	return b, args.Error(1)
}

func (m *MockGateway) ChainID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) SendTransaction(ctx context.Context, tx models.TxParams) (common.Hash, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockGateway) Subscribe(kind models.EventKind, h provider.Handler) provider.ListenerID {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	m.nextID++
	if m.handlers[kind] == nil {
		m.handlers[kind] = make(map[provider.ListenerID]provider.Handler)
	}
	m.handlers[kind][m.nextID] = h
	m.subs[kind]++
	return m.nextID
}

func (m *MockGateway) Unsubscribe(kind models.EventKind, id provider.ListenerID) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	if _, ok := m.handlers[kind][id]; ok {
		delete(m.handlers[kind], id)
		m.unsubs[kind]++
	}
}

// emit delivers an event to the registered handlers on the caller's
// goroutine, as the real gateway's pump does.
func (m *MockGateway) emit(ev models.ProviderEvent) {
	m.hmu.Lock()
	hs := make([]provider.Handler, 0, len(m.handlers[ev.Kind]))
	for _, h := range m.handlers[ev.Kind] {
		hs = append(hs, h)
	}
	m.hmu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

func (m *MockGateway) accountsChanged(accounts ...string) {
	if accounts == nil {
		accounts = []string{}
	}
	m.emit(models.ProviderEvent{Kind: models.EventAccountsChanged, Accounts: accounts})
}

func (m *MockGateway) chainChanged(id string) {
	m.emit(models.ProviderEvent{Kind: models.EventChainChanged, ChainID: id})
}

func (m *MockGateway) counts(kind models.EventKind) (subs, unsubs int) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	return m.subs[kind], m.unsubs[kind]
}

func (m *MockGateway) listening(kind models.EventKind) int {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	return len(m.handlers[kind])
}

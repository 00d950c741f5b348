package provider

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"evmconnect/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

const (
	addrA = "0x5145def5C916E5910EB965dF98B6C6e6B4767bD3"
	addrB = "0x19f64674D8a5b4e652319F5e239EFd3bc969a1FE"
)

type rejectError struct{}

func (rejectError) Error() string  { return "User rejected the request." }
func (rejectError) ErrorCode() int { return CodeUserRejected }

type feed struct {
	notifier *rpc.Notifier
	sub      *rpc.Subscription
}

// fakeWallet is served under the "eth" namespace and behaves like an
// injected wallet: eth_accounts is empty until eth_requestAccounts approves.
type fakeWallet struct {
	mu         sync.Mutex
	accounts   []string
	authorized bool
	reject     bool
	chainID    string
	balance    string
	txHash     common.Hash
	sent       []models.TxParams

	accountFeeds []feed
	chainFeeds   []feed
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		accounts: []string{addrA},
		chainID:  "0x1f",
		balance:  "0x22b1c8c1227a0000", // 2.5 ether
		txHash:   common.HexToHash("0xabc1"),
	}
}

func (w *fakeWallet) Accounts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.authorized {
		return []string{}
	}
	return w.accounts
}

func (w *fakeWallet) RequestAccounts() ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reject {
		return nil, rejectError{}
	}
	w.authorized = true
	return w.accounts, nil
}

func (w *fakeWallet) GetBalance(addr common.Address, block string) (string, error) {
	if block != "latest" {
		return "", errors.New("unexpected block tag")
	}
	return w.balance, nil
}

func (w *fakeWallet) ChainId() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainID
}

func (w *fakeWallet) SendTransaction(tx models.TxParams) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, tx)
	return w.txHash, nil
}

func (w *fakeWallet) AccountsChanged(ctx context.Context) (*rpc.Subscription, error) {
	return w.subscribe(ctx, &w.accountFeeds)
}

func (w *fakeWallet) ChainChanged(ctx context.Context) (*rpc.Subscription, error) {
	return w.subscribe(ctx, &w.chainFeeds)
}

func (w *fakeWallet) subscribe(ctx context.Context, feeds *[]feed) (*rpc.Subscription, error) {
	n, ok := rpc.NotifierFromContext(ctx)
	if !ok {
		return nil, rpc.ErrNotificationsUnsupported
	}
	sub := n.CreateSubscription()
	w.mu.Lock()
	*feeds = append(*feeds, feed{notifier: n, sub: sub})
	w.mu.Unlock()
	return sub, nil
}

func (w *fakeWallet) setAccounts(accounts []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accounts = accounts
}

func (w *fakeWallet) setChainID(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chainID = id
}

func (w *fakeWallet) notifyAccounts(payload any) {
	w.mu.Lock()
	feeds := append([]feed{}, w.accountFeeds...)
	w.mu.Unlock()
	for _, f := range feeds {
		_ = f.notifier.Notify(f.sub.ID, payload)
	}
}

func (w *fakeWallet) notifyChain(payload any) {
	w.mu.Lock()
	feeds := append([]feed{}, w.chainFeeds...)
	w.mu.Unlock()
	for _, f := range feeds {
		_ = f.notifier.Notify(f.sub.ID, payload)
	}
}

func (w *fakeWallet) sentTxs() []models.TxParams {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.TxParams{}, w.sent...)
}

func newRPCServer(t *testing.T, w *fakeWallet) *rpc.Server {
	t.Helper()
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", w))
	t.Cleanup(srv.Stop)
	return srv
}

// inProcGateway wires a gateway to the fake wallet over an in-process
// connection, which supports subscriptions.
func inProcGateway(t *testing.T, w *fakeWallet) *RPCGateway {
	t.Helper()
	srv := newRPCServer(t, w)
	g := NewRPCGateway(Options{
		URL:          "inproc",
		PollInterval: 20 * time.Millisecond,
		Dial: func(ctx context.Context, url string) (*rpc.Client, error) {
			return rpc.DialInProc(srv), nil
		},
	})
	t.Cleanup(g.Close)
	return g
}

// httpGateway serves the fake wallet over HTTP, which cannot push events.
func httpGateway(t *testing.T, w *fakeWallet) *RPCGateway {
	t.Helper()
	srv := newRPCServer(t, w)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	g := NewRPCGateway(Options{URL: hs.URL, PollInterval: 20 * time.Millisecond})
	t.Cleanup(g.Close)
	return g
}

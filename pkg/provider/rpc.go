package provider

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"time"

	"evmconnect/pkg/models"
	"evmconnect/pkg/utils"
	"evmconnect/pkg/watcher"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

var DefaultPollInterval = 4 * time.Second

// DialFunc opens a JSON-RPC client for a provider URL.
type DialFunc func(ctx context.Context, url string) (*rpc.Client, error)

type Options struct {
	URL           string
	PollInterval  time.Duration
	DetectTimeout time.Duration
	Logger        *zap.Logger
	Dial          DialFunc
}

type listener struct {
	id ListenerID
	h  Handler
}

// RPCGateway implements Gateway over a go-ethereum rpc.Client. Push events
// arrive through eth_subscribe when the transport supports notifications and
// through a polling watcher otherwise.
type RPCGateway struct {
	opts   Options
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	client    *rpc.Client
	listeners map[models.EventKind][]listener
	nextID    ListenerID
	subs      []*rpc.ClientSubscription
	poller    *watcher.Watcher
	push      bool
	closed    bool
}

func NewRPCGateway(opts Options) *RPCGateway {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Dial == nil {
		opts.Dial = rpc.DialContext
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RPCGateway{
		opts:      opts,
		logger:    opts.Logger.With(zap.String("component", "provider"), zap.String("url", opts.URL)),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[models.EventKind][]listener),
	}
}

// Detect dials the provider and probes it with eth_chainId, which never
// prompts. On success it also starts the event sources.
func (g *RPCGateway) Detect(ctx context.Context) bool {
	g.mu.Lock()
	closed, present := g.closed, g.client != nil
	g.mu.Unlock()
	if closed || present {
		return present
	}
	if g.opts.DetectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.DetectTimeout)
		defer cancel()
	}

	client, err := g.opts.Dial(ctx, g.opts.URL)
	if err != nil {
		g.logger.Info("provider not reachable", zap.Error(err))
		return false
	}
	var raw json.RawMessage
	if err := client.CallContext(ctx, &raw, "eth_chainId"); err != nil {
		client.Close()
		g.logger.Info("provider probe failed", zap.Error(err))
		return false
	}
	chainID, err := parseChainID("eth_chainId", raw)
	if err != nil {
		client.Close()
		g.logger.Warn("provider probe returned malformed chain id", zap.Error(err))
		return false
	}

	g.mu.Lock()
	if g.closed || g.client != nil {
		present := g.client != nil
		g.mu.Unlock()
		client.Close()
		return present
	}
	g.client = client
	g.mu.Unlock()

	g.startEvents(chainID)
	return true
}

func (g *RPCGateway) startEvents(chainID string) {
	accCh := make(chan json.RawMessage, 16)
	chainCh := make(chan json.RawMessage, 16)

	accSub, err := g.client.EthSubscribe(g.ctx, accCh, string(models.EventAccountsChanged))
	if err == nil {
		var chainSub *rpc.ClientSubscription
		chainSub, err = g.client.EthSubscribe(g.ctx, chainCh, string(models.EventChainChanged))
		if err == nil {
			g.mu.Lock()
			g.subs = append(g.subs, accSub, chainSub)
			g.push = true
			g.mu.Unlock()

			g.wg.Add(2)
			go g.pump(models.EventAccountsChanged, accSub, accCh)
			go g.pump(models.EventChainChanged, chainSub, chainCh)
			g.logger.Info("provider events via subscription")
			return
		}
		accSub.Unsubscribe()
	}

	if errors.Is(err, rpc.ErrNotificationsUnsupported) {
		g.logger.Info("transport cannot push events, polling", zap.Duration("interval", g.opts.PollInterval))
	} else {
		g.logger.Warn("event subscription refused, polling", zap.Error(err))
	}
	g.startPolling(nil, chainID)
}

func (g *RPCGateway) startPolling(accounts []string, chainID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.poller != nil {
		return
	}
	g.push = false
	g.poller = watcher.NewWatcher(g, g.opts.PollInterval, g.dispatch, g.logger)
	g.poller.Seed(accounts, chainID)
	g.poller.Start(g.ctx)
}

func (g *RPCGateway) pump(kind models.EventKind, sub *rpc.ClientSubscription, ch <-chan json.RawMessage) {
	defer g.wg.Done()
	for {
		select {
		case raw := <-ch:
			ev, err := parseEvent(kind, raw)
			if err != nil {
				g.logger.Warn("dropping provider event", zap.String("event", string(kind)), zap.Error(err))
				continue
			}
			g.dispatch(ev)
		case err := <-sub.Err():
			if err != nil && g.ctx.Err() == nil {
				g.logger.Warn("event subscription ended, polling", zap.String("event", string(kind)), zap.Error(err))
				go g.startPolling(nil, "")
			}
			return
		case <-g.ctx.Done():
			return
		}
	}
}

func (g *RPCGateway) dispatch(ev models.ProviderEvent) {
	g.mu.Lock()
	hs := make([]Handler, 0, len(g.listeners[ev.Kind]))
	for _, l := range g.listeners[ev.Kind] {
		hs = append(hs, l.h)
	}
	g.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}

func (g *RPCGateway) Subscribe(kind models.EventKind, h Handler) ListenerID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	g.listeners[kind] = append(g.listeners[kind], listener{id: g.nextID, h: h})
	return g.nextID
}

func (g *RPCGateway) Unsubscribe(kind models.EventKind, id ListenerID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ls := g.listeners[kind]
	for i, l := range ls {
		if l.id == id {
			g.listeners[kind] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

// PushEvents reports whether events arrive by subscription rather than polling.
func (g *RPCGateway) PushEvents() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.push
}

func (g *RPCGateway) rpcClient() *rpc.Client {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.client
}

func (g *RPCGateway) call(ctx context.Context, result any, method string, args ...any) error {
	c := g.rpcClient()
	if c == nil {
		return absent(method)
	}
	return classify(method, c.CallContext(ctx, result, method, args...))
}

func (g *RPCGateway) Accounts(ctx context.Context) ([]string, error) {
	var raw json.RawMessage
	if err := g.call(ctx, &raw, "eth_accounts"); err != nil {
		return nil, err
	}
	return parseAccounts("eth_accounts", raw)
}

func (g *RPCGateway) RequestAccounts(ctx context.Context) ([]string, error) {
	var raw json.RawMessage
	if err := g.call(ctx, &raw, "eth_requestAccounts"); err != nil {
		return nil, err
	}
	return parseAccounts("eth_requestAccounts", raw)
}

func (g *RPCGateway) Balance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, malformed("eth_getBalance", "invalid address %q", address)
	}
	var raw string
	if err := g.call(ctx, &raw, "eth_getBalance", address, "latest"); err != nil {
		return nil, err
	}
	bal, ok := utils.ParseHexQuantity(raw)
	if !ok {
		return nil, malformed("eth_getBalance", "invalid quantity %q", raw)
	}
	return bal, nil
}

func (g *RPCGateway) ChainID(ctx context.Context) (string, error) {
	var raw json.RawMessage
	if err := g.call(ctx, &raw, "eth_chainId"); err != nil {
		return "", err
	}
	return parseChainID("eth_chainId", raw)
}

func (g *RPCGateway) SendTransaction(ctx context.Context, tx models.TxParams) (common.Hash, error) {
	if !common.IsHexAddress(tx.From) {
		return common.Hash{}, malformed("eth_sendTransaction", "invalid from %q", tx.From)
	}
	if !common.IsHexAddress(tx.To) {
		return common.Hash{}, malformed("eth_sendTransaction", "invalid to %q", tx.To)
	}
	var raw string
	if err := g.call(ctx, &raw, "eth_sendTransaction", tx); err != nil {
		return common.Hash{}, err
	}
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, malformed("eth_sendTransaction", "invalid transaction hash %q", raw)
	}
	return common.BytesToHash(b), nil
}

// Close stops event delivery and closes the connection. Safe to call twice.
func (g *RPCGateway) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	subs := g.subs
	poller := g.poller
	client := g.client
	g.subs = nil
	g.client = nil
	g.mu.Unlock()

	g.cancel()
	for _, s := range subs {
		s.Unsubscribe()
	}
	if poller != nil {
		poller.Stop()
	}
	g.wg.Wait()
	if client != nil {
		client.Close()
	}
}

// Package controller implements the connection state machine. Every store
// write and every control decision runs on a single loop goroutine; provider
// calls run off-loop and post their results back through it.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"evmconnect/pkg/models"
	"evmconnect/pkg/provider"
	"evmconnect/pkg/store"
	"evmconnect/pkg/utils"

	"go.uber.org/zap"
)

var (
	// ErrConnectInProgress is returned by Connect while another attempt is in flight.
	ErrConnectInProgress = errors.New("connect already in progress")

	// ErrStopped is returned once Stop has been called.
	ErrStopped = errors.New("controller stopped")

	// errSuperseded marks a refresh dropped in favour of a newer one.
	errSuperseded = errors.New("refresh superseded by a newer wallet event")
)

// TxBuilder produces the transaction submitted after a successful connect.
type TxBuilder interface {
	Build(from string) (models.TxParams, error)
}

// token marks a reconciliation. Its result is applied only if no newer
// reconciliation was claimed in the meantime.
type token struct {
	gen      uint64
	chainGen uint64
}

type Controller struct {
	gw       provider.Gateway
	store    *store.Store
	builder  TxBuilder
	logger   *zap.Logger
	decimals int

	ops     chan func()
	quit    chan struct{}
	done    chan struct{}
	mounted chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	// loop-owned
	stopped    bool
	present    bool
	connecting bool
	gen        uint64
	chainGen   uint64
	listeners  map[models.EventKind]provider.ListenerID
}

// New creates a controller and starts its loop. A nil builder disables the
// post-connect transfer. Stop must be called to release the loop.
func New(gw provider.Gateway, st *store.Store, builder TxBuilder, logger *zap.Logger, balanceDecimals int) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		gw:        gw,
		store:     st,
		builder:   builder,
		logger:    logger.With(zap.String("component", "controller")),
		decimals:  balanceDecimals,
		ops:       make(chan func()),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		mounted:   make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[models.EventKind]provider.ListenerID),
	}
	go c.loop()
	return c
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case f := <-c.ops:
			f()
		case <-c.quit:
			return
		}
	}
}

// call runs f on the loop and waits for it. It reports false if the
// controller was stopped before f could run.
func (c *Controller) call(f func()) bool {
	ran := false
	fin := make(chan struct{})
	op := func() {
		defer close(fin)
		if c.stopped {
			return
		}
		ran = true
		f()
	}
	select {
	case c.ops <- op:
	case <-c.quit:
		return false
	}
	<-fin
	return ran
}

// Store returns the store the controller writes to.
func (c *Controller) Store() *store.Store {
	return c.store
}

// Snapshot returns the current store snapshot.
func (c *Controller) Snapshot() models.Snapshot {
	return c.store.Snapshot()
}

// Mounted is closed once the initial detection and account query finished.
func (c *Controller) Mounted() <-chan struct{} {
	return c.mounted
}

// Start mounts the controller in the background: detection, listener
// registration and the initial silent account query. Only the first call
// has an effect.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer close(c.mounted)
			c.mount(ctx)
		}()
	})
}

func (c *Controller) mount(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer context.AfterFunc(c.ctx, cancel)()

	if !c.call(func() { c.store.SetDetecting(true) }) {
		return
	}

	present := c.gw.Detect(ctx)
	if !present {
		c.call(func() { c.store.SetProviderStatus(models.ProviderAbsent) })
		c.logger.Info("No wallet provider detected")
		return
	}

	// Listeners go in before the account query so no change is missed;
	// generations order whatever arrives in between.
	var tok token
	if !c.call(func() {
		c.present = true
		c.store.SetProviderStatus(models.ProviderPresent)
		c.listeners[models.EventAccountsChanged] = c.gw.Subscribe(models.EventAccountsChanged, c.onAccountsChanged)
		c.listeners[models.EventChainChanged] = c.gw.Subscribe(models.EventChainChanged, c.onChainChanged)
		tok = c.claim()
	}) {
		return
	}
	c.logger.Info("Wallet provider detected")

	accounts, err := c.gw.Accounts(ctx)
	if err != nil {
		c.logger.Warn("Initial account query failed", zap.Error(err))
		return
	}
	if len(accounts) == 0 {
		c.logger.Debug("No authorized accounts")
		return
	}
	if err := c.reconcile(ctx, tok, accounts); err != nil && !quiet(err) {
		c.logger.Warn("Initial wallet refresh failed", zap.Error(err))
	}
}

// claim starts a new reconciliation generation. Loop only.
func (c *Controller) claim() token {
	c.gen++
	return token{gen: c.gen, chainGen: c.chainGen}
}

// reconcile fetches balance and chain id for accounts[0] and applies all
// three values in one store write. If a newer generation superseded it,
// nothing is written and errSuperseded is returned. A chainChanged seen
// after the claim wins over the fetched chain id.
func (c *Controller) reconcile(ctx context.Context, tok token, accounts []string) error {
	wei, err := c.gw.Balance(ctx, accounts[0])
	if err != nil {
		return err
	}
	chainID, err := c.gw.ChainID(ctx)
	if err != nil {
		return err
	}
	balance := utils.FormatBalance(wei, c.decimals)

	superseded := false
	if !c.call(func() {
		if tok.gen != c.gen {
			superseded = true
			c.logger.Debug("Dropping stale refresh", zap.Uint64("generation", tok.gen), zap.Uint64("current", c.gen))
			return
		}
		if tok.chainGen != c.chainGen {
			chainID = c.store.Snapshot().ChainID
		}
		c.store.ApplyAccounts(accounts, balance, chainID)
		c.logger.Debug("Applied wallet state",
			zap.String("account", accounts[0]),
			zap.String("balance", balance),
			zap.String("chainId", chainID))
	}) {
		return ErrStopped
	}
	if superseded {
		return errSuperseded
	}
	return nil
}

// current reports whether tok is still the newest generation.
func (c *Controller) current(tok token) (bool, error) {
	ok := false
	if !c.call(func() { ok = tok.gen == c.gen }) {
		return false, ErrStopped
	}
	return ok, nil
}

// quiet reports errors that need no log line of their own.
func quiet(err error) bool {
	return errors.Is(err, ErrStopped) || errors.Is(err, errSuperseded)
}

func (c *Controller) onAccountsChanged(ev models.ProviderEvent) {
	accounts := ev.Accounts
	var tok token
	if !c.call(func() {
		tok = c.claim()
		if len(accounts) == 0 {
			c.store.Reset()
			return
		}
		c.wg.Add(1)
	}) {
		return
	}
	if len(accounts) == 0 {
		c.logger.Info("Wallet disconnected")
		return
	}

	go func() {
		defer c.wg.Done()
		if err := c.reconcile(c.ctx, tok, accounts); err != nil && !quiet(err) {
			c.logger.Warn("Account refresh failed",
				zap.String("account", accounts[0]),
				zap.Error(err))
		}
	}()
}

func (c *Controller) onChainChanged(ev models.ProviderEvent) {
	c.call(func() {
		c.chainGen++
		c.store.ApplyChainID(ev.ChainID)
	})
	c.logger.Debug("Chain changed", zap.String("chainId", ev.ChainID))
}

// Connect requests account access, refreshes the wallet view and then
// submits the configured transfer from the connected account. Failures are
// recorded in the store's error flag and also returned. A second call while
// one is in flight returns ErrConnectInProgress without touching the store.
func (c *Controller) Connect(ctx context.Context) error {
	var guard error
	if !c.call(func() {
		switch {
		case !c.present:
			guard = provider.ErrProviderAbsent
		case c.connecting:
			guard = ErrConnectInProgress
		default:
			c.connecting = true
			c.store.BeginConnect()
		}
	}) {
		return ErrStopped
	}
	if guard != nil {
		return guard
	}
	c.logger.Info("Connect requested")

	err := c.connect(ctx)
	msg := ""
	if err != nil {
		msg = err.Error()
		c.logger.Warn("Connect failed", zap.Error(err))
	}
	c.call(func() {
		c.connecting = false
		c.store.FinishConnect(msg)
	})
	return err
}

func (c *Controller) connect(ctx context.Context) error {
	accounts, err := c.gw.RequestAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return &provider.Error{
			Kind:    provider.KindProviderError,
			Method:  "eth_requestAccounts",
			Message: "provider returned no accounts",
		}
	}

	var tok token
	if !c.call(func() { tok = c.claim() }) {
		return ErrStopped
	}
	if err := c.reconcile(ctx, tok, accounts); err != nil {
		if errors.Is(err, errSuperseded) {
			return stateChanged()
		}
		return err
	}
	c.logger.Info("Wallet connected", zap.String("account", accounts[0]))

	if c.builder == nil {
		return nil
	}
	tx, err := c.builder.Build(accounts[0])
	if err != nil {
		return fmt.Errorf("build transfer: %w", err)
	}
	// The transfer only goes out against the state this attempt applied.
	ok, err := c.current(tok)
	if err != nil {
		return err
	}
	if !ok {
		return stateChanged()
	}
	hash, err := c.gw.SendTransaction(ctx, tx)
	if err != nil {
		return err
	}
	c.logger.Info("Transfer submitted", zap.String("hash", hash.Hex()))
	c.call(func() { c.store.SetLastTxHash(hash.Hex()) })
	return nil
}

func stateChanged() error {
	return &provider.Error{
		Kind:    provider.KindProviderError,
		Message: "wallet state changed during connect",
		Err:     errSuperseded,
	}
}

// DismissError clears the error flag and message.
func (c *Controller) DismissError() {
	c.call(func() { c.store.SetError(false, "") })
}

// Stop removes the provider listeners and shuts the loop down. Results of
// provider calls still outstanding are dropped. Safe to call more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.call(func() {
			for kind, id := range c.listeners {
				c.gw.Unsubscribe(kind, id)
				delete(c.listeners, kind)
			}
			c.stopped = true
		})
		close(c.quit)
		<-c.done
		c.cancel()
		c.wg.Wait()
	})
}

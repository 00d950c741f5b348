package watcher

import (
	"context"
	"slices"
	"sync"
	"time"

	"evmconnect/pkg/models"

	"go.uber.org/zap"
)

// DataSource defines the prompt-free queries the watcher polls.
type DataSource interface {
	Accounts(ctx context.Context) ([]string, error)
	ChainID(ctx context.Context) (string, error)
}

// Watcher polls a DataSource and emits accountsChanged / chainChanged events
// whenever the observed value differs from the previous poll. It stands in
// for push notifications on transports that cannot deliver them.
type Watcher struct {
	source   DataSource
	interval time.Duration
	emit     func(models.ProviderEvent)
	logger   *zap.Logger

	mu           sync.Mutex
	lastAccounts []string
	lastChainID  string
	seenAccounts bool
	seenChain    bool

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewWatcher creates a new Watcher instance.
func NewWatcher(source DataSource, interval time.Duration, emit func(models.ProviderEvent), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		source:   source,
		interval: interval,
		emit:     emit,
		logger:   logger.With(zap.String("component", "watcher")),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the polling loop.
func (w *Watcher) Start(ctx context.Context) {
	go w.pollingLoop(ctx)
}

// Stop ends the polling loop and waits for it to exit. Safe to call twice.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.done
}

func (w *Watcher) pollingLoop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.poll(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Seed records values already known to the caller so the first poll only
// emits real changes.
func (w *Watcher) Seed(accounts []string, chainID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if accounts != nil {
		w.lastAccounts = slices.Clone(accounts)
		w.seenAccounts = true
	}
	if chainID != "" {
		w.lastChainID = chainID
		w.seenChain = true
	}
}

func (w *Watcher) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	var events []models.ProviderEvent

	accounts, err := w.source.Accounts(pollCtx)
	if err != nil {
		w.logger.Debug("poll accounts failed", zap.Error(err))
	} else {
		w.mu.Lock()
		if !w.seenAccounts || !slices.Equal(accounts, w.lastAccounts) {
			w.lastAccounts = slices.Clone(accounts)
			w.seenAccounts = true
			events = append(events, models.ProviderEvent{Kind: models.EventAccountsChanged, Accounts: slices.Clone(accounts)})
		}
		w.mu.Unlock()
	}

	chainID, err := w.source.ChainID(pollCtx)
	if err != nil {
		w.logger.Debug("poll chain id failed", zap.Error(err))
	} else {
		w.mu.Lock()
		if !w.seenChain || chainID != w.lastChainID {
			w.lastChainID = chainID
			w.seenChain = true
			events = append(events, models.ProviderEvent{Kind: models.EventChainChanged, ChainID: chainID})
		}
		w.mu.Unlock()
	}

	for _, ev := range events {
		w.emit(ev)
	}
}

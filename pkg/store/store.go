// Package store holds the synchronized wallet view and the UI flags. Every
// mutation replaces the affected fields in one step under the lock, so readers
// and subscribers only ever see complete snapshots.
package store

import (
	"sync"

	"evmconnect/pkg/models"
)

// Subscriber receives snapshots. It holds at most one pending snapshot: an
// undelivered older one is replaced by the newer one.
type Subscriber chan models.Snapshot

// Store is the single authoritative holder of WalletState and Flags.
type Store struct {
	mu          sync.RWMutex
	state       models.WalletState
	flags       models.Flags
	version     uint64
	subscribers []Subscriber
	disposed    bool
}

func New() *Store {
	return &Store{state: emptyState()}
}

func emptyState() models.WalletState {
	return models.WalletState{Accounts: []string{}}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() models.Snapshot {
	st := s.state
	st.Accounts = append([]string{}, s.state.Accounts...)
	return models.Snapshot{WalletState: st, Flags: s.flags, Version: s.version}
}

// Reset returns the wallet view to the disconnected form. The last
// transfer hash belongs to the old account and goes with it.
func (s *Store) Reset() {
	s.update(func() bool {
		s.state = emptyState()
		s.flags.LastTxHash = ""
		return true
	})
}

// ApplyAccounts replaces accounts, balance and chain id together.
func (s *Store) ApplyAccounts(accounts []string, balance, chainID string) {
	s.update(func() bool {
		s.state = models.WalletState{
			Accounts: append([]string{}, accounts...),
			Balance:  balance,
			ChainID:  chainID,
		}
		return true
	})
}

// ApplyChainID updates the chain id alone.
func (s *Store) ApplyChainID(chainID string) {
	s.update(func() bool {
		if s.state.ChainID == chainID {
			return false
		}
		s.state.ChainID = chainID
		return true
	})
}

func (s *Store) SetProviderStatus(status models.ProviderStatus) {
	s.update(func() bool {
		if s.flags.Provider == status && !s.flags.Detecting {
			return false
		}
		s.flags.Provider = status
		s.flags.Detecting = false
		return true
	})
}

func (s *Store) SetDetecting(v bool) {
	s.update(func() bool {
		if s.flags.Detecting == v {
			return false
		}
		s.flags.Detecting = v
		return true
	})
}

func (s *Store) SetConnecting(v bool) {
	s.update(func() bool {
		if s.flags.Connecting == v {
			return false
		}
		s.flags.Connecting = v
		return true
	})
}

// SetError sets or clears the error flag. Clearing also clears the message.
func (s *Store) SetError(v bool, message string) {
	s.update(func() bool {
		if !v {
			message = ""
		}
		if s.flags.Error == v && s.flags.ErrorMessage == message {
			return false
		}
		s.flags.Error = v
		s.flags.ErrorMessage = message
		return true
	})
}

// BeginConnect marks a connect attempt in flight and clears any prior error.
func (s *Store) BeginConnect() {
	s.update(func() bool {
		s.flags.Connecting = true
		s.flags.Error = false
		s.flags.ErrorMessage = ""
		return true
	})
}

// FinishConnect ends a connect attempt, recording its failure message if any.
func (s *Store) FinishConnect(failure string) {
	s.update(func() bool {
		s.flags.Connecting = false
		s.flags.Error = failure != ""
		s.flags.ErrorMessage = failure
		return true
	})
}

func (s *Store) SetLastTxHash(hash string) {
	s.update(func() bool {
		s.flags.LastTxHash = hash
		return true
	})
}

// update applies fn under the write lock and, if fn reports a change, bumps
// the version and fans the new snapshot out. Writes after Dispose are dropped.
func (s *Store) update(fn func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	if !fn() {
		return
	}
	s.version++
	snap := s.snapshotLocked()
	for _, sub := range s.subscribers {
		offer(sub, snap)
	}
}

func offer(sub Subscriber, snap models.Snapshot) {
	select {
	case sub <- snap:
		return
	default:
	}
	// Full: drop the stale pending snapshot, then retry once.
	select {
	case <-sub:
	default:
	}
	select {
	case sub <- snap:
	default:
	}
}

// Subscribe returns a channel primed with the current snapshot.
func (s *Store) Subscribe() Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(Subscriber, 1)
	if s.disposed {
		close(ch)
		return ch
	}
	ch <- s.snapshotLocked()
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a subscriber. Unknown subscribers are ignored.
func (s *Store) Unsubscribe(ch Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Dispose closes all subscribers and freezes the store. Safe to call twice.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true
	for _, sub := range s.subscribers {
		close(sub)
	}
	s.subscribers = nil
}

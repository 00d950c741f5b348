// Package provider isolates all interaction with the wallet provider behind
// the Gateway contract. Payloads are narrowed to typed values here; anything
// malformed surfaces as a ProviderError instead of travelling inward.
package provider

import (
	"context"
	"math/big"

	"evmconnect/pkg/models"

	"github.com/ethereum/go-ethereum/common"
)

// ListenerID identifies a registered event handler.
type ListenerID uint64

// Handler receives narrowed provider events. It is called from the gateway's
// event goroutine and must not block for long.
type Handler func(models.ProviderEvent)

// Gateway is the narrow contract over an EIP-1193 style wallet provider.
// Query and request calls may block for as long as the user leaves a prompt
// open; callers bound them only through ctx.
type Gateway interface {
	// Detect probes for a provider without prompting. It reports presence.
	Detect(ctx context.Context) bool
	// Accounts returns the authorized accounts without prompting.
	Accounts(ctx context.Context) ([]string, error)
	// RequestAccounts prompts for access if needed.
	RequestAccounts(ctx context.Context) ([]string, error)
	Balance(ctx context.Context, address string) (*big.Int, error)
	ChainID(ctx context.Context) (string, error)
	SendTransaction(ctx context.Context, tx models.TxParams) (common.Hash, error)
	Subscribe(kind models.EventKind, h Handler) ListenerID
	// Unsubscribe is a no-op for unknown ids.
	Unsubscribe(kind models.EventKind, id ListenerID)
}

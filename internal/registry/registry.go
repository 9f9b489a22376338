package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"

	"go.uber.org/zap"
)

// Handler reacts to a credit settling on an account of a given kind. The
// registry dispatches by AccountKind rather than the ledger adapter doing
// kind-specific logic itself, per the tagged-variant redesign in SPEC_FULL.
type Handler func(ctx context.Context, ref models.AccountRef, totalReceived models.Money) error

// Registry owns liquidity-account creation and the kind-keyed onCredit
// dispatch table. Grounded on the teacher's store.LedgerStore param structs
// (one shape per purpose, e.g. CreateDepositParams vs CreateWithdrawalParams)
// generalized into one dispatch map keyed by AccountKind.
type Registry struct {
	ledger store.LedgerAdapter

	mu       sync.RWMutex
	handlers map[models.AccountKind]Handler
}

func New(ledger store.LedgerAdapter) *Registry {
	r := &Registry{ledger: ledger, handlers: make(map[models.AccountKind]Handler)}
	ledger.SetOnCredit(r.dispatch)
	return r
}

// On registers the handler invoked whenever a credit settles on an account
// of the given kind. Call once per kind during service wiring.
func (r *Registry) On(kind models.AccountKind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

func (r *Registry) dispatch(ctx context.Context, ref models.AccountRef, totalReceived models.Money) error {
	r.mu.RLock()
	h, ok := r.handlers[ref.Kind]
	r.mu.RUnlock()
	if !ok {
		zap.L().Debug("onCredit: no handler registered for account kind", zap.String("kind", string(ref.Kind)))
		return nil
	}
	return h(ctx, ref, totalReceived)
}

// Ensure creates the liquidity account for ref if it doesn't already exist,
// treating AccountAlreadyExists as success (spec.md §4.1).
func (r *Registry) Ensure(ctx context.Context, ref models.AccountRef) error {
	if err := r.ledger.CreateLiquidityAccount(ctx, ref); err != nil {
		if store.KindOf(err) == store.ErrAccountAlreadyExists {
			return nil
		}
		return fmt.Errorf("ensuring liquidity account %s/%s: %w", ref.Kind, ref.ID, err)
	}
	return nil
}

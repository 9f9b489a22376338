package store

import (
	"context"
	"time"

	"github.com/ilpengine/engine/internal/models"
)

// CreateDepositParams posts a transfer from the asset's settlement pool into
// account. Idempotent on ID.
type CreateDepositParams struct {
	ID      string
	Account models.AccountRef
	Amount  models.Money
}

// CreateWithdrawalParams posts a two-phase transfer out of Account. If
// Timeout is non-zero the transfer is pending until PostWithdrawal or
// VoidWithdrawal, or it auto-voids after Timeout elapses.
type CreateWithdrawalParams struct {
	ID      string
	Account models.AccountRef
	Amount  models.Money
	Timeout time.Duration
}

// CreateTransferParams is a two-phase cross-account transfer with
// cross-currency support, used by the packet pipeline's balance middleware.
type CreateTransferParams struct {
	ID                 string
	SourceAccount      models.AccountRef
	DestinationAccount models.AccountRef
	SourceAmount       models.Money
	DestinationAmount  *models.Money
	Timeout            time.Duration
}

// PendingTransfer is the pair of post/void closures returned by
// CreateTransfer and CreateWithdrawal.
type PendingTransfer struct {
	ID   string
	Post func(ctx context.Context) error
	Void func(ctx context.Context) error
}

// OnCreditFunc is invoked by the ledger adapter when a credit settles on a
// registered account; the caller dispatches by account kind via the
// registry (internal/registry), not by a ledger-side switch.
type OnCreditFunc func(ctx context.Context, ref models.AccountRef, totalReceived models.Money) error

// LedgerAdapter wraps an external double-entry ledger (spec.md §4.1).
type LedgerAdapter interface {
	// Ping is a cheap liveness check for internal/health.
	Ping(ctx context.Context) error

	CreateLiquidityAccount(ctx context.Context, ref models.AccountRef) error
	CreateDeposit(ctx context.Context, p CreateDepositParams) error
	CreateWithdrawal(ctx context.Context, p CreateWithdrawalParams) (*PendingTransfer, error)
	PostWithdrawal(ctx context.Context, id string) error
	VoidWithdrawal(ctx context.Context, id string) error
	CreateTransfer(ctx context.Context, p CreateTransferParams) (*PendingTransfer, error)

	GetBalance(ctx context.Context, ref models.AccountRef) (models.Money, error)
	GetTotalSent(ctx context.Context, ref models.AccountRef) (models.Money, error)
	GetTotalReceived(ctx context.Context, ref models.AccountRef) (models.Money, error)

	// SetOnCredit registers the hook invoked whenever a credit settles on
	// any account; dispatch to the right domain handler is the registry's
	// job (internal/registry), not the adapter's.
	SetOnCredit(fn OnCreditFunc)

	Close()
}

// DomainStore is the relational side-store (§3's tables) -- assets, peers,
// wallet addresses, incoming/outgoing payments, quotes, grants, webhook
// events, and idempotency records. All state-machine transitions and
// idempotency-key reservations are gated by row locks here, never in the
// ledger (spec.md §5 "shared resource policy").
type DomainStore interface {
	// Ping is a cheap liveness check for internal/health.
	Ping(ctx context.Context) error

	// --- Idempotency (spec.md §4.6) ---
	// ReserveIdempotencyKey records (operation, key) atomically; ok=false
	// means a prior result already exists and is returned instead.
	ReserveIdempotencyKey(ctx context.Context, operation, key string) (ok bool, priorResult []byte, err error)
	StoreIdempotencyResult(ctx context.Context, operation, key string, result []byte) error

	// --- Assets ---
	CreateAsset(ctx context.Context, a *models.Asset) error
	GetAsset(ctx context.Context, id string) (*models.Asset, error)
	UpdateAssetWithdrawalThreshold(ctx context.Context, id string, threshold *string) error
	SetAssetFee(ctx context.Context, assetID string, sending bool, fee *models.Fee) error

	// --- Peers ---
	CreatePeer(ctx context.Context, p *models.Peer) error
	GetPeer(ctx context.Context, id string) (*models.Peer, error)
	FindPeerByAddressPrefix(ctx context.Context, destination string) (*models.Peer, error)
	FindPeerByIncomingToken(ctx context.Context, token string) (*models.Peer, error)
	DeletePeer(ctx context.Context, id string) error
	UpdatePeer(ctx context.Context, p *models.Peer) error

	// --- Wallet addresses ---
	CreateWalletAddress(ctx context.Context, w *models.WalletAddress) error
	GetWalletAddress(ctx context.Context, id string) (*models.WalletAddress, error)
	FindWalletAddressByURL(ctx context.Context, url string) (*models.WalletAddress, error)
	UpdateWalletAddress(ctx context.Context, w *models.WalletAddress) error
	ClaimWalletAddressesDue(ctx context.Context, now time.Time, limit int) ([]*models.WalletAddress, error)
	AdvanceWalletAddressEvents(ctx context.Context, id string, newTotalEventsAmount string, nextProcessAt *time.Time) error

	// --- Incoming payments ---
	CreateIncomingPayment(ctx context.Context, p *models.IncomingPayment) error
	GetIncomingPayment(ctx context.Context, id string) (*models.IncomingPayment, error)
	UpdateIncomingPayment(ctx context.Context, p *models.IncomingPayment, event *models.WebhookEvent) error
	ClaimExpiredIncomingPayments(ctx context.Context, now time.Time, limit int) ([]*models.IncomingPayment, error)

	// --- Quotes ---
	CreateQuote(ctx context.Context, q *models.Quote) error
	GetQuote(ctx context.Context, id string) (*models.Quote, error)

	// --- Outgoing payments ---
	CreateOutgoingPayment(ctx context.Context, p *models.OutgoingPayment, event *models.WebhookEvent) error
	GetOutgoingPayment(ctx context.Context, id string) (*models.OutgoingPayment, error)
	UpdateOutgoingPayment(ctx context.Context, p *models.OutgoingPayment, event *models.WebhookEvent) error
	ClaimNextOutgoingPayment(ctx context.Context, now time.Time) (*models.OutgoingPayment, error)
	SumGrantContribution(ctx context.Context, grantID string, interval string, debitLimited bool) (string, error)

	// --- Grants ---
	LockOutgoingPaymentGrant(ctx context.Context, id string) (func(), error)

	// --- Webhook events ---
	GetWebhookEvent(ctx context.Context, id string) (*models.WebhookEvent, error)
	ClaimWebhookEventsDue(ctx context.Context, now time.Time, limit int) ([]*models.WebhookEvent, error)
	UpdateWebhookEvent(ctx context.Context, e *models.WebhookEvent) error
	EnqueueWebhookEvent(ctx context.Context, e *models.WebhookEvent) error
	ListPendingWebhookEvents(ctx context.Context, limit int) ([]*models.WebhookEvent, error)
	ListDeadWebhookEvents(ctx context.Context, limit int) ([]*models.WebhookEvent, error)

	Close()
}

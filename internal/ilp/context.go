package ilp

import (
	"time"

	"github.com/ilpengine/engine/internal/models"
)

// Endpoint identifies the resolved party on one side of a packet — either a
// peer (remote) or a local domain object (incoming payment / wallet
// address / reserved local-access account).
type Endpoint struct {
	Peer            *models.Peer
	IncomingPayment *models.IncomingPayment
	WalletAddress   *models.WalletAddress
	Account         models.AccountRef
}

func (e *Endpoint) IsLocal() bool {
	return e != nil && e.Peer == nil
}

// Accounts holds the pipeline's resolved incoming/outgoing endpoints for
// one packet (spec.md §4.2 stage 3, "account middleware").
type Accounts struct {
	Incoming *Endpoint
	Outgoing *Endpoint
}

// PendingTransfer mirrors store.PendingTransfer without importing the store
// package, keeping ilp free of a dependency on the ledger contract; the
// pipeline stage that owns the two-phase transfer stores the closures here
// directly.
type PendingTransfer struct {
	ID   string
	Post func() error
	Void func() error
}

// PacketContext is the mutable state threaded through every pipeline
// stage, per spec.md §9's "static array of stage functions over an
// explicit mutable PacketContext" redesign (replacing dynamic middleware
// dispatch).
type PacketContext struct {
	Prepare *Prepare

	StreamDestination *string // incoming-payment id extracted by stage 2, if any

	Accounts Accounts

	DestinationAmount int64 // packet.Amount converted into the outgoing asset, set by stage 8

	// MinExchangeRate is the quote's locked-in rate for a locally-originated
	// pay-step packet (set by Pipeline.Send from outgoing.StreamPay), used by
	// stage 8 to convert Prepare.Amount into DestinationAmount when the
	// source and destination assets differ. Empty for peer-originated
	// packets, where cross-asset conversion is out of scope.
	MinExchangeRate string

	Transfer *PendingTransfer

	ExpiresAt time.Time // clamped by stage 11

	Result Result
}

// Result is the sum-type each stage returns in place of throwing, per
// spec.md §9's "exception-driven control flow" redesign note.
type Result struct {
	Fulfill *Fulfill
	Reject  *Reject
}

func Proceed() Result          { return Result{} }
func FulfillWith(f *Fulfill) Result { return Result{Fulfill: f} }
func RejectWith(r *Reject) Result   { return Result{Reject: r} }

func (r Result) Done() bool { return r.Fulfill != nil || r.Reject != nil }

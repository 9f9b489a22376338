package models

import "time"

// AccountKind tags which domain object a liquidity account belongs to, per
// the registry redesign in SPEC_FULL (tagged variant + kind-keyed onCredit
// hook) replacing duck-typed polymorphism over a single LiquidityAccount type.
type AccountKind string

const (
	AccountKindAsset            AccountKind = "asset"
	AccountKindPeer             AccountKind = "peer"
	AccountKindIncomingPayment  AccountKind = "incoming"
	AccountKindOutgoingPayment  AccountKind = "outgoing"
	AccountKindWebMonetization AccountKind = "web-monetization"
)

// AccountRef is the tagged variant shared by every liquidity-account-backed
// domain entity: {kind, id, assetId}.
type AccountRef struct {
	Kind    AccountKind
	ID      string
	AssetID string
}

// Asset identifies a currency. Owns a ledger liquidity account created on insert.
type Asset struct {
	ID                  string
	Code                string
	Scale               int
	WithdrawalThreshold *DecimalString
	SendingFee          *Fee
	ReceivingFee        *Fee
	CreatedAt           time.Time
}

// Fee is fixedFee + basisPointFee, applied as fixedFee + ceil(amount*bp/10000).
type Fee struct {
	FixedFee     int64
	BasisPoints  int64
}

// DecimalString keeps Asset immutable-by-value-copy friendly without pulling
// decimal.Decimal into every shallow struct copy; callers parse on demand.
type DecimalString string

// Peer is a counterparty on the ILP network. Owns a ledger account.
type Peer struct {
	ID                 string
	AssetID            string
	StaticIlpAddress   string
	MaxPacketAmount    *int64
	OutgoingToken      string // bearer token presented to the peer
	IncomingToken      string // bearer token expected from the peer
	LiquidityThreshold *int64
	CreatedAt          time.Time
}

// WalletAddress is a user-facing account identifier.
type WalletAddress struct {
	ID                string
	URL               string
	AssetID           string
	PublicName        string
	TotalEventsAmount string // decimal string, monotonic accumulator
	ProcessAt         *time.Time
	DeactivatedAt     *time.Time
	CreatedAt         time.Time
}

func (w WalletAddress) IsActive(now time.Time) bool {
	return w.DeactivatedAt == nil || w.DeactivatedAt.After(now)
}

// IncomingPaymentState is the incoming-payment lifecycle state.
type IncomingPaymentState string

const (
	IncomingPaymentPending    IncomingPaymentState = "PENDING"
	IncomingPaymentProcessing IncomingPaymentState = "PROCESSING"
	IncomingPaymentCompleted  IncomingPaymentState = "COMPLETED"
	IncomingPaymentExpired    IncomingPaymentState = "EXPIRED"
)

func (s IncomingPaymentState) Terminal() bool {
	return s == IncomingPaymentCompleted || s == IncomingPaymentExpired
}

// IncomingPayment is pending until first credit, completed when
// receivedAmount >= incomingAmount or explicit completion, expired at
// expiresAt if not completed.
type IncomingPayment struct {
	ID              string
	WalletAddressID string
	AssetID         string
	IncomingAmount  *string // decimal string; nil means open-ended
	ReceivedAmount  string  // decimal string
	State           IncomingPaymentState
	ExpiresAt       time.Time
	ConnectionID    *string
	Metadata        map[string]string
	ProcessAt       *time.Time
	CreatedAt       time.Time
}

// Quote is immutable, single-use as input to an outgoing payment.
type Quote struct {
	ID                      string
	WalletAddressID         string
	AssetID                 string
	Receiver                string
	DebitAmount             string
	ReceiveAmount           string
	MaxPacketAmount         int64
	MinExchangeRate         string
	LowEstimatedExchangeRate  string
	HighEstimatedExchangeRate string
	ReceiveAssetCode        string // destination asset, for grant-limit currency matching (§4.3 Creation)
	ReceiveAssetScale       int
	FeeID                   *string
	ExpiresAt               time.Time
	Client                  *string
	CreatedAt               time.Time
}

// OutgoingPaymentState is the outgoing-payment lifecycle state.
type OutgoingPaymentState string

const (
	OutgoingPaymentFunding   OutgoingPaymentState = "FUNDING"
	OutgoingPaymentSending   OutgoingPaymentState = "SENDING"
	OutgoingPaymentCompleted OutgoingPaymentState = "COMPLETED"
	OutgoingPaymentFailed    OutgoingPaymentState = "FAILED"
)

// OutgoingPayment's id equals its quote's id (1:1, enforced by a unique key
// on outgoingPayments.quoteId rather than a cyclic object reference, per the
// redesign note in SPEC_FULL/spec.md §9).
type OutgoingPayment struct {
	ID              string
	WalletAddressID string
	QuoteID         string
	State           OutgoingPaymentState
	SentAmount      string
	StateAttempts   int
	Error           *string
	PeerID          *string
	GrantID         *string
	Metadata        map[string]string
	ProcessAt       *time.Time
	CreatedAt       time.Time
}

// OutgoingPaymentGrant is a row serving as a lock token and accounting
// anchor for a single authorization grant across concurrent payment creations.
type OutgoingPaymentGrant struct {
	ID string
}

// GrantLimits per outgoing-payment grant.
type GrantLimits struct {
	Receiver      *string
	DebitAmount   *Money
	ReceiveAmount *Money
	Interval      *string // ISO 8601 repeating interval, e.g. R0/2026-01-01T00:00:00Z/P1M
}

// WebhookEventType enumerates the event types §4.7 emits.
type WebhookEventType string

const (
	EventIncomingPaymentCreated   WebhookEventType = "incoming_payment.created"
	EventIncomingPaymentExpired   WebhookEventType = "incoming_payment.expired"
	EventIncomingPaymentCompleted WebhookEventType = "incoming_payment.completed"
	EventOutgoingPaymentCreated   WebhookEventType = "outgoing_payment.created"
	EventOutgoingPaymentCompleted WebhookEventType = "outgoing_payment.completed"
	EventOutgoingPaymentFailed    WebhookEventType = "outgoing_payment.failed"
	EventWalletAddressWebMonetization WebhookEventType = "wallet_address.web_monetization"
	EventWalletAddressNotFound   WebhookEventType = "wallet_address.not_found"
)

// WebhookWithdrawal is the optional withdrawal payload carried by an event.
type WebhookWithdrawal struct {
	AccountID string
	AssetID   string
	Amount    string
}

// WebhookEvent is written in the same DB transaction as the state change it
// reports; append-only, garbage-collected after successful delivery.
type WebhookEvent struct {
	ID         string
	Type       WebhookEventType
	Data       map[string]any
	ProcessAt  *time.Time
	Attempts   int
	Withdrawal *WebhookWithdrawal
	StatusCode *int
	// Dead marks an event that exhausted WebhookMaxAttempts; it is kept
	// around (not garbage-collected like a delivered event) so /debug/webhooks
	// and the admin API can surface it for manual inspection.
	Dead      bool
	CreatedAt time.Time
}

package store

import (
	"errors"
	"fmt"
)

// ErrKind is the error taxonomy of spec.md §7, carried as a tag rather than
// as distinct Go types so admin response envelopes can map it 1:1 to the
// {code, error} contract in §6, the way the teacher maps SQLite/Formance SDK
// errors onto a small set of sentinel errors (store.ErrDuplicateTransaction,
// store.ErrUserNotFound, store.ErrConcurrentModification).
type ErrKind string

const (
	// Input
	ErrInvalidID       ErrKind = "InvalidId"
	ErrInvalidAmount   ErrKind = "InvalidAmount"
	ErrInvalidReceiver ErrKind = "InvalidReceiver"
	ErrInvalidQuote    ErrKind = "InvalidQuote"

	// Not found
	ErrUnknownAsset         ErrKind = "UnknownAsset"
	ErrUnknownPeer          ErrKind = "UnknownPeer"
	ErrUnknownWalletAddress ErrKind = "UnknownWalletAddress"
	ErrUnknownQuote         ErrKind = "UnknownQuote"
	ErrUnknownPayment       ErrKind = "UnknownPayment"
	ErrUnknownTransfer      ErrKind = "UnknownTransfer"

	// State
	ErrInactiveWalletAddress ErrKind = "InactiveWalletAddress"
	ErrWrongState            ErrKind = "WrongState"
	ErrAlreadyPosted         ErrKind = "AlreadyPosted"
	ErrAlreadyVoided         ErrKind = "AlreadyVoided"
	ErrTransferExists        ErrKind = "TransferExists"

	// Resource
	ErrInsufficientBalance ErrKind = "InsufficientBalance"
	ErrInsufficientGrant   ErrKind = "InsufficientGrant"

	// Lifecycle
	ErrSourceAssetConflict      ErrKind = "SourceAssetConflict"
	ErrDestinationAssetConflict ErrKind = "DestinationAssetConflict"
	ErrReceiverProtocolViolation ErrKind = "ReceiverProtocolViolation"
	ErrRateProbeFailed          ErrKind = "RateProbeFailed"
	ErrIdleTimeout              ErrKind = "IdleTimeout"
	ErrClosedByReceiver         ErrKind = "ClosedByReceiver"
	ErrEstablishmentFailed      ErrKind = "EstablishmentFailed"
	ErrConnectorError           ErrKind = "ConnectorError"
	ErrInsufficientExchangeRate ErrKind = "InsufficientExchangeRate"
	ErrIncompatibleReceiveMax   ErrKind = "IncompatibleReceiveMax"
	ErrInvalidGeneratedSequence ErrKind = "InvalidGeneratedSequence"

	// ILP
	ErrUnreachable          ErrKind = "UnreachableError"
	ErrAmountTooLarge       ErrKind = "AmountTooLarge"
	ErrWrongCondition       ErrKind = "WrongCondition"
	ErrTransferTimedOut     ErrKind = "TransferTimedOut"
	ErrInsufficientLiquidity ErrKind = "InsufficientLiquidity"
	ErrRateLimitExceeded    ErrKind = "RateLimitExceeded"
	ErrUnexpectedPayment    ErrKind = "UnexpectedPayment"

	// Ledger-adapter specific (spec.md §4.1/§4.6)
	ErrAccountAlreadyExists ErrKind = "AccountAlreadyExists"
	ErrAmountZero           ErrKind = "AmountZero"
	ErrInvalidAccount       ErrKind = "InvalidAccount"
)

// retryable holds the lifecycle error kinds the pay step's backoff honors
// (spec.md §4.3, §7); everything else is fatal.
var retryable = map[ErrKind]bool{
	ErrClosedByReceiver:         true,
	ErrIdleTimeout:              true,
	ErrEstablishmentFailed:      true,
	ErrInsufficientExchangeRate: true,
	ErrRateProbeFailed:          true,
	ErrConnectorError:           true,
}

func (k ErrKind) Retryable() bool { return retryable[k] }

// Error wraps an ErrKind with a human-readable message and, optionally, the
// underlying cause -- the engine's analog to the teacher's wrapped SQLite/
// Formance errors, generalized to a single taxonomy shared by every backend.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error
}

func NewError(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind ErrKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindOf extracts the ErrKind from err, or "" if err is not (or does not
// wrap) a *Error.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPCode maps an ErrKind to the admin API's {code} contract (spec.md §6).
func HTTPCode(kind ErrKind) string {
	switch kind {
	case ErrInvalidID, ErrInvalidAmount, ErrInvalidReceiver, ErrInvalidQuote:
		return "400"
	case ErrUnknownAsset, ErrUnknownPeer, ErrUnknownWalletAddress, ErrUnknownQuote,
		ErrUnknownPayment, ErrUnknownTransfer:
		return "404"
	case ErrInactiveWalletAddress, ErrWrongState, ErrAlreadyPosted, ErrAlreadyVoided,
		ErrTransferExists, ErrInsufficientBalance, ErrInsufficientGrant:
		return "409"
	default:
		return "500"
	}
}

// Sentinel errors shared across all backend implementations, kept alongside
// ErrKind for equality checks against plain (non-tagged) failures raised by
// the relational store driver.
var (
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrNoRowsClaimed          = errors.New("no claimable row")
)

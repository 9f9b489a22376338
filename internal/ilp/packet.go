// Package ilp defines the wire types for Interledger Protocol v4
// prepare/fulfill/reject framing and the typed error codes the packet
// pipeline raises, grounded on the teacher's dispatch-by-transaction-type
// idiom (internal/listener/send_receive_listener.go) generalized from a
// three-way switch to a fixed ILP error taxonomy.
package ilp

import "time"

// Prepare is an inbound ILP prepare packet.
type Prepare struct {
	Amount             int64
	Destination        string
	ExpiresAt          time.Time
	ExecutionCondition [32]byte
	Data               []byte
}

// Fulfill is the successful response to a Prepare.
type Fulfill struct {
	FulfillmentPreimage [32]byte
	Data                []byte
}

// Reject is the unsuccessful response to a Prepare.
type Reject struct {
	Code    ErrorCode
	Message string
	TriggeredBy string
	Data    []byte
}

// ErrorCode is the ILP error code space (spec.md §4.2, §7).
type ErrorCode string

const (
	CodeUnreachableError     ErrorCode = "F02"
	CodeAmountTooLarge       ErrorCode = "F08"
	CodeUnexpectedPayment    ErrorCode = "F06"
	CodeWrongCondition       ErrorCode = "F05"
	CodeBadRequest           ErrorCode = "F01"
	CodeApplicationError     ErrorCode = "F99"
	CodeTransferTimedOut     ErrorCode = "R00"
	CodeInsufficientLiquidity ErrorCode = "T04"
	CodeRateLimitExceeded    ErrorCode = "T05"
	CodePeerBusy             ErrorCode = "T01"
	CodeInternalError        ErrorCode = "T00"
)

// kindToCode maps the engine's internal error taxonomy (internal/store) to
// the ILP wire error code a reject packet carries.
var kindToCode = map[string]ErrorCode{
	"UnreachableError":      CodeUnreachableError,
	"AmountTooLarge":        CodeAmountTooLarge,
	"UnexpectedPayment":     CodeUnexpectedPayment,
	"WrongCondition":        CodeWrongCondition,
	"TransferTimedOut":      CodeTransferTimedOut,
	"InsufficientLiquidity": CodeInsufficientLiquidity,
	"RateLimitExceeded":     CodeRateLimitExceeded,
}

// CodeForKind resolves an internal store.ErrKind tag to its ILP wire code,
// falling back to F99 ApplicationError for kinds with no direct ILP analog.
func CodeForKind(kind string) ErrorCode {
	if c, ok := kindToCode[kind]; ok {
		return c
	}
	return CodeApplicationError
}

func NewReject(code ErrorCode, message, triggeredBy string) *Reject {
	return &Reject{Code: code, Message: message, TriggeredBy: triggeredBy}
}

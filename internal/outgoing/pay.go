package outgoing

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/ilpengine/engine/internal/ilp"
	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/receiver"
	"github.com/ilpengine/engine/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PacketSender sends one ILP prepare packet as source and returns either a
// fulfillment or a reject, implemented by internal/pipeline's Pipeline.Send
// for a locally-originated (pay-step) packet.
type PacketSender interface {
	Send(ctx context.Context, source models.AccountRef, destination string, amount int64, minExchangeRate string, executionCondition [32]byte, data []byte, expiresAt time.Time) (fulfillment [32]byte, reject *ilp.Reject, err error)
}

// StreamPay drives one pay-step attempt by sending a sequence of STREAM
// money packets toward the quote's receiver, sized to the quote's
// maxPacketAmount and the remaining debit budget, stopping once the full
// debitAmount has been sent or delivered, or a fatal/retryable error is
// hit (spec.md §4.3 "the pay step").
type StreamPay struct {
	resolver *receiver.Resolver
	sender   PacketSender
	log      *zap.Logger
}

func NewStreamPay(resolver *receiver.Resolver, sender PacketSender, log *zap.Logger) *StreamPay {
	return &StreamPay{resolver: resolver, sender: sender, log: log}
}

func (p *StreamPay) Pay(ctx context.Context, payment *models.OutgoingPayment, quote *models.Quote, wallet *models.WalletAddress) (Result, error) {
	resolved, err := p.resolver.Resolve(ctx, quote.Receiver)
	if err != nil || resolved == nil {
		return Result{Err: store.NewError(store.ErrEstablishmentFailed, "could not resolve receiver"), Retryable: true}, nil
	}

	debitAmount, err := decimal.NewFromString(quote.DebitAmount)
	if err != nil {
		return Result{}, fmt.Errorf("parsing quote.debitAmount: %w", err)
	}
	alreadySent, err := decimal.NewFromString(payment.SentAmount)
	if err != nil {
		alreadySent = decimal.Zero
	}

	maxPacket := quote.MaxPacketAmount
	if maxPacket <= 0 {
		maxPacket = defaultMaxPacketAmount
	}

	sent := alreadySent
	source := models.AccountRef{Kind: models.AccountKindOutgoingPayment, ID: payment.ID, AssetID: quote.AssetID}

	for sent.LessThan(debitAmount) {
		remaining := debitAmount.Sub(sent)
		packetAmount := remaining
		if packetAmount.GreaterThan(decimal.NewFromInt(maxPacket)) {
			packetAmount = decimal.NewFromInt(maxPacket)
		}
		amount, ok := new(big.Int).SetString(packetAmount.StringFixed(0), 10)
		if !ok || !amount.IsInt64() {
			return Result{AmountSent: sent.String(), Err: store.NewError(store.ErrInvalidGeneratedSequence, "packet amount overflow"), Retryable: false}, nil
		}

		data := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, data); err != nil {
			return Result{}, fmt.Errorf("generating packet data: %w", err)
		}
		mac := hmacSum(resolved.SharedSecret, data)
		condition := sha256.Sum256(mac[:])

		expiresAt := time.Now().Add(30 * time.Second)
		_, reject, err := p.sender.Send(ctx, source, resolved.IlpAddress, amount.Int64(), quote.MinExchangeRate, condition, data, expiresAt)
		if err != nil {
			return Result{AmountSent: sent.String(), Err: err, Retryable: classify(err)}, nil
		}
		if reject != nil {
			return Result{AmountSent: sent.String(), Err: rejectToErr(reject), Retryable: retryableReject(reject)}, nil
		}

		sent = sent.Add(packetAmount)
	}

	return Result{AmountSent: sent.String(), AmountDelivered: quote.ReceiveAmount, Done: true}, nil
}

const defaultMaxPacketAmount = int64(1) << 40

func hmacSum(secret [32]byte, data []byte) [32]byte {
	h := hmac.New(sha256.New, secret[:])
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func classify(err error) bool {
	kind := store.KindOf(err)
	if kind == "" {
		return true
	}
	return kind.Retryable()
}

func rejectToErr(r *ilp.Reject) error {
	return errors.New(string(r.Code) + ": " + r.Message)
}

func retryableReject(r *ilp.Reject) bool {
	switch r.Code {
	case ilp.CodeInternalError, ilp.CodePeerBusy, ilp.CodeInsufficientLiquidity, ilp.CodeRateLimitExceeded, ilp.CodeTransferTimedOut:
		return true
	default:
		return false
	}
}

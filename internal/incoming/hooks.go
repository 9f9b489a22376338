// Package incoming owns the incoming-payment side of the credit path:
// the onCredit handler that advances receivedAmount and completes a
// payment, and the background workers that sweep expired payments and
// throttle wallet-address web-monetization events (spec.md §4.3, §4.7).
package incoming

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/registry"
	"github.com/ilpengine/engine/internal/store"
	"github.com/shopspring/decimal"
)

// RegisterHooks wires the incoming-payment and web-monetization onCredit
// handlers into reg, mirroring how the teacher's service layer registers
// its Formance webhook handlers at startup.
func RegisterHooks(reg *registry.Registry, domain store.DomainStore) {
	reg.On(models.AccountKindIncomingPayment, incomingPaymentCredit(domain))
	reg.On(models.AccountKindWebMonetization, webMonetizationCredit())
}

// incomingPaymentCredit is spec.md §4.3's credit handler: Pending becomes
// Processing on first credit, and the payment completes once
// receivedAmount reaches incomingAmount (open-ended payments never
// auto-complete this way and rely on the expiry sweep instead).
func incomingPaymentCredit(domain store.DomainStore) registry.Handler {
	return func(ctx context.Context, ref models.AccountRef, totalReceived models.Money) error {
		payment, err := domain.GetIncomingPayment(ctx, ref.ID)
		if err != nil {
			return fmt.Errorf("loading incoming payment %s on credit: %w", ref.ID, err)
		}
		if payment.State.Terminal() {
			return nil
		}

		payment.ReceivedAmount = totalReceived.Value.String()
		if payment.State == models.IncomingPaymentPending {
			payment.State = models.IncomingPaymentProcessing
		}

		var event *models.WebhookEvent
		if payment.IncomingAmount != nil {
			limit, err := decimal.NewFromString(*payment.IncomingAmount)
			if err != nil {
				return fmt.Errorf("parsing incoming amount for payment %s: %w", payment.ID, err)
			}
			if totalReceived.Value.GreaterThanOrEqual(limit) {
				payment.State = models.IncomingPaymentCompleted
				payment.ProcessAt = nil
				payment.ConnectionID = nil
				event = &models.WebhookEvent{
					ID:   uuid.NewString(),
					Type: models.EventIncomingPaymentCompleted,
					Data: map[string]any{
						"id":              payment.ID,
						"walletAddressId": payment.WalletAddressID,
						"receivedAmount":  payment.ReceivedAmount,
					},
				}
				now := time.Now()
				event.ProcessAt = &now
				event.CreatedAt = now
			}
		}

		return domain.UpdateIncomingPayment(ctx, payment, event)
	}
}

// webMonetizationCredit has nothing to update on the incoming-payment
// table; the wallet-address worker is what turns accumulated credit into
// a throttled webhook event, so this handler is a no-op acknowledgment
// that the credit landed on a web-monetization account rather than an
// unrouted one.
func webMonetizationCredit() registry.Handler {
	return func(ctx context.Context, ref models.AccountRef, totalReceived models.Money) error {
		return nil
	}
}

package incoming

import (
	"context"
	"testing"

	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
	"github.com/shopspring/decimal"
)

type fakeDomain struct {
	store.DomainStore
	payment  *models.IncomingPayment
	updated  *models.IncomingPayment
	updEvent *models.WebhookEvent
}

func (f *fakeDomain) GetIncomingPayment(ctx context.Context, id string) (*models.IncomingPayment, error) {
	return f.payment, nil
}

func (f *fakeDomain) UpdateIncomingPayment(ctx context.Context, p *models.IncomingPayment, event *models.WebhookEvent) error {
	f.updated = p
	f.updEvent = event
	return nil
}

func TestIncomingPaymentCredit_PendingBecomesProcessing(t *testing.T) {
	domain := &fakeDomain{payment: &models.IncomingPayment{
		ID: "ip1", State: models.IncomingPaymentPending, IncomingAmount: strPtr("1000"),
	}}
	handler := incomingPaymentCredit(domain)

	err := handler(context.Background(), models.AccountRef{ID: "ip1"}, models.Money{Value: decimal.NewFromInt(400)})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if domain.updated.State != models.IncomingPaymentProcessing {
		t.Fatalf("expected state PROCESSING, got %s", domain.updated.State)
	}
	if domain.updated.ReceivedAmount != "400" {
		t.Fatalf("expected receivedAmount 400, got %s", domain.updated.ReceivedAmount)
	}
	if domain.updEvent != nil {
		t.Fatalf("expected no completion event below the incoming amount, got %+v", domain.updEvent)
	}
}

func TestIncomingPaymentCredit_ReachingIncomingAmountCompletes(t *testing.T) {
	domain := &fakeDomain{payment: &models.IncomingPayment{
		ID: "ip1", State: models.IncomingPaymentProcessing, IncomingAmount: strPtr("1000"), ConnectionID: strPtr("conn1"),
	}}
	handler := incomingPaymentCredit(domain)

	err := handler(context.Background(), models.AccountRef{ID: "ip1"}, models.Money{Value: decimal.NewFromInt(1000)})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if domain.updated.State != models.IncomingPaymentCompleted {
		t.Fatalf("expected state COMPLETED, got %s", domain.updated.State)
	}
	if domain.updated.ProcessAt != nil {
		t.Fatal("expected ProcessAt cleared on completion")
	}
	if domain.updated.ConnectionID != nil {
		t.Fatal("expected ConnectionID cleared on completion")
	}
	if domain.updEvent == nil || domain.updEvent.Type != models.EventIncomingPaymentCompleted {
		t.Fatalf("expected an incoming_payment.completed event, got %+v", domain.updEvent)
	}
}

func TestIncomingPaymentCredit_OpenEndedNeverAutoCompletes(t *testing.T) {
	domain := &fakeDomain{payment: &models.IncomingPayment{
		ID: "ip1", State: models.IncomingPaymentProcessing, IncomingAmount: nil,
	}}
	handler := incomingPaymentCredit(domain)

	err := handler(context.Background(), models.AccountRef{ID: "ip1"}, models.Money{Value: decimal.NewFromInt(1000000)})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if domain.updated.State != models.IncomingPaymentProcessing {
		t.Fatalf("expected state to remain PROCESSING for an open-ended payment, got %s", domain.updated.State)
	}
	if domain.updEvent != nil {
		t.Fatal("expected no completion event for an open-ended payment")
	}
}

func TestIncomingPaymentCredit_TerminalStateIsNoOp(t *testing.T) {
	domain := &fakeDomain{payment: &models.IncomingPayment{
		ID: "ip1", State: models.IncomingPaymentCompleted,
	}}
	handler := incomingPaymentCredit(domain)

	err := handler(context.Background(), models.AccountRef{ID: "ip1"}, models.Money{Value: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if domain.updated != nil {
		t.Fatal("expected no update for an already-terminal payment")
	}
}

func TestWebMonetizationCredit_IsNoOp(t *testing.T) {
	handler := webMonetizationCredit()
	if err := handler(context.Background(), models.AccountRef{}, models.Money{}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func strPtr(s string) *string { return &s }

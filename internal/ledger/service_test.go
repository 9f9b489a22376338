package ledger

import (
	"testing"

	"github.com/ilpengine/engine/internal/models"
)

func TestFormanceAsset_UsesExplicitScale(t *testing.T) {
	if got := formanceAsset("USD", 2); got != "USD/2" {
		t.Fatalf("expected USD/2, got %s", got)
	}
}

func TestFormanceAsset_FallsBackToKnownPrecision(t *testing.T) {
	if got := formanceAsset("XRP", 0); got != "XRP/9" {
		t.Fatalf("expected XRP/9 from the precision table, got %s", got)
	}
}

func TestFormanceAsset_UnknownCodeDefaultsToSix(t *testing.T) {
	if got := formanceAsset("ZZZ", 0); got != "ZZZ/6" {
		t.Fatalf("expected ZZZ/6 default precision, got %s", got)
	}
}

func TestAccountString_PerKindNamespace(t *testing.T) {
	cases := []struct {
		ref  models.AccountRef
		want string
	}{
		{models.AccountRef{Kind: models.AccountKindAsset, ID: "asset1"}, "assets:asset1:liquidity"},
		{models.AccountRef{Kind: models.AccountKindPeer, ID: "peer1"}, "peers:peer1"},
		{models.AccountRef{Kind: models.AccountKindIncomingPayment, ID: "ip1"}, "incoming-payments:ip1"},
		{models.AccountRef{Kind: models.AccountKindOutgoingPayment, ID: "op1"}, "outgoing-payments:op1"},
		{models.AccountRef{Kind: models.AccountKindWebMonetization, ID: "wa1"}, "wallet-addresses:wa1"},
	}
	for _, c := range cases {
		if got := accountString(c.ref); got != c.want {
			t.Errorf("accountString(%+v) = %s, want %s", c.ref, got, c.want)
		}
	}
}

func TestAccountString_UnknownKindFallsBack(t *testing.T) {
	ref := models.AccountRef{Kind: models.AccountKind("bogus"), ID: "x"}
	if got := accountString(ref); got != "unknown:x" {
		t.Fatalf("expected unknown:x, got %s", got)
	}
}

func TestSettlementConversionsPendingAccounts(t *testing.T) {
	if got := settlementAccount("asset1"); got != "assets:asset1:settlement" {
		t.Fatalf("unexpected settlement account: %s", got)
	}
	if got := conversionsAccount("asset1"); got != "assets:asset1:conversions" {
		t.Fatalf("unexpected conversions account: %s", got)
	}
	if got := pendingAccount("transfer1"); got != "transfers:pending:transfer1" {
		t.Fatalf("unexpected pending account: %s", got)
	}
}

func TestSplitAsset(t *testing.T) {
	code, scale := splitAsset("USD/2")
	if code != "USD" || scale != 2 {
		t.Fatalf("expected USD/2, got %s/%d", code, scale)
	}
}

func TestSplitAsset_NoSlashReturnsWholeStringZeroScale(t *testing.T) {
	code, scale := splitAsset("USD")
	if code != "USD" || scale != 0 {
		t.Fatalf("expected USD/0, got %s/%d", code, scale)
	}
}

func TestStrPtr(t *testing.T) {
	p := strPtr("hello")
	if p == nil || *p != "hello" {
		t.Fatalf("expected pointer to hello, got %v", p)
	}
}

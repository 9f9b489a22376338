package receiver

import "testing"

func TestIsLocal_MatchesWalletAddressPrefix(t *testing.T) {
	r := &Resolver{walletAddressURL: "https://wallet.example"}
	if !r.isLocal("https://wallet.example/alice") {
		t.Fatal("expected a URL under the wallet address prefix to be local")
	}
}

func TestIsLocal_RemoteURLIsNotLocal(t *testing.T) {
	r := &Resolver{walletAddressURL: "https://wallet.example"}
	if r.isLocal("https://other.example/alice") {
		t.Fatal("expected a URL with a different host to not be local")
	}
}

func TestLastPathSegment(t *testing.T) {
	id, err := lastPathSegment("https://wallet.example/alice/incoming-payments/ip-123")
	if err != nil {
		t.Fatalf("lastPathSegment failed: %v", err)
	}
	if id != "ip-123" {
		t.Fatalf("expected ip-123, got %s", id)
	}
}

func TestLastPathSegment_TrailingSlashIgnored(t *testing.T) {
	id, err := lastPathSegment("https://wallet.example/alice/incoming-payments/ip-123/")
	if err != nil {
		t.Fatalf("lastPathSegment failed: %v", err)
	}
	if id != "ip-123" {
		t.Fatalf("expected ip-123, got %s", id)
	}
}

func TestLastPathSegment_NoPathErrors(t *testing.T) {
	if _, err := lastPathSegment("https://wallet.example"); err == nil {
		t.Fatal("expected an error when the URL has no path segment")
	}
}

package stream

import (
	"crypto/hmac"
	"crypto/sha256"
	"testing"
)

func testSecret() [32]byte {
	var s [32]byte
	for i := range s {
		s[i] = byte(i)
	}
	return s
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	codec := New(testSecret(), "g.engine")
	tag := []byte("incoming-payment-1")

	addr, secretB64, err := codec.Encode(tag)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if secretB64 == "" {
		t.Fatal("expected a non-empty shared secret")
	}

	got, err := codec.Decode(addr)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if string(got) != string(tag) {
		t.Fatalf("expected tag %q, got %q", tag, got)
	}
}

func TestEncode_AddressesAreUnlinkable(t *testing.T) {
	codec := New(testSecret(), "g.engine")
	tag := []byte("same-tag")

	addr1, _, err := codec.Encode(tag)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	addr2, _, err := codec.Encode(tag)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if addr1 == addr2 {
		t.Fatal("expected distinct addresses for the same tag due to random nonce")
	}
}

func TestDecode_WrongPrefixRejected(t *testing.T) {
	codec := New(testSecret(), "g.engine")
	if _, err := codec.Decode("g.other.something"); err == nil {
		t.Fatal("expected an error decoding an address with the wrong prefix")
	}
}

func TestDecode_TamperedSegmentRejected(t *testing.T) {
	codec := New(testSecret(), "g.engine")
	addr, _, err := codec.Encode([]byte("tag"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	tampered := addr + "x"
	if _, err := codec.Decode(tampered); err == nil {
		t.Fatal("expected an error decoding a tampered address")
	}
}

func TestDeriveSharedSecret_DeterministicPerTag(t *testing.T) {
	codec := New(testSecret(), "g.engine")
	s1, err := codec.DeriveSharedSecret([]byte("tag-a"))
	if err != nil {
		t.Fatalf("DeriveSharedSecret failed: %v", err)
	}
	s2, err := codec.DeriveSharedSecret([]byte("tag-a"))
	if err != nil {
		t.Fatalf("DeriveSharedSecret failed: %v", err)
	}
	if s1 != s2 {
		t.Fatal("expected the same tag to derive the same shared secret")
	}

	s3, err := codec.DeriveSharedSecret([]byte("tag-b"))
	if err != nil {
		t.Fatalf("DeriveSharedSecret failed: %v", err)
	}
	if s1 == s3 {
		t.Fatal("expected different tags to derive different shared secrets")
	}
}

func TestVerifyHMAC(t *testing.T) {
	secret := testSecret()
	message := []byte("packet-body")

	mac := hmac.New(sha256.New, secret[:])
	mac.Write(message)
	validTag := mac.Sum(nil)

	if !VerifyHMAC(secret, message, validTag) {
		t.Fatal("expected a valid HMAC to verify")
	}
	if VerifyHMAC(secret, message, []byte("not-a-valid-tag-at-all-wrong-len")) {
		t.Fatal("expected a wrong HMAC to fail verification")
	}
	badTag := append([]byte{}, validTag...)
	badTag[0] ^= 0xFF
	if VerifyHMAC(secret, message, badTag) {
		t.Fatal("expected a tampered HMAC to fail verification")
	}
}

// Package stream implements the STREAM shared-secret / address codec and
// the receiver-side fulfillment logic the packet pipeline's stream
// middleware and stream controller stages consume (spec.md §4.2 stages 2
// and 9, §9's "shared-secret / STREAM-address codec" design note).
package stream

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const sharedSecretInfo = "ilp_stream_shared_secret"

// Codec derives per-connection STREAM credentials from a long-lived server
// secret, per spec.md §9: `sharedSecret = HKDF(streamSecret,
// "ilp_stream_shared_secret" || tag)` and `ilpAddress = ownAddress + "." +
// base64url(encrypt(streamSecret, tag))`. Encoding embeds a random nonce so
// decoding is deterministic and constant-time without needing a fixed
// nonce reused across tags (which would break AES-GCM's security bound).
type Codec struct {
	serverSecret [32]byte
	ownAddress   string
}

func New(serverSecret [32]byte, ownAddress string) *Codec {
	return &Codec{serverSecret: serverSecret, ownAddress: ownAddress}
}

// DeriveSharedSecret returns the per-connection secret used to encrypt and
// authenticate STREAM packets for the connection identified by tag
// (typically an incoming-payment id).
func (c *Codec) DeriveSharedSecret(tag []byte) ([32]byte, error) {
	var out [32]byte
	r := hkdf.New(sha256.New, c.serverSecret[:], nil, append([]byte(sharedSecretInfo), tag...))
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return out, fmt.Errorf("deriving shared secret: %w", err)
	}
	return out, nil
}

func (c *Codec) addressEncryptionKey() ([32]byte, error) {
	var key [32]byte
	r := hkdf.New(sha256.New, c.serverSecret[:], nil, []byte("ilp_stream_address_segment"))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, fmt.Errorf("deriving address encryption key: %w", err)
	}
	return key, nil
}

// Encode produces the STREAM-encoded ILP address and base64url shared
// secret for a connection tag, e.g. for a newly-created incoming payment.
func (c *Codec) Encode(tag []byte) (ilpAddress, sharedSecretB64 string, err error) {
	key, err := c.addressEncryptionKey()
	if err != nil {
		return "", "", err
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", "", fmt.Errorf("building address cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", fmt.Errorf("building GCM mode: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", fmt.Errorf("generating address nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, tag, nil)

	segment := base64.RawURLEncoding.EncodeToString(sealed)
	secret, err := c.DeriveSharedSecret(tag)
	if err != nil {
		return "", "", err
	}
	return c.ownAddress + "." + segment, base64.URLEncoding.EncodeToString(secret[:]), nil
}

// Decode extracts the connection tag from a STREAM-encoded ILP address
// previously produced by Encode with the same server secret, in constant
// time relative to the tag's contents (the AES-GCM tag check alone
// provides this; no secret-dependent branch follows it).
func (c *Codec) Decode(ilpAddress string) ([]byte, error) {
	prefix := c.ownAddress + "."
	if len(ilpAddress) <= len(prefix) || ilpAddress[:len(prefix)] != prefix {
		return nil, errors.New("address does not match own prefix")
	}
	segment := ilpAddress[len(prefix):]

	key, err := c.addressEncryptionKey()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("building address cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("building GCM mode: %w", err)
	}

	sealed, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil, fmt.Errorf("decoding address segment: %w", err)
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("address segment too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	tag, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting address segment: %w", err)
	}
	return tag, nil
}

// VerifyHMAC is a constant-time comparison helper for STREAM packet
// authentication tags computed with the derived shared secret.
func VerifyHMAC(secret [32]byte, message, tag []byte) bool {
	mac := hmac.New(sha256.New, secret[:])
	mac.Write(message)
	expected := mac.Sum(nil)
	return subtle.ConstantTimeCompare(expected, tag) == 1
}

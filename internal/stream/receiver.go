package stream

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
)

// Receiver computes PSK-style fulfillments for inbound prepare packets
// addressed to a local incoming payment or wallet address (spec.md §4.2
// stage 9 "stream controller"). It does not record credits: the ledger's
// onCredit hook fires when the pipeline posts the pending transfer.
type Receiver struct{}

func NewReceiver() *Receiver { return &Receiver{} }

// Fulfillment derives the HMAC-SHA256 fulfillment for a packet's data
// under the connection's shared secret, matching the ILP-STREAM PSK
// fulfillment scheme (fulfillment = HMAC(sharedSecret, data)).
func (r *Receiver) Fulfillment(sharedSecret [32]byte, data []byte) [32]byte {
	mac := hmac.New(sha256.New, sharedSecret[:])
	mac.Write(data)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// Condition returns SHA-256(fulfillment), the value a prepare packet's
// executionCondition must equal for the fulfillment to be valid.
func (r *Receiver) Condition(fulfillment [32]byte) [32]byte {
	return sha256.Sum256(fulfillment[:])
}

// Fulfill computes the fulfillment for data and checks it reproduces the
// prepare packet's executionCondition; ok=false means the packet cannot be
// fulfilled locally (spec.md §4.2 stage 9: "otherwise reject").
func (r *Receiver) Fulfill(sharedSecret [32]byte, data []byte, executionCondition [32]byte) (fulfillment [32]byte, ok bool) {
	f := r.Fulfillment(sharedSecret, data)
	cond := r.Condition(f)
	return f, subtle.ConstantTimeCompare(cond[:], executionCondition[:]) == 1
}

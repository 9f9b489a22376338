package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ilpengine/engine/internal/ilp"
	"github.com/ilpengine/engine/internal/models"
	"golang.org/x/net/http2"
)

var base64Encoding = base64.RawURLEncoding

// HTTPPeerTransport sends prepare packets to remote peers over HTTP,
// grounded on the teacher's createCustomHttpClient (internal/prime/
// service.go): an http2-upgraded Transport with bounded idle connections
// and handshake/response timeouts, reused across all peer sends rather
// than built per request.
type HTTPPeerTransport struct {
	client *http.Client
}

func NewHTTPPeerTransport() (*HTTPPeerTransport, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 10 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   10 * time.Second,
		}).DialContext,
		MaxIdleConns:          50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   10,
		ExpectContinueTimeout: 2 * time.Second,
	}
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, fmt.Errorf("configuring peer transport: %w", err)
	}
	return &HTTPPeerTransport{client: &http.Client{Transport: tr, Timeout: 30 * time.Second}}, nil
}

// wirePrepare/wireResponse are the JSON envelope exchanged between
// engines; a production ILP connector would use the ASN.1 OER packet
// encoding, out of scope here per spec.md §1's "out of scope: the HTTP
// surfaces for streaming-payment setup and the third-party payment
// protocol" -- this transport only needs to move prepare/fulfill/reject
// between two instances of this engine.
type wirePrepare struct {
	Amount             int64     `json:"amount"`
	Destination        string    `json:"destination"`
	ExpiresAt          time.Time `json:"expiresAt"`
	ExecutionCondition string    `json:"executionCondition"`
	Data               string    `json:"data"`
}

type wireResponse struct {
	Fulfillment string     `json:"fulfillment,omitempty"`
	Data        string     `json:"data,omitempty"`
	Reject      *wireReject `json:"reject,omitempty"`
}

type wireReject struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	TriggeredBy string `json:"triggeredBy"`
	Data        string `json:"data,omitempty"`
}

func (t *HTTPPeerTransport) Send(ctx context.Context, peer *models.Peer, prepare *ilp.Prepare) (*ilp.Fulfill, *ilp.Reject, error) {
	body, err := json.Marshal(wirePrepare{
		Amount:             prepare.Amount,
		Destination:        prepare.Destination,
		ExpiresAt:          prepare.ExpiresAt,
		ExecutionCondition: b64(prepare.ExecutionCondition[:]),
		Data:               b64(prepare.Data),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encoding prepare packet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peer.StaticIlpAddress, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("building peer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+peer.OutgoingToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("sending packet to peer %s: %w", peer.ID, err)
	}
	defer resp.Body.Close()

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, nil, fmt.Errorf("decoding peer response: %w", err)
	}

	if wire.Reject != nil {
		return nil, &ilp.Reject{
			Code:        ilp.ErrorCode(wire.Reject.Code),
			Message:     wire.Reject.Message,
			TriggeredBy: wire.Reject.TriggeredBy,
			Data:        unb64(wire.Reject.Data),
		}, nil
	}

	preimage := unb64(wire.Fulfillment)
	var fulfillment [32]byte
	copy(fulfillment[:], preimage)
	return &ilp.Fulfill{FulfillmentPreimage: fulfillment, Data: unb64(wire.Data)}, nil, nil
}

func b64(data []byte) string {
	if data == nil {
		return ""
	}
	return base64Encoding.EncodeToString(data)
}

func unb64(s string) []byte {
	if s == "" {
		return nil
	}
	data, _ := base64Encoding.DecodeString(s)
	return data
}

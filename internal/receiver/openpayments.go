package receiver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OpenPaymentsClient talks to remote Open Payments resource servers to
// resolve wallet addresses and incoming payments for cross-wallet
// payments (spec.md §4.5).
type OpenPaymentsClient struct {
	client *http.Client
}

func NewOpenPaymentsClient(client *http.Client) *OpenPaymentsClient {
	return &OpenPaymentsClient{client: client}
}

type walletAddressDoc struct {
	ID                   string `json:"id"`
	PublicName           string `json:"publicName"`
	AssetCode            string `json:"assetCode"`
	AssetScale           int    `json:"assetScale"`
	AuthServer           string `json:"authServer"`
	ResourceServer       string `json:"resourceServer"`
}

// GetWalletAddress fetches the public wallet-address document (the JRD
// served at the wallet address URL) and returns its asset fields plus the
// authorization server it advertises.
func (c *OpenPaymentsClient) GetWalletAddress(ctx context.Context, walletURL string) (*walletAddressDoc, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, walletURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building wallet address request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching wallet address %s: %w", walletURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("wallet address server returned %d", resp.StatusCode)
	}

	var doc walletAddressDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, "", fmt.Errorf("decoding wallet address document: %w", err)
	}
	return &doc, doc.AuthServer, nil
}

type remoteIncomingPayment struct {
	IlpAddress     string    `json:"ilpAddress"`
	SharedSecret   string    `json:"sharedSecret"`
	IncomingAmount *remoteAmount `json:"incomingAmount"`
	ReceivedAmount *remoteAmount `json:"receivedAmount"`
	ExpiresAt      *time.Time    `json:"expiresAt"`
}

type remoteAmount struct {
	Value      string `json:"value"`
	AssetCode  string `json:"assetCode"`
	AssetScale int    `json:"assetScale"`
}

type resolvedPayment struct {
	IlpAddress     string
	SharedSecret   [32]byte
	IncomingAmount *string
	ReceivedAmount *string
	ExpiresAt      *time.Time
}

// GetIncomingPayment fetches a remote incoming payment's STREAM connection
// details using a bearer access token obtained from the GrantCache.
func (c *OpenPaymentsClient) GetIncomingPayment(ctx context.Context, paymentURL, accessToken string) (*resolvedPayment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, paymentURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building incoming payment request: %w", err)
	}
	req.Header.Set("Authorization", "GNAP "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching incoming payment %s: %w", paymentURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("incoming payment server returned %d", resp.StatusCode)
	}

	var doc remoteIncomingPayment
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding incoming payment document: %w", err)
	}

	secretBytes, err := base64.StdEncoding.DecodeString(doc.SharedSecret)
	if err != nil || len(secretBytes) != 32 {
		return nil, fmt.Errorf("invalid shared secret in incoming payment document")
	}
	var secret [32]byte
	copy(secret[:], secretBytes)

	out := &resolvedPayment{IlpAddress: doc.IlpAddress, SharedSecret: secret, ExpiresAt: doc.ExpiresAt}
	if doc.IncomingAmount != nil {
		out.IncomingAmount = &doc.IncomingAmount.Value
	}
	if doc.ReceivedAmount != nil {
		out.ReceivedAmount = &doc.ReceivedAmount.Value
	}
	return out, nil
}

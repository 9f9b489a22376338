// Package receiver implements the receiver resolver (spec.md §4.5): given a
// connection or incoming-payment URL, materializes the asset, ILP address,
// shared secret, and amount/expiry fields a quote or payment needs,
// whether the receiver is local (our own wallet addresses) or remote
// (fetched over Open Payments).
package receiver

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilpengine/engine/internal/models"
	"github.com/ilpengine/engine/internal/store"
	"github.com/ilpengine/engine/internal/stream"
)

// Resolved is the receiver descriptor returned to the quote engine and the
// outgoing-payment pay step.
type Resolved struct {
	AssetCode       string
	AssetScale      int
	IlpAddress      string
	SharedSecret    [32]byte
	IncomingPayment *models.IncomingPayment
	IncomingAmount  *string
	ReceivedAmount  *string
	ExpiresAt       *time.Time
}

// Resolver resolves receiver URLs, preferring the local wallet-address
// store when the URL is under our own walletAddressUrl prefix and falling
// back to the remote Open Payments client otherwise (spec.md §4.5).
type Resolver struct {
	domain           store.DomainStore
	codec            *stream.Codec
	walletAddressURL string
	openPayments     *OpenPaymentsClient
	grants           *GrantCache
}

func NewResolver(domain store.DomainStore, codec *stream.Codec, walletAddressURL string, openPayments *OpenPaymentsClient, grants *GrantCache) *Resolver {
	return &Resolver{domain: domain, codec: codec, walletAddressURL: walletAddressURL, openPayments: openPayments, grants: grants}
}

func (r *Resolver) isLocal(receiverURL string) bool {
	return strings.HasPrefix(receiverURL, r.walletAddressURL)
}

// Resolve implements spec.md §4.5: local wallet addresses read the
// incoming payment directly; remote receivers are fetched over Open
// Payments using a cached (or freshly issued) access grant.
func (r *Resolver) Resolve(ctx context.Context, receiverURL string) (*Resolved, error) {
	if r.isLocal(receiverURL) {
		return r.resolveLocal(ctx, receiverURL)
	}
	return r.resolveRemote(ctx, receiverURL)
}

func (r *Resolver) resolveLocal(ctx context.Context, receiverURL string) (*Resolved, error) {
	id, err := lastPathSegment(receiverURL)
	if err != nil {
		return nil, fmt.Errorf("parsing local receiver URL %s: %w", receiverURL, err)
	}

	payment, err := r.domain.GetIncomingPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	asset, err := r.domain.GetAsset(ctx, payment.AssetID)
	if err != nil {
		return nil, err
	}

	secret, err := r.codec.DeriveSharedSecret([]byte(payment.ID))
	if err != nil {
		return nil, err
	}
	ilpAddress, _, err := r.codec.Encode([]byte(payment.ID))
	if err != nil {
		return nil, err
	}

	return &Resolved{
		AssetCode:       asset.Code,
		AssetScale:      asset.Scale,
		IlpAddress:      ilpAddress,
		SharedSecret:    secret,
		IncomingPayment: payment,
		IncomingAmount:  payment.IncomingAmount,
		ReceivedAmount:  &payment.ReceivedAmount,
		ExpiresAt:       &payment.ExpiresAt,
	}, nil
}

// resolveRemote fetches a wallet-address descriptor, obtains a
// read-all incoming-payment grant via the cache (rotating or requesting
// anew as needed), then calls the remote incoming-payments endpoint. On
// any failure it returns undefined (nil, nil) per spec.md §4.5, not an
// error, so the caller can distinguish "could not resolve" from "resolver
// itself is broken".
func (r *Resolver) resolveRemote(ctx context.Context, receiverURL string) (*Resolved, error) {
	wa, authServer, err := r.openPayments.GetWalletAddress(ctx, receiverURL)
	if err != nil {
		return nil, nil
	}

	grant, err := r.grants.Get(ctx, authServer, "incoming-payment", []string{"read-all"})
	if err != nil || grant == nil {
		return nil, nil
	}

	payment, err := r.openPayments.GetIncomingPayment(ctx, receiverURL, grant.AccessToken)
	if err != nil {
		return nil, nil
	}

	return &Resolved{
		AssetCode:      wa.AssetCode,
		AssetScale:     wa.AssetScale,
		IlpAddress:     payment.IlpAddress,
		SharedSecret:   payment.SharedSecret,
		IncomingAmount: payment.IncomingAmount,
		ReceivedAmount: payment.ReceivedAmount,
		ExpiresAt:      payment.ExpiresAt,
	}, nil
}

func lastPathSegment(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	parts := strings.Split(strings.TrimRight(u.Path, "/"), "/")
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return "", fmt.Errorf("no path segment in %s", raw)
	}
	return parts[len(parts)-1], nil
}

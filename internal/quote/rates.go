package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// RatesResponse is the rate service's response shape: base currency plus a
// map of other currency codes to their price in terms of base.
type RatesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// RatesClient fetches and caches exchange rates, in the spirit of
// vi13x-LedgerTgBot's Rates{Base, Pairs, UpdatedAt} shape (file-backed
// there; here an in-memory TTL cache fed by HTTP per spec.md §6's
// `exchangeRatesUrl`/`exchangeRatesLifetime`).
type RatesClient struct {
	url      string
	lifetime time.Duration
	client   *http.Client

	mu        sync.RWMutex
	cached    *RatesResponse
	fetchedAt time.Time
}

func NewRatesClient(url string, lifetime time.Duration) *RatesClient {
	return &RatesClient{url: url, lifetime: lifetime, client: &http.Client{Timeout: 10 * time.Second}}
}

func (c *RatesClient) get(ctx context.Context) (*RatesResponse, error) {
	c.mu.RLock()
	if c.cached != nil && time.Since(c.fetchedAt) < c.lifetime {
		cached := c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building rates request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching rates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rates service returned %d", resp.StatusCode)
	}

	var out RatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding rates response: %w", err)
	}

	c.mu.Lock()
	c.cached = &out
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return &out, nil
}

// Rate returns the price of destinationAsset in units of sourceAsset
// (multiply a sourceAsset amount by this to get destinationAsset).
func (c *RatesClient) Rate(ctx context.Context, sourceAsset, destinationAsset string) (decimal.Decimal, error) {
	if sourceAsset == destinationAsset {
		return decimal.NewFromInt(1), nil
	}
	rates, err := c.get(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	toBase := func(code string) (decimal.Decimal, error) {
		if code == rates.Base {
			return decimal.NewFromInt(1), nil
		}
		v, ok := rates.Rates[code]
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("no rate for asset code %s", code)
		}
		return decimal.NewFromFloat(v), nil
	}

	srcInBase, err := toBase(sourceAsset)
	if err != nil {
		return decimal.Decimal{}, err
	}
	dstInBase, err := toBase(destinationAsset)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return dstInBase.Div(srcInBase), nil
}

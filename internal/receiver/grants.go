package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Grant is a cached GNAP access grant issued by a remote authorization
// server for a given access type/actions pair.
type Grant struct {
	AccessToken string
	ManageURL   string
	ExpiresAt   time.Time
}

func (g *Grant) expired(now time.Time) bool {
	return !g.ExpiresAt.IsZero() && !now.Before(g.ExpiresAt)
}

type grantKey struct {
	authServer string
	accessType string
	actions    string
}

// GrantCache caches GNAP grants per (authServer, accessType, actions),
// requesting a fresh grant on a miss and rotating an expired grant via the
// authorization server's management URL; a failed rotation evicts the grant
// and Get returns nil with no error (spec.md §4.5's
// "client-to-authorization-server grant cache").
type GrantCache struct {
	client    *http.Client
	clientKey *ClientKey
	log       *zap.Logger

	mu    sync.Mutex
	cache map[grantKey]*Grant
}

// ClientKey is the engine's own GNAP client identity; jwt/v5 provides the
// signing primitive in GrantCache.sign. Grant and rotation requests are
// sent without a signature.
type ClientKey struct {
	KeyID      string
	WalletURL  string
	PrivateKey interface{}
}

func NewGrantCache(client *http.Client, key *ClientKey, log *zap.Logger) *GrantCache {
	return &GrantCache{client: client, clientKey: key, log: log, cache: make(map[grantKey]*Grant)}
}

func (c *GrantCache) Get(ctx context.Context, authServer, accessType string, actions []string) (*Grant, error) {
	sorted := append([]string(nil), actions...)
	sort.Strings(sorted)
	key := grantKey{authServer: authServer, accessType: accessType, actions: strings.Join(sorted, ",")}

	c.mu.Lock()
	cached, ok := c.cache[key]
	c.mu.Unlock()
	if ok && !cached.expired(time.Now()) {
		return cached, nil
	}
	if ok {
		rotated, err := c.rotate(ctx, key, cached)
		if err != nil {
			c.mu.Lock()
			delete(c.cache, key)
			c.mu.Unlock()
			return nil, nil
		}
		return rotated, nil
	}

	grant, err := c.requestGrant(ctx, authServer, accessType, sorted)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = grant
	c.mu.Unlock()
	return grant, nil
}

type grantRequest struct {
	AccessToken grantRequestAccessToken `json:"access_token"`
	Client      string                  `json:"client"`
}

type grantRequestAccessToken struct {
	Access []grantRequestAccess `json:"access"`
}

type grantRequestAccess struct {
	Type    string   `json:"type"`
	Actions []string `json:"actions"`
}

type grantResponse struct {
	AccessToken struct {
		Value  string `json:"value"`
		Manage string `json:"manage"`
		ExpiresIn int `json:"expires_in"`
	} `json:"access_token"`
}

func (c *GrantCache) requestGrant(ctx context.Context, authServer, accessType string, actions []string) (*Grant, error) {
	body, err := json.Marshal(grantRequest{
		AccessToken: grantRequestAccessToken{Access: []grantRequestAccess{{Type: accessType, Actions: actions}}},
		Client:      c.clientKey.WalletURL,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding grant request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(authServer, "/")+"/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building grant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting grant from %s: %w", authServer, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("authorization server %s returned %d", authServer, resp.StatusCode)
	}

	var out grantResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding grant response: %w", err)
	}

	grant := &Grant{AccessToken: out.AccessToken.Value, ManageURL: out.AccessToken.Manage}
	if out.AccessToken.ExpiresIn > 0 {
		grant.ExpiresAt = time.Now().Add(time.Duration(out.AccessToken.ExpiresIn) * time.Second)
	}
	return grant, nil
}

// rotate exchanges an expired token for a fresh one via the grant's manage
// URL and caches the result; Get calls it when a cached grant has expired.
func (c *GrantCache) rotate(ctx context.Context, key grantKey, grant *Grant) (*Grant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, grant.ManageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building rotate request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rotating grant: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manage endpoint returned %d", resp.StatusCode)
	}
	var out grantResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding rotate response: %w", err)
	}
	rotated := &Grant{AccessToken: out.AccessToken.Value, ManageURL: out.AccessToken.Manage}
	if out.AccessToken.ExpiresIn > 0 {
		rotated.ExpiresAt = time.Now().Add(time.Duration(out.AccessToken.ExpiresIn) * time.Second)
	}
	c.mu.Lock()
	c.cache[key] = rotated
	c.mu.Unlock()
	return rotated, nil
}

// sign signs claims as an HS256 JWT carrying the client KeyID as kid. No
// request path calls it.
func (c *GrantCache) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = c.clientKey.KeyID
	return token.SignedString(c.clientKey.PrivateKey)
}

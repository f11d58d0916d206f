package registry

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"CarbonPulse/internal/domain/service"
	pkgcache "CarbonPulse/pkg/cache"
	pkghttp "CarbonPulse/pkg/http"
)

// Client consults the external registration/escrow service. Lookups are
// hot on every trade, so positive answers can be cached for a short TTL.
type Client struct {
	baseURL  string
	httpc    *pkghttp.Client
	cache    pkgcache.Service
	cacheTTL time.Duration
}

// NewClient creates a registry client.
func NewClient(baseURL string, httpc *pkghttp.Client) *Client {
	return &Client{baseURL: baseURL, httpc: httpc}
}

// SetCache enables lookup caching.
func (c *Client) SetCache(svc pkgcache.Service, ttl time.Duration) {
	c.cache = svc
	c.cacheTTL = ttl
}

type participantResponse struct {
	Registered bool `json:"registered"`
	EscrowPaid bool `json:"escrow_paid"`
}

func (c *Client) lookup(ctx context.Context, participant string) (participantResponse, error) {
	var out participantResponse
	key := pkgcache.GenerateKey("registry", participant)
	if c.cache != nil {
		if err := c.cache.Get(ctx, key, &out); err == nil {
			return out, nil
		}
	}
	err := c.httpc.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.baseURL + "/v1/participants/" + url.PathEscape(participant),
	}, &out)
	if err != nil {
		return out, fmt.Errorf("registry lookup %s: %w", participant, err)
	}
	if c.cache != nil {
		_ = c.cache.Set(ctx, key, out, c.cacheTTL)
	}
	return out, nil
}

// IsRegistered reports whether the participant is registered.
func (c *Client) IsRegistered(ctx context.Context, participant string) (bool, error) {
	r, err := c.lookup(ctx, participant)
	if err != nil {
		return false, err
	}
	return r.Registered, nil
}

// HasPaidEscrow reports whether the participant's escrow fee is paid.
func (c *Client) HasPaidEscrow(ctx context.Context, participant string) (bool, error) {
	r, err := c.lookup(ctx, participant)
	if err != nil {
		return false, err
	}
	return r.EscrowPaid, nil
}

var _ service.Registry = (*Client)(nil)

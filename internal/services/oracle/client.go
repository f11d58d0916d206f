package oracle

import (
	"context"
	"fmt"

	"CarbonPulse/internal/domain/service"
	pkghttp "CarbonPulse/pkg/http"
	"CarbonPulse/pkg/fixed"
)

// Client fetches the credit price from the oracle's HTTP endpoint.
type Client struct {
	baseURL string
	httpc   *pkghttp.Client
}

// NewClient creates an HTTP price oracle client.
func NewClient(baseURL string, httpc *pkghttp.Client) *Client {
	return &Client{baseURL: baseURL, httpc: httpc}
}

type priceResponse struct {
	Price fixed.Num `json:"price"`
	TS    int64     `json:"ts"`
}

// Price returns the latest quoted price.
func (c *Client) Price(ctx context.Context) (fixed.Num, error) {
	var out priceResponse
	err := c.httpc.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.baseURL + "/v1/price",
	}, &out)
	if err != nil {
		return fixed.Zero(), fmt.Errorf("oracle price: %w", err)
	}
	return out.Price, nil
}

var _ service.PriceOracle = (*Client)(nil)

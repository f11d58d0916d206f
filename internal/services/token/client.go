package token

import (
	"context"
	"fmt"
	"net/url"

	"CarbonPulse/internal/domain/service"
	pkghttp "CarbonPulse/pkg/http"
	"CarbonPulse/pkg/fixed"
)

// Client talks to one external asset token service (credit or currency).
type Client struct {
	name    string
	baseURL string
	httpc   *pkghttp.Client
}

// NewClient creates an asset token client. name labels errors only.
func NewClient(name, baseURL string, httpc *pkghttp.Client) *Client {
	return &Client{name: name, baseURL: baseURL, httpc: httpc}
}

type amountResponse struct {
	Amount fixed.Num `json:"amount"`
}

// BalanceOf returns a participant's token balance.
func (c *Client) BalanceOf(ctx context.Context, participant string) (fixed.Num, error) {
	var out amountResponse
	err := c.httpc.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.baseURL + "/v1/balances/" + url.PathEscape(participant),
	}, &out)
	if err != nil {
		return fixed.Zero(), fmt.Errorf("%s balance %s: %w", c.name, participant, err)
	}
	return out.Amount, nil
}

// Allowance returns how much spender may move on the owner's behalf.
func (c *Client) Allowance(ctx context.Context, owner, spender string) (fixed.Num, error) {
	var out amountResponse
	err := c.httpc.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.baseURL + "/v1/allowances/" + url.PathEscape(owner) + "/" + url.PathEscape(spender),
	}, &out)
	if err != nil {
		return fixed.Zero(), fmt.Errorf("%s allowance %s->%s: %w", c.name, owner, spender, err)
	}
	return out.Amount, nil
}

type transferRequest struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Amount fixed.Num `json:"amount"`
}

type transferResponse struct {
	Success bool `json:"success"`
}

// TransferFrom moves tokens between participants. A non-success response is
// returned as (false, nil) so settlement can distinguish a clean refusal
// from a transport failure; both abort the trade.
func (c *Client) TransferFrom(ctx context.Context, from, to string, amount fixed.Num) (bool, error) {
	var out transferResponse
	err := c.httpc.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    c.baseURL + "/v1/transfers",
		Body:   transferRequest{From: from, To: to, Amount: amount},
	}, &out)
	if err != nil {
		return false, fmt.Errorf("%s transfer %s->%s: %w", c.name, from, to, err)
	}
	return out.Success, nil
}

var _ service.AssetToken = (*Client)(nil)

package fluxpay

import (
	"context"
	"fmt"
	"net/http"
)

const defaultCurrency = "USD"

func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	r, err := newRequest(http.MethodGet, "/accounts", nil)
	if err != nil {
		return nil, err
	}
	var out []Account
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Account(ctx context.Context, id int64) (*Account, error) {
	r, err := newRequest(http.MethodGet, fmt.Sprintf("/accounts/%d", id), nil)
	if err != nil {
		return nil, err
	}
	var out Account
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAccount opens an account. An empty currency means USD.
func (c *Client) CreateAccount(ctx context.Context, name, currency string) (*Account, error) {
	if currency == "" {
		currency = defaultCurrency
	}
	r, err := newRequest(http.MethodPost, "/accounts", map[string]string{
		"accountName": name,
		"currency":    currency,
	})
	if err != nil {
		return nil, err
	}
	var out Account
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAccountStatus asks the backend to move an account to status. Whether
// the transition is allowed is the backend's call.
func (c *Client) UpdateAccountStatus(ctx context.Context, id int64, status AccountStatus) (*Account, error) {
	r, err := newRequest(http.MethodPatch, fmt.Sprintf("/accounts/%d/status", id), map[string]AccountStatus{
		"status": status,
	})
	if err != nil {
		return nil, err
	}
	var out Account
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

package fluxpay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Summaries returns the per-day totals of an account between from and to,
// both inclusive, oldest first.
func (c *Client) Summaries(ctx context.Context, accountID int64, from, to Date) ([]DailySummary, error) {
	if to.Before(from.Time) {
		return nil, fmt.Errorf("summary range ends (%s) before it starts (%s)", to, from)
	}

	r, err := newRequest(http.MethodGet, fmt.Sprintf("/accounts/%d/summaries", accountID), nil)
	if err != nil {
		return nil, err
	}
	r.query = url.Values{
		"from": {from.String()},
		"to":   {to.String()},
	}

	var out []DailySummary
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return out, nil
}

package fluxpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fluxpay/fluxpay-cli/session"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// refresher performs refresh exchanges, one at a time.
type refresher struct {
	store   *session.Store
	doer    Doer
	url     string
	timeout time.Duration
	log     logrus.FieldLogger

	onRefreshed func()
	onExpired   func(error)

	group singleflight.Group
}

// refresh makes sure the store holds a pair newer than stale, the access token
// a request was rejected with. Callers rejected with the same token while an
// exchange is in flight wait for its result instead of starting their own;
// callers holding an older token find the store already rotated.
func (r *refresher) refresh(ctx context.Context, stale string) error {
	_, err, _ := r.group.Do("refresh:"+stale, func() (any, error) {
		if current, ok := r.store.AccessToken(); ok && current != stale {
			// rotated by an exchange that finished after this request was sent
			return nil, nil
		}
		// the exchange outlives any one waiter's cancellation
		return nil, r.exchange(context.WithoutCancel(ctx))
	})
	return err
}

func (r *refresher) exchange(ctx context.Context) error {
	refreshToken, ok := r.store.RefreshToken()
	if !ok {
		return ErrSessionExpired
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pair, err := r.requestPair(ctx, refreshToken)
	if err != nil {
		r.store.ClearTokens()
		err = fmt.Errorf("%w: %w", ErrSessionExpired, err)
		r.log.WithError(err).Warn("token refresh failed, session cleared")
		if r.onExpired != nil {
			r.onExpired(err)
		}
		return err
	}

	r.store.SetTokens(pair.AccessToken, pair.RefreshToken)
	r.log.Debug("token refreshed")
	if r.onRefreshed != nil {
		r.onRefreshed()
	}
	return nil
}

func (r *refresher) requestPair(ctx context.Context, refreshToken string) (*TokenPair, error) {
	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &oauth2.RetrieveError{Response: resp, Body: body}
	}

	var pair TokenPair
	if err := json.Unmarshal(body, &pair); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if pair.AccessToken == "" {
		return nil, errors.New("invalid token response: accessToken is empty")
	}

	// A server that does not rotate refresh tokens leaves the old one valid.
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return &pair, nil
}

// Package fluxpay is a client for the FluxPay ledger API.
//
// Every call goes through one pipeline: the held access token is attached as a
// bearer credential, the request is sent, and a 401 is answered with at most
// one refresh exchange followed by at most one resend of the same request.
// Concurrent 401s share a single refresh exchange.
package fluxpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fluxpay/fluxpay-cli/session"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultRefreshTimeout = 10 * time.Second

// Doer sends a single HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the ledger API on behalf of the session held in its store.
// It is safe for concurrent use.
type Client struct {
	baseURL string
	store   *session.Store
	http    Doer
	reads   Doer
	log     logrus.FieldLogger
	newKey  func() string

	refreshTimeout   time.Duration
	onRefreshed      func()
	onSessionExpired func(error)

	refresher *refresher
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the transport used for every request, including the
// refresh exchange.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithReadClient sets a separate transport for GET requests, typically one
// that retries rate-limited reads. Writes never go through it.
func WithReadClient(d Doer) Option {
	return func(c *Client) { c.reads = d }
}

// WithLogger sets the logger for refresh and transport events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// WithRefreshTimeout bounds a single refresh exchange.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithIdempotencyKeys replaces the UUIDv4 key generator.
func WithIdempotencyKeys(gen func() string) Option {
	return func(c *Client) { c.newKey = gen }
}

// OnRefreshed is called after a successful refresh exchange.
func OnRefreshed(fn func()) Option {
	return func(c *Client) { c.onRefreshed = fn }
}

// OnSessionExpired is called once per failed refresh exchange, after the store
// has been cleared. It is where a caller sends the user back to sign in.
func OnSessionExpired(fn func(error)) Option {
	return func(c *Client) { c.onSessionExpired = fn }
}

// New creates a Client for the API rooted at baseURL (e.g.
// "http://localhost:8080/api").
func New(baseURL string, store *session.Store, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL scheme must be http or https, got: %q", u.Scheme)
	}
	if store == nil {
		store = session.NewStore()
	}

	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		store:          store,
		http:           http.DefaultClient,
		log:            logrus.StandardLogger(),
		newKey:         uuid.NewString,
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.refresher = &refresher{
		store:       c.store,
		doer:        c.http,
		url:         c.baseURL + "/auth/refresh",
		timeout:     c.refreshTimeout,
		log:         c.log,
		onRefreshed: c.onRefreshed,
		onExpired:   c.onSessionExpired,
	}
	return c, nil
}

// Session returns the store backing this client.
func (c *Client) Session() *session.Store {
	return c.store
}

// NewIdempotencyKey returns a fresh key for one money-movement submission.
func (c *Client) NewIdempotencyKey() string {
	return c.newKey()
}

// request describes one logical API call. body is encoded once so a resend
// carries the exact same bytes.
type request struct {
	method string
	path   string
	query  url.Values
	body   []byte
	accept string

	// anonymous requests are sent without refresh handling: a 401 from a
	// sign-in endpoint means bad credentials, not an expired session.
	anonymous bool
}

func newRequest(method, path string, payload any) (*request, error) {
	r := &request{method: method, path: path}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s %s: %w", method, path, err)
		}
		r.body = data
	}
	return r, nil
}

func (c *Client) httpRequest(ctx context.Context, r *request) (*http.Request, error) {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	accept := r.accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	return req, nil
}

// attachAuth sets the bearer credential if a token is held and returns the
// token it used ("" when the request goes out unauthenticated).
func (c *Client) attachAuth(req *http.Request) string {
	tok, ok := c.store.Token()
	if !ok {
		return ""
	}
	tok.SetAuthHeader(req)
	return tok.AccessToken
}

func (c *Client) transport(method string) Doer {
	if method == http.MethodGet && c.reads != nil {
		return c.reads
	}
	return c.http
}

// send runs the attach-send-recover pipeline for r. On success the caller
// owns the response body.
func (c *Client) send(ctx context.Context, r *request) (*http.Response, error) {
	retried := false
	for {
		req, err := c.httpRequest(ctx, r)
		if err != nil {
			return nil, err
		}
		sentWith := c.attachAuth(req)

		resp, err := c.transport(r.method).Do(req)

		_, hasRefresh := c.store.RefreshToken()
		canRefresh := !r.anonymous && !retried && hasRefresh

		switch classify(resp, err, canRefresh) {
		case OutcomeOK:
			return resp, nil

		case OutcomeAuthExpired:
			drain(resp)
			retried = true
			c.log.WithFields(logrus.Fields{
				"method": r.method,
				"path":   r.path,
			}).Debug("access token rejected, refreshing")

			if err := c.refresher.refresh(ctx, sentWith); err != nil {
				return nil, err
			}

		case OutcomeAuthRevoked, OutcomeDomain:
			return nil, decodeAPIError(resp)

		case OutcomeTransport:
			return nil, &TransportError{Method: r.method, Path: r.path, Err: err}
		}
	}
}

// do sends r and decodes a JSON answer into out (which may be nil).
func (c *Client) do(ctx context.Context, r *request, out any) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s %s response: %w", r.method, r.path, err)
	}
	return nil
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

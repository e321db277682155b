package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/sirupsen/logrus"

	"github.com/fluxpay/fluxpay-cli/fluxpay"
	"github.com/fluxpay/fluxpay-cli/session"
	"github.com/fluxpay/fluxpay-cli/tui"
)

var errNotSignedIn = errors.New("not signed in: run login first")

// errNoCredentials is returned when a command needs a session and no email or
// password was configured.
var errNoCredentials = errors.New(
	"no credentials: set FLUXPAY_EMAIL and FLUXPAY_PASSWORD or pass -email and -password",
)

// app ties one session to one displayer for the life of the process.
type app struct {
	cfg    *Config
	client *fluxpay.Client
	store  *session.Store
	d      tui.Displayer
	log    logrus.FieldLogger
}

// retryDoer adapts the retrying client to fluxpay.Doer.
type retryDoer struct {
	c *retry.Client
}

func (r retryDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := r.c.DoWithContext(req.Context(), req)
	// Retries exhausted on a status: hand the last response back so it is
	// classified like any other answer from the server.
	var retryErr *retry.RetryError
	if errors.As(err, &retryErr) && retryErr.LastErr == nil && resp != nil {
		return resp, nil
	}
	if err != nil && resp != nil && resp.Body != nil {
		resp.Body.Close()
		resp = nil
	}
	return resp, err
}

// rateLimited retries only reads the server turned away with 429. Server
// errors and transport failures reach the caller on the first attempt.
func rateLimited(err error, resp *http.Response) bool {
	return err == nil && resp != nil && resp.StatusCode == http.StatusTooManyRequests
}

// newReadClient builds the retrying transport for GET requests. Its log
// output goes through logger.
func newReadClient(base *http.Client, logger logrus.FieldLogger, opts ...retry.Option) (*retry.Client, error) {
	defaults := []retry.Option{
		retry.WithHTTPClient(base),
		retry.WithMaxRetries(3),
		retry.WithRetryableChecker(rateLimited),
		retry.WithRespectRetryAfter(true),
		retry.WithLogger(retryLogger{log: logger}),
	}
	return retry.NewRateLimitedClient(append(defaults, opts...)...)
}

// retryLogger forwards go-httpretry's key/value logging to logrus.
type retryLogger struct {
	log logrus.FieldLogger
}

func (l retryLogger) Debug(msg string, args ...any) { l.entry(args).Debug(msg) }
func (l retryLogger) Info(msg string, args ...any)  { l.entry(args).Info(msg) }
func (l retryLogger) Warn(msg string, args ...any)  { l.entry(args).Warn(msg) }
func (l retryLogger) Error(msg string, args ...any) { l.entry(args).Error(msg) }

func (l retryLogger) entry(args []any) *logrus.Entry {
	return l.log.WithFields(retryFields(args))
}

// retryFields turns alternating key/value arguments into logrus fields. A
// dangling value is kept under "!BADKEY", as slog does.
func retryFields(args []any) logrus.Fields {
	fields := logrus.Fields{"component": "retry"}
	for i := 0; i < len(args); {
		key, ok := args[i].(string)
		if !ok || i+1 == len(args) {
			fields["!BADKEY"] = args[i]
			i++
			continue
		}
		fields[key] = args[i+1]
		i += 2
	}
	return fields
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			DisableKeepAlives:   false,
		},
	}
}

func newApp(cfg *Config, logger logrus.FieldLogger, d tui.Displayer) (*app, error) {
	base := newHTTPClient(cfg.RequestTimeout)

	opts := []fluxpay.Option{
		fluxpay.WithHTTPClient(base),
		fluxpay.WithLogger(logger),
		fluxpay.WithRefreshTimeout(cfg.RefreshTimeout),
		fluxpay.OnRefreshed(d.SessionRefreshed),
		fluxpay.OnSessionExpired(d.SessionExpired),
	}

	if cfg.RetryReads {
		// Only GETs go through go-httpretry, and only 429s are retried.
		retryClient, err := newReadClient(base, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create retry client: %w", err)
		}
		opts = append(opts, fluxpay.WithReadClient(retryDoer{c: retryClient}))
	}

	store := session.NewStore()
	client, err := fluxpay.New(cfg.ServerURL, store, opts...)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		client: client,
		store:  store,
		d:      d,
		log:    logger,
	}, nil
}

func (a *app) signedIn() bool {
	return a.store.View().IsAuthenticated
}

// signIn logs in with the given credentials, falling back to the configured
// ones.
func (a *app) signIn(ctx context.Context, email, password string) error {
	if email == "" {
		email = a.cfg.Email
	}
	if password == "" {
		password = a.cfg.Password
	}
	if email == "" || password == "" {
		return errNoCredentials
	}

	a.d.SigningIn(email)
	if _, err := a.client.Login(ctx, email, password); err != nil {
		return err
	}
	a.d.SignedIn(a.store.View())
	return nil
}

func (a *app) register(ctx context.Context, email, password, fullName string) error {
	a.d.SigningIn(email)
	if _, err := a.client.Register(ctx, email, password, fullName); err != nil {
		return err
	}
	a.d.SignedIn(a.store.View())
	return nil
}

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/fluxpay/fluxpay-cli/fluxpay"
	"github.com/fluxpay/fluxpay-cli/session"
	"github.com/fluxpay/fluxpay-cli/tui"
)

// fakeLedger accepts one access token at a time. expireAccess makes the
// current token stale; the refresh endpoint then hands out the next one.
type fakeLedger struct {
	server *httptest.Server

	mu            sync.Mutex
	access        string
	generation    int
	refreshBroken bool
	depositKeys   []string
}

func newFakeLedger(t *testing.T) *fakeLedger {
	t.Helper()

	l := &fakeLedger{}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", l.handleLogin)
		r.Post("/auth/refresh", l.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(l.requireAuth)
			r.Get("/accounts", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, []fluxpay.Account{
					{ID: 1, AccountName: "Main", Currency: "USD", Status: fluxpay.AccountActive},
				})
			})
			r.Post("/transactions/deposit", func(w http.ResponseWriter, r *http.Request) {
				var body struct {
					IdempotencyKey string `json:"idempotencyKey"`
				}
				_ = json.NewDecoder(r.Body).Decode(&body)
				l.mu.Lock()
				l.depositKeys = append(l.depositKeys, body.IdempotencyKey)
				l.mu.Unlock()
				writeJSON(w, http.StatusOK, fluxpay.Transaction{ID: 5, Type: fluxpay.Credit, Status: fluxpay.TxCompleted})
			})
			r.Get("/transactions/export", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/csv")
				_, _ = w.Write([]byte("id,type,amount\n5,CREDIT,10.00\n"))
			})
		})
	})

	l.server = httptest.NewServer(r)
	t.Cleanup(l.server.Close)
	return l
}

func (l *fakeLedger) URL() string { return l.server.URL + "/api" }

func (l *fakeLedger) token() string {
	return "access-" + string(rune('0'+l.generation))
}

func (l *fakeLedger) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds map[string]string
	_ = json.NewDecoder(r.Body).Decode(&creds)
	if creds["password"] != "secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": 401, "message": "Invalid email or password"})
		return
	}

	l.mu.Lock()
	l.generation++
	l.access = l.token()
	access := l.access
	l.mu.Unlock()

	writeJSON(w, http.StatusOK, fluxpay.AuthResponse{
		AccessToken:  access,
		RefreshToken: "refresh",
		UserID:       1,
		Email:        creds["email"],
		FullName:     "Ada Lovelace",
	})
}

func (l *fakeLedger) handleRefresh(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refreshBroken {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": 401, "message": "Invalid refresh token"})
		return
	}
	l.access = l.token()
	writeJSON(w, http.StatusOK, fluxpay.TokenPair{AccessToken: l.access, RefreshToken: "refresh"})
}

func (l *fakeLedger) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		ok := l.access != "" && r.Header.Get("Authorization") == "Bearer "+l.access
		l.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"status": 401, "message": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// expireAccess rejects the current access token from now on.
func (l *fakeLedger) expireAccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.generation++
	l.access = "rotated-away"
}

func (l *fakeLedger) breakRefresh() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refreshBroken = true
}

func (l *fakeLedger) keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.depositKeys...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// recorder captures the events a command reports.
type recorder struct {
	tui.NoopDisplayer

	mu        sync.Mutex
	events    []string
	accounts  []fluxpay.Account
	postedKey string
	failures  []error
	exported  string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) SignedIn(session.View) { r.add("signed-in") }
func (r *recorder) SignedOut()            { r.add("signed-out") }
func (r *recorder) SessionRefreshed()     { r.add("refreshed") }
func (r *recorder) SessionExpired(error)  { r.add("expired") }

func (r *recorder) Accounts(accounts []fluxpay.Account) {
	r.mu.Lock()
	r.accounts = accounts
	r.mu.Unlock()
	r.add("accounts")
}

func (r *recorder) Posted(_ fluxpay.Transaction, key string) {
	r.mu.Lock()
	r.postedKey = key
	r.mu.Unlock()
	r.add("posted")
}

func (r *recorder) Exported(path string, _ int) {
	r.mu.Lock()
	r.exported = path
	r.mu.Unlock()
	r.add("exported")
}

func (r *recorder) Failed(_ string, err error) {
	r.mu.Lock()
	r.failures = append(r.failures, err)
	r.mu.Unlock()
	r.add("failed")
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newTestApp(t *testing.T, serverURL string, d tui.Displayer) *app {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	a, err := newApp(&Config{
		ServerURL:  serverURL,
		Email:      "ada@example.com",
		Password:   "secret",
		RetryReads: false,
	}, logger, d)
	require.NoError(t, err)
	return a
}

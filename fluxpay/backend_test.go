package fluxpay

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/fluxpay/fluxpay-cli/session"
)

// seenRequest is what the fake backend recorded about one protected call.
type seenRequest struct {
	Path          string
	Authorization string
	Body          string
}

// fakeBackend imitates the ledger API closely enough to drive the auth
// pipeline: one access token is accepted at a time, and the refresh endpoint
// hands out the next pair.
type fakeBackend struct {
	t      *testing.T
	server *httptest.Server

	mu           sync.Mutex
	access       string
	refresh      string
	next         TokenPair
	refreshFails bool
	rejectAll    bool
	refreshDelay time.Duration
	seen         []seenRequest

	refreshCalls atomic.Int32
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{t: t}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", b.handleLogin)
		r.Post("/auth/register", b.handleLogin)
		r.Post("/auth/refresh", b.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(b.requireAuth)
			r.Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, Profile{ID: 1, Email: "ann@example.com", FullName: "Ann Lee"})
			})
			r.Get("/accounts", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, []Account{{ID: 1, AccountName: "Main", Currency: "USD", Status: AccountActive}})
			})
			r.Post("/transactions/transfer", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, TransferResult{CorrelationID: "corr-1"})
			})
			r.Post("/transactions/deposit", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, Transaction{ID: 9, Type: Credit, Status: TxCompleted})
			})
		})
	})

	b.server = httptest.NewServer(r)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) URL() string { return b.server.URL + "/api" }

func (b *fakeBackend) setAccess(access, refresh string, next TokenPair) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = access
	b.refresh = refresh
	b.next = next
}

func (b *fakeBackend) requests() []seenRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]seenRequest(nil), b.seen...)
}

func (b *fakeBackend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		b.mu.Lock()
		b.seen = append(b.seen, seenRequest{
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			Body:          string(body),
		})
		ok := !b.rejectAll && b.access != "" && r.Header.Get("Authorization") == "Bearer "+b.access
		b.mu.Unlock()

		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"status": 401, "message": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds map[string]string
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": 400, "message": "Validation failed"})
		return
	}
	if creds["password"] != "secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": 401, "message": "Invalid email or password"})
		return
	}

	b.mu.Lock()
	b.access, b.refresh = "A1", "R1"
	b.mu.Unlock()

	fullName := creds["fullName"]
	if fullName == "" {
		fullName = "Ann Lee"
	}
	writeJSON(w, http.StatusOK, AuthResponse{
		AccessToken:  "A1",
		RefreshToken: "R1",
		UserID:       1,
		Email:        creds["email"],
		FullName:     fullName,
	})
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	delay := b.refreshDelay
	fails := b.refreshFails || req.RefreshToken != b.refresh
	next := b.next
	if !fails {
		b.access = next.AccessToken
		if next.RefreshToken != "" {
			b.refresh = next.RefreshToken
		}
	}
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fails {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": 401, "message": "Invalid refresh token"})
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestClient(t *testing.T, baseURL string, store *session.Store, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	c, err := New(baseURL, store, opts...)
	require.NoError(t, err)
	return c
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

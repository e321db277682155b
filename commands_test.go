package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxpay/fluxpay-cli/fluxpay"
)

func TestRunOnce_SignsInWithConfiguredCredentials(t *testing.T) {
	ledger := newFakeLedger(t)
	rec := &recorder{}
	a := newTestApp(t, ledger.URL(), rec)

	require.NoError(t, a.runOnce(context.Background(), []string{"accounts"}))

	assert.Equal(t, []string{"signed-in", "accounts"}, rec.seen())
	require.Len(t, rec.accounts, 1)
	assert.Equal(t, "Main", rec.accounts[0].AccountName)
}

func TestRunOnce_NoCredentials(t *testing.T) {
	ledger := newFakeLedger(t)
	rec := &recorder{}
	a := newTestApp(t, ledger.URL(), rec)
	a.cfg.Password = ""

	err := a.runOnce(context.Background(), []string{"accounts"})
	require.ErrorIs(t, err, errNoCredentials)
	assert.Equal(t, []string{"failed"}, rec.seen())
}

func TestRunOnce_BadCredentials(t *testing.T) {
	ledger := newFakeLedger(t)
	rec := &recorder{}
	a := newTestApp(t, ledger.URL(), rec)
	a.cfg.Password = "wrong"

	err := a.runOnce(context.Background(), []string{"accounts"})

	var apiErr *fluxpay.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid email or password", apiErr.Message)
	assert.NotContains(t, rec.seen(), "refreshed")
}

func TestDeposit_KeyStableAcrossRefresh(t *testing.T) {
	ledger := newFakeLedger(t)
	rec := &recorder{}
	a := newTestApp(t, ledger.URL(), rec)
	ctx := context.Background()

	require.NoError(t, a.execute(ctx, []string{"login"}))
	ledger.expireAccess()

	require.NoError(t, a.execute(ctx, []string{"deposit", "1", "25.50", "june", "salary"}))

	keys := ledger.keys()
	require.Len(t, keys, 1, "only the resend reaches the handler")
	assert.Equal(t, keys[0], rec.postedKey)
	assert.Contains(t, rec.seen(), "refreshed")
}

func TestShell_SessionExpiryReturnsToSignedOut(t *testing.T) {
	ledger := newFakeLedger(t)
	rec := &recorder{}
	a := newTestApp(t, ledger.URL(), rec)
	a.cfg.Email, a.cfg.Password = "", ""

	script := strings.Join([]string{
		"login ada@example.com secret",
		"accounts",
		"# token goes stale here",
	}, "\n")
	require.NoError(t, a.shell(context.Background(), strings.NewReader(script), nil))
	require.True(t, a.signedIn())

	ledger.expireAccess()
	ledger.breakRefresh()

	err := a.shell(context.Background(), strings.NewReader("deposit 1 10\naccounts\n"), nil)
	require.ErrorIs(t, err, errNotSignedIn)
	assert.False(t, a.signedIn())

	events := rec.seen()
	assert.Equal(t, []string{"signed-in", "accounts", "expired", "failed", "failed"}, events)
	require.Len(t, rec.failures, 2)
	assert.ErrorIs(t, rec.failures[0], fluxpay.ErrSessionExpired)
	assert.Empty(t, ledger.keys())
}

func TestShell_QuitStopsReading(t *testing.T) {
	ledger := newFakeLedger(t)
	rec := &recorder{}
	a := newTestApp(t, ledger.URL(), rec)

	err := a.shell(context.Background(), strings.NewReader("quit\naccounts\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"signed-in"}, rec.seen())
}

func TestLogout(t *testing.T) {
	ledger := newFakeLedger(t)
	rec := &recorder{}
	a := newTestApp(t, ledger.URL(), rec)
	ctx := context.Background()

	require.NoError(t, a.execute(ctx, []string{"login"}))
	require.NoError(t, a.execute(ctx, []string{"logout"}))
	assert.False(t, a.signedIn())
	require.ErrorIs(t, a.execute(ctx, []string{"accounts"}), errNotSignedIn)
}

func TestExport_WritesFile(t *testing.T) {
	ledger := newFakeLedger(t)
	rec := &recorder{}
	a := newTestApp(t, ledger.URL(), rec)

	path := filepath.Join(t.TempDir(), "out", "history.csv")
	require.NoError(t, a.runOnce(context.Background(), []string{"export", "1", path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,type,amount\n5,CREDIT,10.00\n", string(data))
	assert.Equal(t, path, rec.exported)

	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestExecute_ArgumentErrors(t *testing.T) {
	ledger := newFakeLedger(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown command", []string{"bogus"}, `unknown command "bogus"`},
		{"missing amount", []string{"deposit", "1"}, "usage: deposit <id> <amount> [description]"},
		{"too many args", []string{"account", "1", "2"}, "usage: account <id>"},
		{"bad id", []string{"account", "abc"}, `invalid account id "abc"`},
		{"negative amount", []string{"withdraw", "1", "-5"}, "amount must be positive"},
		{"same account", []string{"transfer", "2", "2", "5"}, "must differ"},
		{"bad status", []string{"status", "1", "LOCKED"}, "unknown account status"},
		{"bad date", []string{"summaries", "1", "2024-13-01", "2024-12-31"}, "invalid date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			a := newTestApp(t, ledger.URL(), rec)
			require.NoError(t, a.execute(ctx, []string{"login"}))

			err := a.execute(ctx, tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, ledger.keys())
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "10", want: "10"},
		{in: "25.5", want: "25.5"},
		{in: "0.01", want: "0.01"},
		{in: "1.230", want: "1.23"},
		{in: "0", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "1.001", wantErr: true},
		{in: "ten", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), got.String())
		})
	}
}

func TestHistoryFilter(t *testing.T) {
	f, err := historyFilter([]string{"7"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), f.AccountID)
	assert.Equal(t, 0, f.Page)
	assert.Equal(t, defaultPageSize, f.Size)
	assert.Equal(t, "desc", f.SortDir)

	f, err = historyFilter([]string{"7", "3", "50"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, 50, f.Size)

	_, err = historyFilter([]string{"7", "0"})
	require.Error(t, err)
	_, err = historyFilter([]string{"7", "1", "500"})
	require.Error(t, err)
}

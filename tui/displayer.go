package tui

import (
	"fmt"
	"io"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/fluxpay/fluxpay-cli/fluxpay"
	"github.com/fluxpay/fluxpay-cli/session"
)

// Displayer abstracts all output of the ledger client.
type Displayer interface {
	Banner(server string)
	SigningIn(email string)
	SignedIn(v session.View)
	SignedOut()
	SessionRefreshed()
	SessionExpired(err error)
	Working(action string)
	Profile(p fluxpay.Profile, expiresIn time.Duration)
	Accounts(accounts []fluxpay.Account)
	Account(a fluxpay.Account)
	History(page fluxpay.Page[fluxpay.Transaction])
	Posted(tx fluxpay.Transaction, idempotencyKey string)
	Transferred(res fluxpay.TransferResult, idempotencyKey string)
	Summaries(days []fluxpay.DailySummary)
	Exported(path string, bytes int)
	Failed(action string, err error)
}

// failureMessage is what a user sees for err: the backend's own message when
// it sent one, a generic line otherwise.
func failureMessage(action string, err error) string {
	return fluxpay.ErrorMessage(err, fmt.Sprintf("%s failed: %v", action, err))
}

// PlainDisplayer writes plain text output to w.
// Used when stderr is not a TTY (pipes, CI, SSH without pty) and in the shell.
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner(server string) {
	fmt.Fprintln(p.w, "=== FluxPay ledger client ===")
	fmt.Fprintf(p.w, "Server: %s\n\n", server)
}

func (p *PlainDisplayer) SigningIn(email string) {
	fmt.Fprintf(p.w, "Signing in as %s...\n", email)
}

func (p *PlainDisplayer) SignedIn(v session.View) {
	fmt.Fprintf(p.w, "Signed in as %s <%s>\n", v.FullName, v.Email)
}

func (p *PlainDisplayer) SignedOut() {
	fmt.Fprintln(p.w, "Signed out.")
}

func (p *PlainDisplayer) SessionRefreshed() {
	fmt.Fprintln(p.w, "Access token expired, session refreshed.")
}

func (p *PlainDisplayer) SessionExpired(err error) {
	fmt.Fprintf(p.w, "Session expired: %v\n", err)
	fmt.Fprintln(p.w, "Please sign in again (login).")
}

func (p *PlainDisplayer) Working(string) {}

func (p *PlainDisplayer) Profile(pr fluxpay.Profile, expiresIn time.Duration) {
	fmt.Fprint(p.w, renderProfile(pr, expiresIn))
}

func (p *PlainDisplayer) Accounts(accounts []fluxpay.Account) {
	fmt.Fprint(p.w, renderAccounts(accounts))
}

func (p *PlainDisplayer) Account(a fluxpay.Account) {
	fmt.Fprint(p.w, renderAccount(a))
}

func (p *PlainDisplayer) History(page fluxpay.Page[fluxpay.Transaction]) {
	fmt.Fprint(p.w, renderHistory(page))
}

func (p *PlainDisplayer) Posted(tx fluxpay.Transaction, idempotencyKey string) {
	fmt.Fprintf(p.w, "%s of %s %s (transaction #%d, key %s)\n",
		tx.Type, tx.Amount.StringFixed(2), tx.Status, tx.ID, idempotencyKey)
	fmt.Fprintf(p.w, "Balance after: %s\n", tx.BalanceAfter.StringFixed(2))
}

func (p *PlainDisplayer) Transferred(res fluxpay.TransferResult, idempotencyKey string) {
	fmt.Fprintf(p.w, "Transfer %s completed (key %s)\n", res.CorrelationID, idempotencyKey)
	fmt.Fprintf(p.w, "  from #%d: -%s, balance %s\n",
		res.Debit.AccountID, res.Debit.Amount.StringFixed(2), res.Debit.BalanceAfter.StringFixed(2))
	fmt.Fprintf(p.w, "  to   #%d: +%s, balance %s\n",
		res.Credit.AccountID, res.Credit.Amount.StringFixed(2), res.Credit.BalanceAfter.StringFixed(2))
}

func (p *PlainDisplayer) Summaries(days []fluxpay.DailySummary) {
	fmt.Fprint(p.w, renderSummaries(days))
}

func (p *PlainDisplayer) Exported(path string, bytes int) {
	fmt.Fprintf(p.w, "Exported %d bytes to %s\n", bytes, path)
}

func (p *PlainDisplayer) Failed(action string, err error) {
	fmt.Fprintf(p.w, "Error: %s\n", failureMessage(action, err))
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner(string)                              {}
func (NoopDisplayer) SigningIn(string)                           {}
func (NoopDisplayer) SignedIn(session.View)                      {}
func (NoopDisplayer) SignedOut()                                 {}
func (NoopDisplayer) SessionRefreshed()                          {}
func (NoopDisplayer) SessionExpired(error)                       {}
func (NoopDisplayer) Working(string)                             {}
func (NoopDisplayer) Profile(fluxpay.Profile, time.Duration)     {}
func (NoopDisplayer) Accounts([]fluxpay.Account)                 {}
func (NoopDisplayer) Account(fluxpay.Account)                    {}
func (NoopDisplayer) History(fluxpay.Page[fluxpay.Transaction])  {}
func (NoopDisplayer) Posted(fluxpay.Transaction, string)         {}
func (NoopDisplayer) Transferred(fluxpay.TransferResult, string) {}
func (NoopDisplayer) Summaries([]fluxpay.DailySummary)           {}
func (NoopDisplayer) Exported(string, int)                       {}
func (NoopDisplayer) Failed(string, error)                       {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner(server string) {
	t.p.Send(MsgBanner{Server: server})
}

func (t *ProgramDisplayer) SigningIn(email string) {
	t.p.Send(MsgSigningIn{Email: email})
}

func (t *ProgramDisplayer) SignedIn(v session.View) {
	t.p.Send(MsgSignedIn{View: v})
}

func (t *ProgramDisplayer) SignedOut() {
	t.p.Send(MsgSignedOut{})
}

func (t *ProgramDisplayer) SessionRefreshed() {
	t.p.Send(MsgSessionRefreshed{})
}

func (t *ProgramDisplayer) SessionExpired(err error) {
	t.p.Send(MsgSessionExpired{Err: err})
}

func (t *ProgramDisplayer) Working(action string) {
	t.p.Send(MsgWorking{Action: action})
}

func (t *ProgramDisplayer) Profile(p fluxpay.Profile, expiresIn time.Duration) {
	t.p.Send(MsgProfile{Profile: p, ExpiresIn: expiresIn})
}

func (t *ProgramDisplayer) Accounts(accounts []fluxpay.Account) {
	t.p.Send(MsgAccounts{Accounts: accounts})
}

func (t *ProgramDisplayer) Account(a fluxpay.Account) {
	t.p.Send(MsgAccount{Account: a})
}

func (t *ProgramDisplayer) History(page fluxpay.Page[fluxpay.Transaction]) {
	t.p.Send(MsgHistory{Page: page})
}

func (t *ProgramDisplayer) Posted(tx fluxpay.Transaction, idempotencyKey string) {
	t.p.Send(MsgPosted{Transaction: tx, IdempotencyKey: idempotencyKey})
}

func (t *ProgramDisplayer) Transferred(res fluxpay.TransferResult, idempotencyKey string) {
	t.p.Send(MsgTransferred{Result: res, IdempotencyKey: idempotencyKey})
}

func (t *ProgramDisplayer) Summaries(days []fluxpay.DailySummary) {
	t.p.Send(MsgSummaries{Days: days})
}

func (t *ProgramDisplayer) Exported(path string, bytes int) {
	t.p.Send(MsgExported{Path: path, Bytes: bytes})
}

func (t *ProgramDisplayer) Failed(action string, err error) {
	t.p.Send(MsgFailed{Action: action, Message: failureMessage(action, err), Err: err})
}

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fluxpay/fluxpay-cli/fluxpay"
	"github.com/fluxpay/fluxpay-cli/session"
)

const defaultPageSize = 20

// command is one verb of the CLI and the shell.
type command struct {
	name    string
	usage   string
	help    string
	minArgs int
	// maxArgs < 0 lets the last argument absorb the rest of the line.
	maxArgs int
	// public commands run without a session.
	public bool
	run    func(a *app, ctx context.Context, args []string) error
}

var commands = []command{
	{name: "login", usage: "login [email password]", help: "Sign in", maxArgs: 2, public: true, run: (*app).cmdLogin},
	{name: "register", usage: "register <email> <password> <full name>", help: "Create a user and sign in", minArgs: 3, maxArgs: -1, public: true, run: (*app).cmdRegister},
	{name: "logout", usage: "logout", help: "Forget the session", public: true, run: (*app).cmdLogout},
	{name: "whoami", usage: "whoami", help: "Show the signed-in user", run: (*app).cmdWhoami},
	{name: "accounts", usage: "accounts", help: "List accounts", run: (*app).cmdAccounts},
	{name: "account", usage: "account <id>", help: "Show one account", minArgs: 1, maxArgs: 1, run: (*app).cmdAccount},
	{name: "open", usage: "open <name> [currency]", help: "Open an account (default USD)", minArgs: 1, maxArgs: 2, run: (*app).cmdOpen},
	{name: "status", usage: "status <id> <ACTIVE|FROZEN|CLOSED>", help: "Change an account's status", minArgs: 2, maxArgs: 2, run: (*app).cmdStatus},
	{name: "history", usage: "history <id> [page] [size]", help: "List transactions, newest first", minArgs: 1, maxArgs: 3, run: (*app).cmdHistory},
	{name: "deposit", usage: "deposit <id> <amount> [description]", help: "Credit an account", minArgs: 2, maxArgs: -1, run: (*app).cmdDeposit},
	{name: "withdraw", usage: "withdraw <id> <amount> [description]", help: "Debit an account", minArgs: 2, maxArgs: -1, run: (*app).cmdWithdraw},
	{name: "transfer", usage: "transfer <from> <to> <amount> [description]", help: "Move money between accounts", minArgs: 3, maxArgs: -1, run: (*app).cmdTransfer},
	{name: "summaries", usage: "summaries <id> <from> <to>", help: "Daily totals, dates as YYYY-MM-DD", minArgs: 3, maxArgs: 3, run: (*app).cmdSummaries},
	{name: "export", usage: "export <id> <file>", help: "Write the history as CSV", minArgs: 2, maxArgs: 2, run: (*app).cmdExport},
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// execute runs one command line. Failures are reported through the
// displayer and returned.
func (a *app) execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}

	cmd, ok := lookupCommand(strings.ToLower(args[0]))
	if !ok {
		err := fmt.Errorf("unknown command %q", args[0])
		a.d.Failed(args[0], err)
		return err
	}

	rest := args[1:]
	if len(rest) < cmd.minArgs || (cmd.maxArgs >= 0 && len(rest) > cmd.maxArgs) {
		err := fmt.Errorf("usage: %s", cmd.usage)
		a.d.Failed(cmd.name, err)
		return err
	}

	if !cmd.public && !a.signedIn() {
		a.d.Failed(cmd.name, errNotSignedIn)
		return errNotSignedIn
	}

	if err := cmd.run(a, ctx, rest); err != nil {
		a.log.WithError(err).WithField("command", cmd.name).Debug("command failed")
		a.d.Failed(cmd.name, err)
		return err
	}
	return nil
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	var email, password string
	if len(args) == 2 {
		email, password = args[0], args[1]
	} else if len(args) == 1 {
		return errors.New("usage: login [email password]")
	}
	return a.signIn(ctx, email, password)
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	return a.register(ctx, args[0], args[1], strings.Join(args[2:], " "))
}

func (a *app) cmdLogout(context.Context, []string) error {
	a.client.Logout()
	a.d.SignedOut()
	return nil
}

func (a *app) cmdWhoami(ctx context.Context, _ []string) error {
	a.d.Working("Loading profile")
	p, err := a.client.Me(ctx)
	if err != nil {
		return err
	}

	var expiresIn time.Duration
	if token, ok := a.store.AccessToken(); ok {
		if exp, ok := session.ExpiresAt(token); ok {
			expiresIn = time.Until(exp)
		}
	}
	a.d.Profile(*p, expiresIn)
	return nil
}

func (a *app) cmdAccounts(ctx context.Context, _ []string) error {
	a.d.Working("Loading accounts")
	accounts, err := a.client.Accounts(ctx)
	if err != nil {
		return err
	}
	a.d.Accounts(accounts)
	return nil
}

func (a *app) cmdAccount(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a.d.Working("Loading account")
	acc, err := a.client.Account(ctx, id)
	if err != nil {
		return err
	}
	a.d.Account(*acc)
	return nil
}

func (a *app) cmdOpen(ctx context.Context, args []string) error {
	currency := ""
	if len(args) == 2 {
		currency = strings.ToUpper(args[1])
	}
	a.d.Working("Opening account")
	acc, err := a.client.CreateAccount(ctx, args[0], currency)
	if err != nil {
		return err
	}
	a.d.Account(*acc)
	return nil
}

func (a *app) cmdStatus(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	status, err := fluxpay.ParseAccountStatus(args[1])
	if err != nil {
		return err
	}
	a.d.Working("Updating account")
	acc, err := a.client.UpdateAccountStatus(ctx, id, status)
	if err != nil {
		return err
	}
	a.d.Account(*acc)
	return nil
}

func (a *app) cmdHistory(ctx context.Context, args []string) error {
	f, err := historyFilter(args)
	if err != nil {
		return err
	}
	a.d.Working("Loading transactions")
	page, err := a.client.Transactions(ctx, f)
	if err != nil {
		return err
	}
	a.d.History(*page)
	return nil
}

// historyFilter parses "<id> [page] [size]". Pages are numbered from 1 on the
// command line and from 0 on the wire.
func historyFilter(args []string) (fluxpay.TransactionFilter, error) {
	f := fluxpay.TransactionFilter{
		Size:    defaultPageSize,
		SortBy:  "createdAt",
		SortDir: "desc",
	}

	id, err := parseID(args[0])
	if err != nil {
		return f, err
	}
	f.AccountID = id

	if len(args) > 1 {
		page, err := strconv.Atoi(args[1])
		if err != nil || page < 1 {
			return f, fmt.Errorf("invalid page %q", args[1])
		}
		f.Page = page - 1
	}
	if len(args) > 2 {
		size, err := strconv.Atoi(args[2])
		if err != nil || size < 1 || size > 100 {
			return f, fmt.Errorf("invalid page size %q (1-100)", args[2])
		}
		f.Size = size
	}
	return f, nil
}

func (a *app) cmdDeposit(ctx context.Context, args []string) error {
	return a.movement(ctx, "deposit", args)
}

func (a *app) cmdWithdraw(ctx context.Context, args []string) error {
	return a.movement(ctx, "withdraw", args)
}

func (a *app) movement(ctx context.Context, kind string, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}

	m := fluxpay.Movement{
		AccountID:      id,
		Amount:         amount,
		Description:    strings.Join(args[2:], " "),
		IdempotencyKey: a.client.NewIdempotencyKey(),
	}

	var tx *fluxpay.Transaction
	if kind == "deposit" {
		a.d.Working("Depositing")
		tx, err = a.client.Deposit(ctx, m)
	} else {
		a.d.Working("Withdrawing")
		tx, err = a.client.Withdraw(ctx, m)
	}
	if err != nil {
		return err
	}
	a.d.Posted(*tx, m.IdempotencyKey)
	return nil
}

func (a *app) cmdTransfer(ctx context.Context, args []string) error {
	from, err := parseID(args[0])
	if err != nil {
		return err
	}
	to, err := parseID(args[1])
	if err != nil {
		return err
	}
	if from == to {
		return errors.New("source and destination accounts must differ")
	}
	amount, err := parseAmount(args[2])
	if err != nil {
		return err
	}

	t := fluxpay.Transfer{
		SourceAccountID:      from,
		DestinationAccountID: to,
		Amount:               amount,
		Description:          strings.Join(args[3:], " "),
		IdempotencyKey:       a.client.NewIdempotencyKey(),
	}

	a.d.Working("Transferring")
	res, err := a.client.Transfer(ctx, t)
	if err != nil {
		return err
	}
	a.d.Transferred(*res, t.IdempotencyKey)
	return nil
}

func (a *app) cmdSummaries(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	from, err := fluxpay.ParseDate(args[1])
	if err != nil {
		return err
	}
	to, err := fluxpay.ParseDate(args[2])
	if err != nil {
		return err
	}

	a.d.Working("Loading summaries")
	days, err := a.client.Summaries(ctx, id, from, to)
	if err != nil {
		return err
	}
	a.d.Summaries(days)
	return nil
}

func (a *app) cmdExport(ctx context.Context, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a.d.Working("Exporting transactions")
	data, err := a.client.ExportTransactions(ctx, fluxpay.TransactionFilter{AccountID: id})
	if err != nil {
		return err
	}
	if err := writeFileAtomic(ctx, args[1], data); err != nil {
		return err
	}
	a.log.WithField("bytes", len(data)).WithField("path", args[1]).Info("export written")
	a.d.Exported(args[1], len(data))
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid account id %q", s)
	}
	return id, nil
}

// parseAmount accepts a positive amount with at most two decimals.
func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", s)
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("amount must be positive, got %s", s)
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		return decimal.Decimal{}, fmt.Errorf("amount %s has more than two decimals", s)
	}
	return amount, nil
}

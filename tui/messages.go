package tui

import (
	"time"

	"github.com/fluxpay/fluxpay-cli/fluxpay"
	"github.com/fluxpay/fluxpay-cli/session"
)

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{ Server string }

// MsgSigningIn signals that a login or registration is in progress.
type MsgSigningIn struct{ Email string }

// MsgSignedIn signals that a session was established.
type MsgSignedIn struct{ View session.View }

// MsgSignedOut signals an explicit logout.
type MsgSignedOut struct{}

// MsgSessionRefreshed signals that an expired access token was replaced.
type MsgSessionRefreshed struct{}

// MsgSessionExpired signals that the refresh failed and the session is gone.
type MsgSessionExpired struct{ Err error }

// MsgWorking signals that a command was sent to the backend.
type MsgWorking struct{ Action string }

type MsgProfile struct {
	Profile   fluxpay.Profile
	ExpiresIn time.Duration
}

type MsgAccounts struct{ Accounts []fluxpay.Account }

type MsgAccount struct{ Account fluxpay.Account }

type MsgHistory struct{ Page fluxpay.Page[fluxpay.Transaction] }

// MsgPosted signals a completed deposit or withdrawal.
type MsgPosted struct {
	Transaction    fluxpay.Transaction
	IdempotencyKey string
}

type MsgTransferred struct {
	Result         fluxpay.TransferResult
	IdempotencyKey string
}

type MsgSummaries struct{ Days []fluxpay.DailySummary }

type MsgExported struct {
	Path  string
	Bytes int
}

// MsgFailed signals that a command failed. Message is what the user sees.
type MsgFailed struct {
	Action  string
	Message string
	Err     error
}

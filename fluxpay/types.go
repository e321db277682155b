package fluxpay

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountActive AccountStatus = "ACTIVE"
	AccountFrozen AccountStatus = "FROZEN"
	AccountClosed AccountStatus = "CLOSED"
)

// ParseAccountStatus accepts a status name in any case.
func ParseAccountStatus(s string) (AccountStatus, error) {
	switch st := AccountStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case AccountActive, AccountFrozen, AccountClosed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown account status %q (want ACTIVE, FROZEN or CLOSED)", s)
	}
}

type TransactionType string

const (
	Credit TransactionType = "CREDIT"
	Debit  TransactionType = "DEBIT"
)

type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxCompleted TransactionStatus = "COMPLETED"
	TxFailed    TransactionStatus = "FAILED"
	TxReversed  TransactionStatus = "REVERSED"
)

// AuthResponse is returned by login and register.
type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       int64  `json:"userId"`
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
}

// TokenPair is returned by the refresh endpoint.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Profile struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

type Account struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"userId"`
	AccountName string          `json:"accountName"`
	Balance     decimal.Decimal `json:"balance"`
	Currency    string          `json:"currency"`
	Status      AccountStatus   `json:"status"`
	CreatedAt   Timestamp       `json:"createdAt"`
}

type Transaction struct {
	ID            int64             `json:"id"`
	AccountID     int64             `json:"accountId"`
	Type          TransactionType   `json:"type"`
	Amount        decimal.Decimal   `json:"amount"`
	Description   string            `json:"description"`
	CorrelationID string            `json:"correlationId"`
	Status        TransactionStatus `json:"status"`
	BalanceAfter  decimal.Decimal   `json:"balanceAfter"`
	CreatedAt     Timestamp         `json:"createdAt"`
}

// TransferResult holds both legs of a transfer.
type TransferResult struct {
	CorrelationID string      `json:"correlationId"`
	Debit         Transaction `json:"debit"`
	Credit        Transaction `json:"credit"`
}

// Page is one page of a server-side paginated listing.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int64 `json:"totalElements"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
}

type DailySummary struct {
	ID               int64           `json:"id"`
	AccountID        int64           `json:"accountId"`
	SummaryDate      Date            `json:"summaryDate"`
	TotalCredits     decimal.Decimal `json:"totalCredits"`
	TotalDebits      decimal.Decimal `json:"totalDebits"`
	TransactionCount int             `json:"transactionCount"`
	ClosingBalance   decimal.Decimal `json:"closingBalance"`
}

// Timestamp accepts RFC 3339 times and the zone-less local date-times the
// backend emits.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

const dateLayout = "2006-01-02"

// Date is a calendar day in ISO format.
type Date struct {
	time.Time
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

package tui

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fluxpay/fluxpay-cli/fluxpay"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
	"CAD": "$",
	"AUD": "$",
}

// FormatMoney renders amount with the currency's narrow symbol, two decimals
// and thousands separators, e.g. "-$1,234.50". Unknown currencies fall back
// to the ISO code.
func FormatMoney(amount decimal.Decimal, currency string) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}

	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}

	symbol, ok := currencySymbols[strings.ToUpper(currency)]
	if !ok {
		symbol = strings.ToUpper(currency) + " "
	}
	return sign + symbol + grouped.String() + "." + frac
}

func renderAccounts(accounts []fluxpay.Account) string {
	if len(accounts) == 0 {
		return "No accounts yet.\n"
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tBALANCE")
	for _, a := range accounts {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", a.ID, a.AccountName, a.Status, FormatMoney(a.Balance, a.Currency))
	}
	w.Flush()
	return b.String()
}

func renderAccount(a fluxpay.Account) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Account #%d  %s\n", a.ID, a.AccountName)
	fmt.Fprintf(&b, "Status:   %s\n", a.Status)
	fmt.Fprintf(&b, "Balance:  %s\n", FormatMoney(a.Balance, a.Currency))
	if !a.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Opened:   %s\n", a.CreatedAt.Format("2006-01-02"))
	}
	return b.String()
}

func renderHistory(page fluxpay.Page[fluxpay.Transaction]) string {
	if len(page.Content) == 0 {
		return "No transactions.\n"
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTYPE\tAMOUNT\tSTATUS\tBALANCE\tDESCRIPTION")
	for _, tx := range page.Content {
		amount := tx.Amount
		if tx.Type == fluxpay.Debit {
			amount = amount.Neg()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.ID,
			tx.CreatedAt.Format("2006-01-02 15:04"),
			tx.Type,
			amount.StringFixed(2),
			tx.Status,
			tx.BalanceAfter.StringFixed(2),
			tx.Description,
		)
	}
	w.Flush()
	fmt.Fprintf(&b, "Page %d of %d (%d transactions)\n", page.Number+1, max(page.TotalPages, 1), page.TotalElements)
	return b.String()
}

func renderSummaries(days []fluxpay.DailySummary) string {
	if len(days) == 0 {
		return "No activity in range.\n"
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tCREDITS\tDEBITS\tCOUNT\tCLOSING")
	for _, d := range days {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			d.SummaryDate,
			d.TotalCredits.StringFixed(2),
			d.TotalDebits.StringFixed(2),
			d.TransactionCount,
			d.ClosingBalance.StringFixed(2),
		)
	}
	w.Flush()
	return b.String()
}

func renderProfile(p fluxpay.Profile, expiresIn time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name:   %s\n", p.FullName)
	fmt.Fprintf(&b, "Email:  %s\n", p.Email)
	fmt.Fprintf(&b, "User:   #%d\n", p.ID)
	if expiresIn > 0 {
		fmt.Fprintf(&b, "Access token expires in %s\n", formatDuration(expiresIn))
	}
	return b.String()
}

// formatDuration formats a duration as "Xm Ys" or "Xs".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

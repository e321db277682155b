package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/fluxpay/fluxpay-cli/session"
)

// state represents what the client is doing right now.
type state int

const (
	stateInit      state = iota
	stateSigningIn       // login or register in flight
	stateWorking         // a ledger command is in flight
	stateDone            // last command produced output
	stateError           // last command failed
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model for the ledger client.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	server string
	view   session.View
	action string

	// panel holds the rendered result of the last command.
	panel  string
	errMsg string

	statusLines []statusLine
}

var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("244")).
			Padding(0, 1)

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
	)
	return Model{
		state:   stateInit,
		spinner: s,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	// ── session messages ────────────────────────────────────────────────────

	case MsgBanner:
		m.server = msg.Server
		return m, nil

	case MsgSigningIn:
		m.state = stateSigningIn
		m.action = "Signing in as " + msg.Email
		return m, nil

	case MsgSignedIn:
		m.view = msg.View
		m.state = stateDone
		m.addStatus(statusOK, fmt.Sprintf("Signed in as %s", msg.View.Email))
		return m, nil

	case MsgSignedOut:
		m.view = session.View{}
		m.state = stateDone
		m.panel = ""
		m.addStatus(statusInfo, "Signed out")
		return m, nil

	case MsgSessionRefreshed:
		m.addStatus(statusOK, "Access token expired, session refreshed")
		return m, nil

	case MsgSessionExpired:
		m.view = session.View{}
		m.addStatus(statusWarn, "Session expired, please sign in again")
		return m, nil

	// ── ledger messages ─────────────────────────────────────────────────────

	case MsgWorking:
		m.state = stateWorking
		m.action = msg.Action
		return m, nil

	case MsgProfile:
		m.showPanel(renderProfile(msg.Profile, msg.ExpiresIn))
		return m, nil

	case MsgAccounts:
		m.showPanel(renderAccounts(msg.Accounts))
		return m, nil

	case MsgAccount:
		m.showPanel(renderAccount(msg.Account))
		return m, nil

	case MsgHistory:
		m.showPanel(renderHistory(msg.Page))
		return m, nil

	case MsgPosted:
		tx := msg.Transaction
		m.showPanel(fmt.Sprintf("%s #%d  %s  %s\nBalance after: %s\n",
			tx.Type, tx.ID, tx.Amount.StringFixed(2), tx.Status, tx.BalanceAfter.StringFixed(2)))
		m.addStatus(statusOK, fmt.Sprintf("%s posted (key %s)", tx.Type, msg.IdempotencyKey))
		return m, nil

	case MsgTransferred:
		res := msg.Result
		m.showPanel(fmt.Sprintf("#%d → #%d  %s\nSource balance:      %s\nDestination balance: %s\n",
			res.Debit.AccountID, res.Credit.AccountID, res.Debit.Amount.StringFixed(2),
			res.Debit.BalanceAfter.StringFixed(2), res.Credit.BalanceAfter.StringFixed(2)))
		m.addStatus(statusOK, fmt.Sprintf("Transfer %s completed (key %s)", res.CorrelationID, msg.IdempotencyKey))
		return m, nil

	case MsgSummaries:
		m.showPanel(renderSummaries(msg.Days))
		return m, nil

	case MsgExported:
		m.state = stateDone
		m.addStatus(statusOK, fmt.Sprintf("Exported %d bytes to %s", msg.Bytes, msg.Path))
		return m, nil

	case MsgFailed:
		m.state = stateError
		m.errMsg = msg.Message
		m.addStatus(statusWarn, fmt.Sprintf("%s failed", msg.Action))
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	return tea.NewView(m.render())
}

func (m Model) render() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  FluxPay Ledger  "))
	b.WriteString("\n")
	b.WriteString(m.viewSession())
	b.WriteString("\n")

	switch m.state {
	case stateSigningIn, stateWorking:
		b.WriteString(m.spinner.View())
		b.WriteString(" " + m.action + "...\n")

	case stateDone:
		if m.panel != "" {
			b.WriteString(stylePanel.Render(strings.TrimRight(m.panel, "\n")))
			b.WriteString("\n")
		}

	case stateError:
		b.WriteString(styleErr.Render("  ✗ " + m.errMsg))
		b.WriteString("\n")

	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" Connecting...\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

func (m Model) viewSession() string {
	var b strings.Builder
	if m.server != "" {
		b.WriteString(styleDim.Render("Server: " + m.server))
		b.WriteString("\n")
	}
	if m.view.IsAuthenticated {
		b.WriteString(styleBold.Render(m.view.FullName))
		b.WriteString(styleDim.Render(" <" + m.view.Email + ">"))
	} else {
		b.WriteString(styleDim.Render("Not signed in"))
	}
	b.WriteString("\n")
	return b.String()
}

// viewStatusLog renders the scrolling status log.
func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) showPanel(text string) {
	m.state = stateDone
	m.panel = text
}

// addStatus appends a line to the status log.
func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}

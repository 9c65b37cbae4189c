package balances

import (
	"fmt"
	"math"
	"strings"

	"github.com/bnema/atm-server/internal/application"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

const (
	defaultTitle = "Account Balances"
	barWidth     = 24
	amountPlaces = 2
)

type RenderOptions struct {
	Title string
	// Expected, when set, is compared with the rendered total.
	Expected *decimal.Decimal
	// Notes are printed under the total, one per line.
	Notes []string
}

func renderView(balances []application.AccountBalance, opts RenderOptions, s styles) string {
	title := opts.Title
	if title == "" {
		title = defaultTitle
	}

	lines := []string{
		s.title.Render(title),
		s.header.Render(fmt.Sprintf("accounts: %d", len(balances))),
	}

	if len(balances) == 0 {
		lines = append(lines, s.empty.Render("No accounts yet."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	total := application.TotalBalance(balances)
	width := idWidth(balances)

	rows := make([]string, 0, len(balances))
	for _, balance := range balances {
		rows = append(rows, renderAccount(balance, total, width, s))
	}
	lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	lines = append(lines, s.section.Render(totalLine(total, opts.Expected, s)))

	for _, note := range opts.Notes {
		lines = append(lines, s.header.Render(note))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAccount(balance application.AccountBalance, total decimal.Decimal, width int, s styles) string {
	share := 0.0
	if total.IsPositive() {
		share, _ = balance.Balance.Div(total).Mul(decimal.NewFromInt(100)).Float64()
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.account.Render(fmt.Sprintf("%-*s", width, balance.ID)),
		" ",
		renderShareBar(share, barWidth, s),
		" ",
		s.amount.Render(balance.Balance.StringFixed(amountPlaces)),
		" ",
		s.header.Render(fmt.Sprintf("(%.0f%%)", share)),
	)
}

func totalLine(total decimal.Decimal, expected *decimal.Decimal, s styles) string {
	line := s.total.Render("total: " + total.StringFixed(amountPlaces))
	if expected == nil {
		return line
	}

	if total.Equal(*expected) {
		return line + " " + s.ok.Render("[conserved]")
	}

	return line + " " + s.warning.Render(fmt.Sprintf("[mismatch: expected %s]", expected.StringFixed(amountPlaces)))
}

func renderShareBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(percent) / 100.0))
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func idWidth(balances []application.AccountBalance) int {
	width := 0
	for _, balance := range balances {
		if n := len(balance.ID); n > width {
			width = n
		}
	}
	return width
}

// Package report renders dataset and run summaries for the terminal.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"listing_ledger/dataset"
	"listing_ledger/identity"
	"listing_ledger/ingest"
	"listing_ledger/models"
)

var (
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#22C55E")
	warningColor = lipgloss.Color("#EAB308")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")

	title = lipgloss.NewStyle().
		Bold(true).
		Foreground(primaryColor)

	tableHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	tableCell = lipgloss.NewStyle().
			Padding(0, 1)

	muted         = lipgloss.NewStyle().Foreground(mutedColor)
	statusError   = lipgloss.NewStyle().Foreground(errorColor)
	statusSuccess = lipgloss.NewStyle().Foreground(successColor)
	statusRunning = lipgloss.NewStyle().Foreground(warningColor)
)

// Head renders the first n Features rows with each address's latest price.
func Head(store *dataset.Store, n int) string {
	rows := store.Head(n)
	features, history := store.Len()

	var b strings.Builder
	b.WriteString(title.Render(fmt.Sprintf("Features: %d rows, History: %d rows", features, history)))
	b.WriteString("\n")
	if len(rows) == 0 {
		b.WriteString(muted.Render("(empty)"))
		return b.String()
	}

	latest := latestPrices(store.History())
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(muted).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeader
			}
			return tableCell
		}).
		Headers("address", "beds", "baths", "sqft", "lot", "price")

	for _, r := range rows {
		price := "-"
		if p, ok := latest[r.AddrStr]; ok {
			price = "$" + humanize.Comma(int64(p))
		}
		t.Row(
			identity.Display(identity.AddressFromRow(r)),
			unknown(int64(r.Beds)),
			unknown(int64(r.Baths)),
			area(int64(r.SqFt), 0),
			area(int64(r.LotSize), int64(models.UnknownLot)),
			price,
		)
	}
	b.WriteString(t.String())
	return b.String()
}

// Runs renders one line per run.
func Runs(stats []ingest.RunStats, err error) string {
	var b strings.Builder
	for _, s := range stats {
		fmt.Fprintf(&b, "%s  %d pages  %d cards  %s new  %s observations  %d skipped",
			s.Target, s.Pages, s.Fragments,
			humanize.Comma(int64(s.FeaturesNew)), humanize.Comma(int64(s.HistoryAdded)), s.Skipped)
		if s.Defects > 0 {
			b.WriteString("  " + statusError.Render(fmt.Sprintf("%d defects", s.Defects)))
		}
		b.WriteString(muted.Render("  " + s.Duration.Round(time.Millisecond).String()))
		b.WriteString("\n")
	}
	if err != nil {
		b.WriteString(statusError.Render("failed: " + err.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

// Ledger renders recorded runs, newest first, as a table.
func Ledger(runs []models.ScrapeRun) string {
	var b strings.Builder
	b.WriteString(title.Render(fmt.Sprintf("Recent runs: %d", len(runs))))
	b.WriteString("\n")
	if len(runs) == 0 {
		b.WriteString(muted.Render("(no runs recorded)"))
		return b.String()
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(muted).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeader
			}
			return tableCell
		}).
		Headers("started", "zip", "status", "pages", "new", "observations", "defects", "took", "error")

	for _, r := range runs {
		took := "-"
		if r.FinishedAt != nil {
			took = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		t.Row(
			humanize.Time(r.StartedAt),
			r.Target,
			statusStyle(r.Status).Render(string(r.Status)),
			strconv.Itoa(r.PagesFetched),
			humanize.Comma(int64(r.FeaturesNew)),
			humanize.Comma(int64(r.HistoryAdded)),
			strconv.Itoa(r.Defects),
			took,
			r.ErrorMessage,
		)
	}
	b.WriteString(t.String())
	return b.String()
}

func statusStyle(status models.RunStatus) lipgloss.Style {
	switch status {
	case models.RunStatusCompleted:
		return statusSuccess
	case models.RunStatusFailed:
		return statusError
	default:
		return statusRunning
	}
}

func latestPrices(history []models.PriceObservation) map[string]uint32 {
	latest := make(map[string]uint32)
	seen := make(map[string]int64)
	for _, h := range history {
		if at, ok := seen[h.AddressKey]; !ok || h.ObservedAt >= at {
			seen[h.AddressKey] = h.ObservedAt
			latest[h.AddressKey] = h.Price
		}
	}
	return latest
}

func unknown(v int64) string {
	if v < 0 {
		return "?"
	}
	return strconv.FormatInt(v, 10)
}

func area(v, missing int64) string {
	if v == missing || v < 0 {
		return "-"
	}
	return humanize.Comma(v)
}

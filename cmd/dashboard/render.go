package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/vitos/crypto_intel/internal/domain"
	"github.com/vitos/crypto_intel/internal/usecase"
)

var (
	positiveColor = lipgloss.Color("#4cc9f0")
	negativeColor = lipgloss.Color("#f72585")
	neutralColor  = lipgloss.Color("#fca311")
	borderColor   = lipgloss.Color("#45a29e")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#e6e6e6")).
			Background(lipgloss.Color("#1f2833")).
			Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
)

var labelColors = map[string]lipgloss.Color{
	"positive": positiveColor,
	"negative": negativeColor,
	"neutral":  neutralColor,
}

func statusStyle(s domain.StatusLine) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Blink(s.Blink)
}

func renderStatus(s domain.StatusLine) string {
	return statusStyle(s).Render(s.Message)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(borderColor)).
		Headers(headers...)
}

func renderPredictions(rows []usecase.PredictionRow) string {
	t := newTable("Coin", "Price", "Breakout", "Inflow", "Call")
	for _, r := range rows {
		t.Row(fmt.Sprintf("%s (%s)", r.Name, r.Symbol), r.Price, r.BreakoutDisplay, r.InflowDisplay, r.Label)
	}
	return t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		r := rows[row]
		switch col {
		case 2:
			return cellStyle.Foreground(lipgloss.Color(r.BarColor))
		case 3:
			if r.InflowPositive {
				return cellStyle.Foreground(positiveColor)
			}
			return cellStyle.Foreground(negativeColor)
		case 4:
			return cellStyle.Foreground(labelColors[r.LabelClass])
		}
		return cellStyle
	}).String()
}

func renderPerformance(rows []usecase.PerformanceRow) string {
	t := newTable("Coin", "Price", "24h", "Volume")
	for _, r := range rows {
		t.Row(fmt.Sprintf("%s (%s)", r.Name, r.Symbol), r.Price, r.Change24h, r.Volume)
	}
	return t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col == 2 {
			if rows[row].Positive {
				return cellStyle.Foreground(positiveColor)
			}
			return cellStyle.Foreground(negativeColor)
		}
		return cellStyle
	}).String()
}

func renderViews(v usecase.Views, status domain.StatusLine) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Crypto Intelligence"))
	b.WriteString("  ")
	b.WriteString(renderStatus(status))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Breakout candidates: %d   Gainers: %d   Strong inflow: %d   Tracked: %d coins\n",
		v.Counters.Breakout, v.Counters.Gainers, v.Counters.Inflow, v.Counters.Total)
	fmt.Fprintf(&b, "Sorted by %s %s, filter %s\n\n", v.State.SortField, v.State.SortDir, v.State.Filter)

	b.WriteString(headerStyle.Render("Top predictions"))
	b.WriteString("\n")
	b.WriteString(renderPredictions(v.Predictions))
	b.WriteString("\n\n")
	b.WriteString(headerStyle.Render("24h performance"))
	b.WriteString("\n")
	b.WriteString(renderPerformance(v.Performance))
	b.WriteString("\n\n")

	b.WriteString(dimStyle.Render(fmt.Sprintf("Model v%s, retrained %dh ago. Generated %s.",
		v.System.ModelVersion, v.System.HoursSinceRetrain, v.GeneratedAt.Format("15:04:05"))))
	return b.String()
}

// healthView is everything the diagnose command prints.
type healthView struct {
	Report   domain.HealthReport
	DownAPIs []string
	Attempts int
	Tripped  bool
	Status   domain.StatusLine
	Entries  []*domain.ErrorLogEntry
}

var healthColors = map[domain.HealthStatus]lipgloss.Color{
	domain.StatusHealthy:   positiveColor,
	domain.StatusUnhealthy: neutralColor,
	domain.StatusCritical:  negativeColor,
}

var severityColors = map[domain.Severity]lipgloss.Color{
	domain.SeverityInfo:     lipgloss.Color("#e6e6e6"),
	domain.SeverityWarning:  neutralColor,
	domain.SeverityError:    negativeColor,
	domain.SeverityCritical: negativeColor,
}

func renderHealth(h healthView) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("System health: " + string(h.Report.Overall)))
	b.WriteString("  ")
	b.WriteString(renderStatus(h.Status))
	b.WriteString("\n\n")

	subs := h.Report.Subsystems()
	t := newTable("Subsystem", "Status", "Required", "Message")
	for _, s := range subs {
		t.Row(s.Name, string(s.Status), fmt.Sprint(s.Required), s.Message)
	}
	b.WriteString(t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col == 1 {
			return cellStyle.Foreground(healthColors[subs[row].Status])
		}
		return cellStyle
	}).String())
	b.WriteString("\n")

	if len(h.DownAPIs) > 0 {
		fmt.Fprintf(&b, "APIs down: %s\n", strings.Join(h.DownAPIs, ", "))
	}
	fuse := "armed"
	if h.Tripped {
		fuse = "tripped"
	}
	fmt.Fprintf(&b, "Recovery attempts: %d (fuse %s)\n", h.Attempts, fuse)

	if len(h.Entries) == 0 {
		b.WriteString(dimStyle.Render("Error log is empty."))
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Recent errors"))
	b.WriteString("\n")
	entries := h.Entries
	et := newTable("When", "Type", "Severity", "Message")
	for _, e := range entries {
		et.Row(humanize.Time(e.Timestamp), e.Type, string(e.Severity), e.Message)
	}
	b.WriteString(et.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col == 2 {
			return cellStyle.Foreground(severityColors[entries[row].Severity])
		}
		return cellStyle
	}).String())
	return b.String()
}

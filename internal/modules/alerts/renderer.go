package alerts

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/pricesentry/internal/domain"
)

//go:embed templates/alert_email.html
var templateFS embed.FS

// Renderer builds the notification for one session's alert set
type Renderer struct {
	tmpl *template.Template
	loc  *time.Location
}

// Email is a rendered notification
type Email struct {
	Subject string
	HTML    string
	Lines   []string
}

type section struct {
	Title string
	Lines []line
	Start int
}

type line struct {
	Text  string
	Class string
}

type page struct {
	Subject     string
	Session     domain.Session
	Date        string
	Summary     string
	GeneratedAt string
	Sections    []section
}

// NewRenderer parses the embedded template. Dates are shown in loc.
func NewRenderer(loc *time.Location) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/alert_email.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse alert template: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{tmpl: tmpl, loc: loc}, nil
}

// Subject returns "Trade Alerts - {AM|PM} Session - {YYYY-MM-DD}"
func Subject(session domain.Session, date time.Time) string {
	return fmt.Sprintf("Trade Alerts - %s Session - %s", session, date.Format("2006-01-02"))
}

// Narrative returns the numbered one-line description of an alert, e.g.
// "1. AAPL (Apple Inc.) at $168.50 → BUY ($170.00-$185.00 bullish) for +9.79% gain"
func Narrative(n int, a domain.Alert) string {
	noun := "profit"
	if a.Action.Entry() {
		noun = "gain"
	}
	pct := decimal.NewFromFloat(a.ProfitPct).Round(2)
	sign := ""
	if !pct.IsNegative() {
		sign = "+"
	}
	return fmt.Sprintf("%d. %s (%s) at $%s → %s ($%s-$%s %s) for %s%s%% %s",
		n, a.Symbol, a.Name, money(a.CurrentPrice), a.Action,
		money(a.BuyTrade), money(a.SellTrade), a.Sentiment,
		sign, pct.StringFixed(2), noun)
}

// money shows two decimals, or four for sub-dollar prices
func money(v float64) string {
	d := decimal.NewFromFloat(v)
	if d.Abs().LessThan(decimal.NewFromInt(1)) {
		return d.StringFixed(4)
	}
	return d.StringFixed(2)
}

// Render groups alerts by category in display order and numbers them
// continuously across sections.
func (r *Renderer) Render(alerts []domain.Alert, session domain.Session, at time.Time) (*Email, error) {
	at = at.In(r.loc)
	p := page{
		Subject:     Subject(session, at),
		Session:     session,
		Date:        at.Format("2006-01-02"),
		GeneratedAt: at.Format("2006-01-02 15:04 MST"),
		Summary:     summary(alerts),
	}

	byCategory := make(map[domain.Category][]domain.Alert)
	for _, a := range alerts {
		byCategory[a.Category] = append(byCategory[a.Category], a)
	}

	var lines []string
	n := 1
	for _, c := range orderedCategories(byCategory) {
		sec := section{Title: c.Title(), Start: n}
		for _, a := range byCategory[c] {
			text := Narrative(n, a)
			lines = append(lines, text)
			class := "sell"
			if a.Action.Entry() {
				class = "buy"
			}
			sec.Lines = append(sec.Lines, line{Text: text, Class: class})
			n++
		}
		p.Sections = append(p.Sections, sec)
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("failed to render alerts: %w", err)
	}
	return &Email{Subject: p.Subject, HTML: buf.String(), Lines: lines}, nil
}

// orderedCategories lists the known categories first, then anything else
func orderedCategories(by map[domain.Category][]domain.Alert) []domain.Category {
	var out []domain.Category
	seen := make(map[domain.Category]bool)
	for _, c := range domain.Categories {
		if len(by[c]) > 0 {
			out = append(out, c)
			seen[c] = true
		}
	}
	var extra []domain.Category
	for c := range by {
		if !seen[c] {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

func summary(alerts []domain.Alert) string {
	if len(alerts) == 0 {
		return "No alerts."
	}
	pcts := make([]float64, len(alerts))
	entries := 0
	for i, a := range alerts {
		pcts[i] = a.ProfitPct
		if a.Action.Entry() {
			entries++
		}
	}
	mean := decimal.NewFromFloat(stat.Mean(pcts, nil)).StringFixed(2)
	best := decimal.NewFromFloat(floats.Max(pcts)).StringFixed(2)
	return fmt.Sprintf("%d alerts (%d entries, %d exits). Average move %s%%, largest %s%%.",
		len(alerts), entries, len(alerts)-entries, mean, best)
}

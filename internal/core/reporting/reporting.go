// Package reporting shapes ledger aggregates into reports and dashboards.
// The sums themselves come from the store; this package zero-fills,
// ranks and derives percentages. All functions are pure.
package reporting

import (
	"cmp"
	"slices"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/samber/lo"
)

// =============================================================================
// Status Totals
// =============================================================================

// StatusTotals are hour sums partitioned by review status for one period.
type StatusTotals struct {
	TotalHours    domain.Hours `json:"total_hours" db:"total_hours"`
	ApprovedHours domain.Hours `json:"approved_hours" db:"approved_hours"`
	PendingHours  domain.Hours `json:"pending_hours" db:"pending_hours"`
	RejectedHours domain.Hours `json:"rejected_hours" db:"rejected_hours"`
	// ProjectsCount is the number of distinct projects with approved hours.
	ProjectsCount int `json:"projects_count" db:"projects_count"`
	LogsCount     int `json:"logs_count" db:"logs_count"`
}

// MonthBucket is one row of a per-month grouping.
type MonthBucket struct {
	Month int `db:"month"`
	StatusTotals
}

// =============================================================================
// Monthly / Yearly Reports
// =============================================================================

// MonthlyReport covers one calendar month.
type MonthlyReport struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	StatusTotals
}

// YearlyReport covers one calendar year and always carries twelve monthly
// breakdown entries, months 1 through 12.
type YearlyReport struct {
	Year int `json:"year"`
	StatusTotals
	MonthlyBreakdown []MonthlyReport `json:"monthly_breakdown"`
}

// NewMonthlyReport wraps totals for year/month.
func NewMonthlyReport(year, month int, totals StatusTotals) MonthlyReport {
	return MonthlyReport{Year: year, Month: month, StatusTotals: totals}
}

// BuildYearlyReport zero-fills the months missing from buckets. Buckets
// outside 1..12 are ignored; duplicate months keep the last bucket.
func BuildYearlyReport(year int, totals StatusTotals, buckets []MonthBucket) YearlyReport {
	byMonth := lo.KeyBy(buckets, func(b MonthBucket) int { return b.Month })

	breakdown := make([]MonthlyReport, 0, 12)
	for month := 1; month <= 12; month++ {
		breakdown = append(breakdown, NewMonthlyReport(year, month, byMonth[month].StatusTotals))
	}

	return YearlyReport{
		Year:             year,
		StatusTotals:     totals,
		MonthlyBreakdown: breakdown,
	}
}

// =============================================================================
// Status Counts
// =============================================================================

// StatusCount is one row of a COUNT(*) GROUP BY status query.
type StatusCount struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}

// CountsByStatus returns a count for every state in states, zero-filling
// states absent from rows. Rows for unknown states are dropped.
func CountsByStatus[S ~string](states []S, rows []StatusCount) map[S]int {
	out := make(map[S]int, len(states))
	for _, s := range states {
		out[s] = 0
	}
	for _, r := range rows {
		if _, ok := out[S(r.Status)]; ok {
			out[S(r.Status)] += r.Count
		}
	}
	return out
}

// Total sums every count.
func Total[S comparable](counts map[S]int) int {
	return lo.Sum(lo.Values(counts))
}

// =============================================================================
// Rankings
// =============================================================================

// Ranked is one entry of a top-N list.
type Ranked struct {
	ID    int64  `json:"id" db:"id"`
	Label string `json:"name" db:"label"`
	Value int64  `json:"value" db:"value"`
}

// TopN orders rows by Value descending, then ID ascending, and keeps the
// first n. Rows with a zero value are dropped.
func TopN(rows []Ranked, n int) []Ranked {
	ranked := lo.Filter(rows, func(r Ranked, _ int) bool { return r.Value > 0 })
	slices.SortStableFunc(ranked, func(a, b Ranked) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	if ranked == nil {
		ranked = []Ranked{}
	}
	return ranked
}

// RankedHours is a Ranked entry whose value is a sum of hours.
type RankedHours struct {
	ID    int64        `json:"id"`
	Label string       `json:"name"`
	Hours domain.Hours `json:"hours"`
}

// AsHours converts rankings whose Value holds centi-hours.
func AsHours(rows []Ranked) []RankedHours {
	return lo.Map(rows, func(r Ranked, _ int) RankedHours {
		return RankedHours{ID: r.ID, Label: r.Label, Hours: domain.Hours(r.Value)}
	})
}

package reporting

import (
	"testing"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildYearlyReport_OnlyMarch(t *testing.T) {
	march := StatusTotals{
		TotalHours:    domain.WholeHours(6),
		ApprovedHours: domain.WholeHours(4),
		PendingHours:  domain.WholeHours(2),
		ProjectsCount: 1,
		LogsCount:     3,
	}

	report := BuildYearlyReport(2025, march, []MonthBucket{{Month: 3, StatusTotals: march}})

	require.Len(t, report.MonthlyBreakdown, 12)
	zero := 0
	for i, m := range report.MonthlyBreakdown {
		assert.Equal(t, i+1, m.Month)
		assert.Equal(t, 2025, m.Year)
		if m.TotalHours == 0 {
			zero++
		}
	}
	assert.Equal(t, 11, zero)
	assert.Equal(t, domain.WholeHours(6), report.MonthlyBreakdown[2].TotalHours)
	assert.Equal(t, 3, report.MonthlyBreakdown[2].LogsCount)
	assert.Equal(t, domain.WholeHours(6), report.TotalHours)
}

func TestBuildYearlyReport_EmptyAndOutOfRange(t *testing.T) {
	report := BuildYearlyReport(2024, StatusTotals{}, []MonthBucket{{Month: 13, StatusTotals: StatusTotals{LogsCount: 9}}})

	require.Len(t, report.MonthlyBreakdown, 12)
	for _, m := range report.MonthlyBreakdown {
		assert.Equal(t, "0.00", m.TotalHours.String())
		assert.Zero(t, m.LogsCount)
	}
}

func TestCountsByStatus_ZeroFills(t *testing.T) {
	counts := CountsByStatus(domain.ApplicationMachine.States(), []StatusCount{
		{Status: "pending", Count: 3},
		{Status: "approved", Count: 1},
		{Status: "bogus", Count: 7},
	})

	assert.Len(t, counts, 6)
	assert.Equal(t, 3, counts[domain.ApplicationPending])
	assert.Equal(t, 1, counts[domain.ApplicationApproved])
	assert.Equal(t, 0, counts[domain.ApplicationCancelled])
	assert.Equal(t, 4, Total(counts))
}

func TestTopN(t *testing.T) {
	rows := []Ranked{
		{ID: 1, Label: "a", Value: 5},
		{ID: 2, Label: "b", Value: 9},
		{ID: 3, Label: "c", Value: 5},
		{ID: 4, Label: "d", Value: 0},
		{ID: 5, Label: "e", Value: 1},
		{ID: 6, Label: "f", Value: 2},
		{ID: 7, Label: "g", Value: 3},
	}

	top := TopN(rows, 5)
	require.Len(t, top, 5)
	assert.Equal(t, []int64{2, 1, 3, 7, 6}, []int64{top[0].ID, top[1].ID, top[2].ID, top[3].ID, top[4].ID})

	assert.Equal(t, []Ranked{}, TopN(nil, 5))
	assert.Len(t, TopN(rows, 2), 2)
}

func TestAsHours(t *testing.T) {
	out := AsHours([]Ranked{{ID: 1, Label: "ana", Value: 1250}})
	require.Len(t, out, 1)
	assert.Equal(t, "12.50", out[0].Hours.String())
}

func TestNewScholarshipProgress(t *testing.T) {
	p := NewScholarshipProgress(
		domain.UserScholarship{CurrentYearHours: domain.WholeHours(20)},
		domain.Scholarship{RequiredHours: domain.WholeHours(80)},
	)
	assert.Equal(t, 25.0, p.ProgressPercent)
	assert.Equal(t, domain.WholeHours(60), p.RemainingHours)

	zero := NewScholarshipProgress(domain.UserScholarship{CurrentYearHours: domain.WholeHours(20)}, domain.Scholarship{})
	assert.Equal(t, 0.0, zero.ProgressPercent)
	assert.Equal(t, domain.Hours(0), zero.RemainingHours)
}

func TestNewApplicationProgress(t *testing.T) {
	p := NewApplicationProgress(
		domain.Application{ID: 4, HoursCompleted: domain.WholeHours(30)},
		domain.Project{MaxHours: domain.WholeHours(20)},
	)
	assert.Equal(t, 150.0, p.ProgressPercent)
	assert.Equal(t, domain.Hours(0), p.RemainingHours)
}

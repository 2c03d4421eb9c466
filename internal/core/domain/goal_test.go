package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHourGoal_Progress(t *testing.T) {
	g := &HourGoal{
		GoalType:    GoalAnnual,
		TargetHours: WholeHours(40),
		StartDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, g.Validate())

	p := g.Progress(WholeHours(10))
	assert.Equal(t, 25.0, p.ProgressPercent)
	assert.Equal(t, WholeHours(30), p.RemainingHours)

	p = g.Progress(WholeHours(50))
	assert.Equal(t, Hours(0), p.RemainingHours)
}

func TestHourGoal_Validate(t *testing.T) {
	g := &HourGoal{GoalType: GoalProject, TargetHours: 100,
		StartDate: time.Now(), EndDate: time.Now().Add(time.Hour)}
	assert.Equal(t, "project_id", FieldOf(g.Validate()))

	g = &HourGoal{GoalType: GoalMonthly, TargetHours: 0,
		StartDate: time.Now(), EndDate: time.Now().Add(time.Hour)}
	assert.Equal(t, "target_hours", FieldOf(g.Validate()))
}

func TestUserScholarship_Progress(t *testing.T) {
	us, err := NewUserScholarship(1, 2, time.Now(), nil)
	require.NoError(t, err)
	us.CurrentYearHours = WholeHours(30)

	assert.Equal(t, 37.5, us.Progress(WholeHours(80)))
	assert.Equal(t, WholeHours(50), us.RemainingHours(WholeHours(80)))
	assert.Equal(t, 0.0, us.Progress(0))

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = NewUserScholarship(1, 2, start, &start)
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

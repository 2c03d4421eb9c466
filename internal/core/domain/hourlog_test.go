package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/artpar/keyhours/internal/core/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validHourInput() HourLogInput {
	return HourLogInput{
		ProjectID:           3,
		Date:                time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime:           Clock(9, 0),
		EndTime:             Clock(11, 30),
		Hours:               HoursFromFloat(2.5),
		ActivityDescription: "Tutoring",
	}
}

func testProject() *Project {
	return &Project{
		ID:              3,
		StartDate:       time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, 6, 30, 18, 0, 0, 0, time.UTC),
		MaxParticipants: 10,
		IsActive:        true,
	}
}

// =============================================================================
// Creation Tests
// =============================================================================

func TestNewHourLog_AlwaysPending(t *testing.T) {
	log, err := NewHourLog(7, validHourInput())
	require.NoError(t, err)
	assert.Equal(t, HourPending, log.Status)
	assert.Nil(t, log.ReviewedBy)
}

func TestNewHourLog_EndBeforeStart(t *testing.T) {
	in := validHourInput()
	in.StartTime = Clock(9, 0)
	in.EndTime = Clock(8, 0)

	_, err := NewHourLog(7, in)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestNewHourLog_EqualTimesRejected(t *testing.T) {
	in := validHourInput()
	in.EndTime = in.StartTime

	_, err := NewHourLog(7, in)
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestNewHourLog_HoursBounds(t *testing.T) {
	tests := []struct {
		hours Hours
		ok    bool
	}{
		{Hours(24), false},
		{MinLogHours, true},
		{MaxLogHours, true},
		{Hours(2401), false},
	}
	for _, tt := range tests {
		t.Run(tt.hours.String(), func(t *testing.T) {
			in := validHourInput()
			in.Hours = tt.hours
			_, err := NewHourLog(7, in)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrHoursOutOfRange)
			}
		})
	}
}

// =============================================================================
// Review Tests
// =============================================================================

func TestHourLogReview_ApproveIsTerminal(t *testing.T) {
	log, err := NewHourLog(7, validHourInput())
	require.NoError(t, err)

	require.NoError(t, log.Review(1, HourApproved, "ok", time.Now()))
	assert.Equal(t, HourApproved, log.Status)
	assert.Equal(t, int64(1), *log.ReviewedBy)

	err = log.Review(1, HourRejected, "", time.Now())
	assert.True(t, errors.Is(err, fsm.ErrInvalidTransition))
	assert.True(t, HourLogMachine.Terminal(HourApproved))
}

func TestHourLogReview_RejectThenResubmit(t *testing.T) {
	log, err := NewHourLog(7, validHourInput())
	require.NoError(t, err)

	require.NoError(t, log.Review(1, HourRejected, "missing supervisor", time.Now()))
	require.NoError(t, log.Resubmit(time.Now()))
	assert.Equal(t, HourPending, log.Status)
	assert.Nil(t, log.ReviewedBy)
	assert.Empty(t, log.ReviewNotes)
}

func TestHourLogResubmit_FromPendingFails(t *testing.T) {
	log, err := NewHourLog(7, validHourInput())
	require.NoError(t, err)

	assert.ErrorIs(t, log.Resubmit(time.Now()), fsm.ErrInvalidTransition)
}

func TestHourLogReview_OnlyReviewStatuses(t *testing.T) {
	log := &HourLog{Status: HourRejected}

	err := log.Review(1, HourPending, "", time.Now())
	assert.Equal(t, "status", FieldOf(err))
}

func TestHourLogApply_OnlyPending(t *testing.T) {
	log, err := NewHourLog(7, validHourInput())
	require.NoError(t, err)

	in := validHourInput()
	in.Hours = WholeHours(3)
	require.NoError(t, log.Apply(in, time.Now()))
	assert.Equal(t, WholeHours(3), log.Hours)

	log.Status = HourApproved
	assert.True(t, IsValidation(log.Apply(in, time.Now())))
}

// =============================================================================
// Eligibility Tests
// =============================================================================

func TestCheckHourLogEligibility(t *testing.T) {
	project := testProject()
	in := validHourInput()

	approved := &Application{UserID: 7, ProjectID: 3, Status: ApplicationApproved}
	pending := &Application{UserID: 7, ProjectID: 3, Status: ApplicationPending}
	foreign := &Application{UserID: 8, ProjectID: 3, Status: ApplicationApproved}

	assert.NoError(t, CheckHourLogEligibility(in, 7, project, approved, false))
	assert.NoError(t, CheckHourLogEligibility(in, 7, project, nil, true))
	assert.ErrorIs(t, CheckHourLogEligibility(in, 7, project, nil, false), ErrNotEligible)
	assert.Equal(t, "application_id", FieldOf(CheckHourLogEligibility(in, 7, project, pending, true)))
	assert.Equal(t, "application_id", FieldOf(CheckHourLogEligibility(in, 7, project, foreign, true)))
}

func TestCheckHourLogEligibility_DateWindowIsDateOnly(t *testing.T) {
	project := testProject()

	in := validHourInput()
	in.Date = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) // before the 08:00 start, same day
	assert.NoError(t, CheckHourLogEligibility(in, 7, project, nil, true))

	in.Date = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, CheckHourLogEligibility(in, 7, project, nil, true))

	in.Date = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	assert.ErrorIs(t, CheckHourLogEligibility(in, 7, project, nil, true), ErrDateOutsideWindow)
}

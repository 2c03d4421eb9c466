package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func openCall() *Project {
	return &Project{
		ID:              1,
		Name:            "Beach Cleanup",
		Visibility:      VisibilityConvocatoria,
		HourAssignment:  HourAssignmentManual,
		StartDate:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		MaxParticipants: 2,
		IsActive:        true,
	}
}

func TestProject_Validate(t *testing.T) {
	assert.NoError(t, openCall().Validate())

	p := openCall()
	p.HourAssignment = HourAssignmentAutomatic
	assert.Equal(t, "automatic_hours", FieldOf(p.Validate()))

	p = openCall()
	p.EndDate = p.StartDate
	assert.ErrorIs(t, p.Validate(), ErrInvalidDateRange)

	p = openCall()
	p.CurrentParticipants = 3
	assert.Equal(t, "max_participants", FieldOf(p.Validate()))

	p = openCall()
	p.Visibility = "secret"
	assert.ErrorIs(t, p.Validate(), ErrInvalidEnum)
}

func TestProject_AvailableSpots(t *testing.T) {
	p := openCall()
	assert.Equal(t, 2, p.AvailableSpots())

	p.CurrentParticipants = 2
	assert.Equal(t, 0, p.AvailableSpots())
	assert.True(t, p.IsFull())
	assert.ErrorIs(t, p.CheckCapacity(), ErrCapacityExceeded)

	p.CurrentParticipants = 5
	assert.Equal(t, 0, p.AvailableSpots())
}

func TestProject_IsAcceptingApplications(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	p := openCall()
	assert.True(t, p.IsAcceptingApplications(now))
	assert.NoError(t, p.CheckAcceptingApplications(now))

	p.Visibility = VisibilityPublished
	assert.ErrorIs(t, p.CheckAcceptingApplications(now), ErrNotAcceptingApplications)

	p = openCall()
	p.IsActive = false
	assert.False(t, p.IsAcceptingApplications(now))

	p = openCall()
	assert.False(t, p.IsAcceptingApplications(p.EndDate.Add(time.Second)))

	p = openCall()
	p.CurrentParticipants = 2
	assert.ErrorIs(t, p.CheckAcceptingApplications(now), ErrCapacityExceeded)
}

func TestProject_DurationDays(t *testing.T) {
	assert.Equal(t, 364, openCall().DurationDays())
}

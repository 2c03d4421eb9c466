package auth

import (
	"errors"
	"testing"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func admin(id int64) Principal {
	return Principal{UserID: id, UserType: domain.UserTypeAdmin, Authenticated: true}
}

func student(id int64) Principal {
	return Principal{UserID: id, UserType: domain.UserTypeStudent, Authenticated: true}
}

// =============================================================================
// Authorize Tests
// =============================================================================

func TestAuthorize_AnonymousIsUnauthenticated(t *testing.T) {
	err := Authorize(Anonymous(), ActionViewScholarships, Resource{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.False(t, errors.Is(err, ErrForbidden))
}

func TestAuthorize_Table(t *testing.T) {
	tests := []struct {
		name     string
		p        Principal
		action   Action
		resource Resource
		allowed  bool
	}{
		{"admin reviews application", admin(1), ActionReviewApplication, OwnedBy(5), true},
		{"student reviews application", student(5), ActionReviewApplication, OwnedBy(5), false},
		{"owner cancels application", student(5), ActionCancelApplication, OwnedBy(5), true},
		{"other student cancels", student(6), ActionCancelApplication, OwnedBy(5), false},
		{"admin cancels student's application", admin(1), ActionCancelApplication, OwnedBy(5), false},
		{"student submits", student(5), ActionSubmitApplication, Resource{}, true},
		{"admin submits", admin(1), ActionSubmitApplication, Resource{}, false},
		{"owner views application", student(5), ActionViewApplication, OwnedBy(5), true},
		{"stranger views application", student(6), ActionViewApplication, OwnedBy(5), false},
		{"admin views application", admin(1), ActionViewApplication, OwnedBy(5), true},
		{"admin reviews hours", admin(1), ActionReviewHourLog, OwnedBy(5), true},
		{"owner reviews own hours", student(5), ActionReviewHourLog, OwnedBy(5), false},
		{"student logs own hours", student(5), ActionLogHours, OwnedBy(5), true},
		{"student logs for another", student(5), ActionLogHours, OwnedBy(6), false},
		{"unowned resource is nobody's", student(5), ActionEditHourLog, Resource{}, false},
		{"student views listed project", student(5), ActionViewProject, Resource{Listed: true}, true},
		{"member views unlisted project", student(5), ActionViewProject, Resource{Member: true}, true},
		{"student views unlisted project", student(5), ActionViewProject, Resource{}, false},
		{"student fleet stats", student(5), ActionViewFleetStats, Resource{}, false},
		{"student reads own report", student(5), ActionViewReports, Self(student(5)), true},
		{"student reads another report", student(5), ActionViewReports, OwnedBy(6), false},
		{"admin reads any report", admin(1), ActionViewReports, OwnedBy(6), true},
		{"student joins project", student(5), ActionJoinProject, Resource{}, true},
		{"admin joins project", admin(1), ActionJoinProject, Resource{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.p, tt.action, tt.resource)
			if tt.allowed {
				assert.NoError(t, err)
				assert.True(t, Can(tt.p, tt.action, tt.resource))
			} else {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrForbidden)
				var denied *DeniedError
				require.ErrorAs(t, err, &denied)
				assert.Equal(t, tt.action, denied.Action)
			}
		})
	}
}

func TestAuthorize_UnknownActionDenied(t *testing.T) {
	err := Authorize(admin(1), Action("project.explode"), Resource{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorize_EveryActionHasRule(t *testing.T) {
	for a := range policy {
		assert.NotNil(t, policy[a], string(a))
	}
}

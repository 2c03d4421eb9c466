package auth

import (
	"errors"
	"fmt"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrUnauthenticated is returned when an anonymous principal attempts
	// any action.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden is returned when the principal may not perform an action.
	ErrForbidden = errors.New("permission denied")
)

// DeniedError explains a denial. It unwraps to ErrForbidden.
type DeniedError struct {
	Action Action
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Reason)
}

func (e *DeniedError) Unwrap() error {
	return ErrForbidden
}

// =============================================================================
// Actions and Resources
// =============================================================================

// Action names an operation subject to authorization.
type Action string

const (
	ActionViewUser           Action = "user.view"
	ActionUpdateProfile      Action = "user.update_profile"
	ActionManageUsers        Action = "user.manage"
	ActionViewScholarships   Action = "scholarship.view"
	ActionManageScholarships Action = "scholarship.manage"

	ActionViewProject    Action = "project.view"
	ActionManageProjects Action = "project.manage"
	ActionManageMembers  Action = "project.manage_members"
	ActionJoinProject    Action = "project.join"
	ActionLeaveProject   Action = "project.leave"

	ActionSubmitApplication   Action = "application.submit"
	ActionViewApplication     Action = "application.view"
	ActionReviewApplication   Action = "application.review"
	ActionCancelApplication   Action = "application.cancel"
	ActionEvaluateApplication Action = "application.evaluate"
	ActionReadNotification    Action = "notification.read"

	ActionLogHours        Action = "hours.log"
	ActionViewHourLog     Action = "hours.view"
	ActionEditHourLog     Action = "hours.edit"
	ActionReviewHourLog   Action = "hours.review"
	ActionResubmitHourLog Action = "hours.resubmit"
	ActionAttachEvidence  Action = "hours.attach_evidence"
	ActionManageGoal      Action = "hours.manage_goal"

	ActionViewReports      Action = "reports.view"
	ActionViewFleetStats   Action = "reports.fleet"
	ActionRefreshSummaries Action = "reports.refresh"
)

// Resource describes what an action targets. Zero values mean "not
// applicable": an OwnerID of 0 has no owner.
type Resource struct {
	// OwnerID is the user the resource belongs to (applicant, log author,
	// notification recipient, profile subject).
	OwnerID int64

	// Listed is true when the resource is visible to every authenticated
	// user, such as a published project.
	Listed bool

	// Member is true when the principal belongs to the resource's project.
	Member bool
}

// Self is the resource of a principal acting on their own data.
func Self(p Principal) Resource {
	return Resource{OwnerID: p.UserID}
}

// OwnedBy is a resource belonging to userID.
func OwnedBy(userID int64) Resource {
	return Resource{OwnerID: userID}
}

// =============================================================================
// Policy
// =============================================================================

type rule func(p Principal, r Resource) (bool, string)

func adminOnly(p Principal, _ Resource) (bool, string) {
	return p.IsAdmin(), "administrator role required"
}

func studentOnly(p Principal, _ Resource) (bool, string) {
	return p.IsStudent(), "student role required"
}

func owner(p Principal, r Resource) (bool, string) {
	return r.OwnerID != 0 && r.OwnerID == p.UserID, "only the owner may do this"
}

func studentOwner(p Principal, r Resource) (bool, string) {
	if !p.IsStudent() {
		return false, "student role required"
	}
	return owner(p, r)
}

func ownerOrAdmin(p Principal, r Resource) (bool, string) {
	if p.IsAdmin() {
		return true, ""
	}
	return owner(p, r)
}

func anyone(Principal, Resource) (bool, string) {
	return true, ""
}

func listedOrMemberOrAdmin(p Principal, r Resource) (bool, string) {
	return p.IsAdmin() || r.Listed || r.Member, "project is not visible"
}

var policy = map[Action]rule{
	ActionViewUser:           ownerOrAdmin,
	ActionUpdateProfile:      ownerOrAdmin,
	ActionManageUsers:        adminOnly,
	ActionViewScholarships:   anyone,
	ActionManageScholarships: adminOnly,

	ActionViewProject:    listedOrMemberOrAdmin,
	ActionManageProjects: adminOnly,
	ActionManageMembers:  adminOnly,
	ActionJoinProject:    studentOnly,
	ActionLeaveProject:   studentOnly,

	ActionSubmitApplication:   studentOnly,
	ActionViewApplication:     ownerOrAdmin,
	ActionReviewApplication:   adminOnly,
	ActionCancelApplication:   studentOwner,
	ActionEvaluateApplication: adminOnly,
	ActionReadNotification:    owner,

	ActionLogHours:        owner,
	ActionViewHourLog:     ownerOrAdmin,
	ActionEditHourLog:     owner,
	ActionReviewHourLog:   adminOnly,
	ActionResubmitHourLog: owner,
	ActionAttachEvidence:  ownerOrAdmin,
	ActionManageGoal:      owner,

	ActionViewReports:      ownerOrAdmin,
	ActionViewFleetStats:   adminOnly,
	ActionRefreshSummaries: adminOnly,
}

// Authorize decides whether p may perform a on r. It returns nil when
// allowed, ErrUnauthenticated for anonymous principals, and a *DeniedError
// otherwise. Unknown actions are denied.
func Authorize(p Principal, a Action, r Resource) error {
	if !p.Authenticated {
		return ErrUnauthenticated
	}
	check, ok := policy[a]
	if !ok {
		return &DeniedError{Action: a, Reason: "unknown action"}
	}
	if allowed, reason := check(p, r); !allowed {
		return &DeniedError{Action: a, Reason: reason}
	}
	return nil
}

// Can is the boolean form of Authorize.
func Can(p Principal, a Action, r Resource) bool {
	return Authorize(p, a, r) == nil
}

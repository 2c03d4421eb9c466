package api

import (
	"net/http"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/core/reporting"
	"github.com/artpar/keyhours/internal/shell/api/openapi"
	"github.com/artpar/keyhours/internal/shell/workflow"
)

// registerDocs describes the /api/v1 routes for /openapi.json.
func (h *Handler) registerDocs() {
	const v1 = "/api/v1"
	type route = openapi.Route
	var (
		user     = domain.User{}
		project  = domain.Project{}
		app      = domain.Application{}
		hourLog  = domain.HourLog{}
		count    = CountResponse{}
		created  = http.StatusCreated
		noBody   = http.StatusNoContent
		hourList = []string{"user_id", "project_id", "application_id", "status", "from", "to", "year", "month"}
	)

	h.spec.Register(
		route{Method: "POST", Path: v1 + "/auth/token", Tag: "auth", Summary: "Issue a bearer token", Request: TokenRequest{}, Response: workflow.Token{}, Public: true},

		route{Method: "GET", Path: v1 + "/users", Tag: "users", Summary: "List users", Response: user, List: true, Query: []string{"user_type", "active", "search"}},
		route{Method: "POST", Path: v1 + "/users", Tag: "users", Summary: "Register a user", Request: RegisterUserRequest{}, Response: user, Status: created},
		route{Method: "POST", Path: v1 + "/users/students", Tag: "users", Summary: "Create a student with a temporary password", Request: CreateStudentRequest{}, Response: workflow.NewStudent{}, Status: created},
		route{Method: "GET", Path: v1 + "/users/stats", Tag: "users", Summary: "User counts", Response: reporting.UserStats{}},
		route{Method: "GET", Path: v1 + "/users/me", Tag: "users", Summary: "Current user", Response: user},
		route{Method: "GET", Path: v1 + "/users/me/dashboard", Tag: "users", Summary: "Current user dashboard", Response: reporting.UserDashboard{}},
		route{Method: "GET", Path: v1 + "/users/{id}", Tag: "users", Summary: "Get a user", Response: user},
		route{Method: "PATCH", Path: v1 + "/users/{id}", Tag: "users", Summary: "Update a user", Request: UpdateUserRequest{}, Response: user},
		route{Method: "GET", Path: v1 + "/users/{id}/dashboard", Tag: "users", Summary: "User dashboard", Response: reporting.UserDashboard{}},
		route{Method: "GET", Path: v1 + "/users/{id}/scholarships", Tag: "scholarships", Summary: "Scholarships held by a user", Response: domain.UserScholarship{}, List: true},
		route{Method: "POST", Path: v1 + "/users/{id}/scholarships", Tag: "scholarships", Summary: "Assign a scholarship", Request: AssignScholarshipRequest{}, Response: domain.UserScholarship{}, Status: created},

		route{Method: "GET", Path: v1 + "/scholarships", Tag: "scholarships", Summary: "List scholarships", Response: domain.Scholarship{}, List: true},
		route{Method: "POST", Path: v1 + "/scholarships", Tag: "scholarships", Summary: "Create a scholarship", Request: ScholarshipRequest{}, Response: domain.Scholarship{}, Status: created},
		route{Method: "GET", Path: v1 + "/scholarships/{id}", Tag: "scholarships", Summary: "Get a scholarship", Response: domain.Scholarship{}},
		route{Method: "GET", Path: v1 + "/user-scholarships/{id}/progress", Tag: "scholarships", Summary: "Scholarship hour progress", Response: reporting.ScholarshipProgress{}},

		route{Method: "GET", Path: v1 + "/categories", Tag: "projects", Summary: "List categories", Response: domain.ProjectCategory{}, List: true},
		route{Method: "POST", Path: v1 + "/categories", Tag: "projects", Summary: "Create a category", Request: CategoryRequest{}, Response: domain.ProjectCategory{}, Status: created},
		route{Method: "GET", Path: v1 + "/projects", Tag: "projects", Summary: "List projects", Response: project, List: true, Query: []string{"manager_id", "category_id", "visibility", "active", "has_spots", "open_on"}},
		route{Method: "POST", Path: v1 + "/projects", Tag: "projects", Summary: "Create a project", Request: ProjectRequest{}, Response: project, Status: created},
		route{Method: "GET", Path: v1 + "/projects/public", Tag: "projects", Summary: "Newest listed projects", Response: project, List: true, Public: true},
		route{Method: "GET", Path: v1 + "/projects/mine", Tag: "projects", Summary: "Projects the caller belongs to", Response: project, List: true},
		route{Method: "GET", Path: v1 + "/projects/convocatorias", Tag: "projects", Summary: "Open calls accepting applications", Response: project, List: true},
		route{Method: "GET", Path: v1 + "/projects/dashboard", Tag: "projects", Summary: "Project dashboard", Response: reporting.ProjectDashboard{}},
		route{Method: "GET", Path: v1 + "/projects/{id}", Tag: "projects", Summary: "Get a project", Response: workflow.ProjectDetail{}},
		route{Method: "PATCH", Path: v1 + "/projects/{id}", Tag: "projects", Summary: "Update a project", Request: UpdateProjectRequest{}, Response: project},
		route{Method: "DELETE", Path: v1 + "/projects/{id}", Tag: "projects", Summary: "Delete a project", Status: noBody},
		route{Method: "POST", Path: v1 + "/projects/{id}/publish", Tag: "projects", Summary: "Change visibility", Request: PublishRequest{}, Response: project},
		route{Method: "POST", Path: v1 + "/projects/{id}/join", Tag: "projects", Summary: "Join a project", Response: project},
		route{Method: "POST", Path: v1 + "/projects/{id}/leave", Tag: "projects", Summary: "Leave a project", Response: project},
		route{Method: "GET", Path: v1 + "/projects/{id}/is-member", Tag: "projects", Summary: "Caller membership", Response: MembershipResponse{}},
		route{Method: "GET", Path: v1 + "/projects/{id}/stats", Tag: "projects", Summary: "Project statistics", Response: reporting.ProjectStats{}},
		route{Method: "GET", Path: v1 + "/projects/{id}/members", Tag: "projects", Summary: "List members", Response: user, List: true},
		route{Method: "POST", Path: v1 + "/projects/{id}/members", Tag: "projects", Summary: "Add a member", Request: MemberRequest{}, Response: project},
		route{Method: "DELETE", Path: v1 + "/projects/{id}/members/{userID}", Tag: "projects", Summary: "Remove a member", Response: project},
		route{Method: "GET", Path: v1 + "/projects/{id}/requirements", Tag: "projects", Summary: "List requirements", Response: domain.ProjectRequirement{}, List: true},
		route{Method: "POST", Path: v1 + "/projects/{id}/requirements", Tag: "projects", Summary: "Add a requirement", Request: RequirementRequest{}, Response: domain.ProjectRequirement{}, Status: created},
		route{Method: "GET", Path: v1 + "/projects/{id}/documents", Tag: "projects", Summary: "List documents", Response: domain.ProjectDocument{}, List: true},
		route{Method: "POST", Path: v1 + "/projects/{id}/documents", Tag: "projects", Summary: "Attach a document reference", Request: DocumentRequest{}, Response: domain.ProjectDocument{}, Status: created},

		route{Method: "GET", Path: v1 + "/applications", Tag: "applications", Summary: "List applications", Response: app, List: true, Query: []string{"user_id", "project_id", "status"}},
		route{Method: "POST", Path: v1 + "/applications", Tag: "applications", Summary: "Apply to a project", Request: ApplicationRequest{}, Response: app, Status: created},
		route{Method: "POST", Path: v1 + "/applications/bulk", Tag: "applications", Summary: "Bulk approve, reject or cancel", Request: BulkApplicationRequest{}, Response: count},
		route{Method: "GET", Path: v1 + "/applications/stats", Tag: "applications", Summary: "Application counts", Response: workflow.ApplicationStats{}, Query: []string{"project_id"}},
		route{Method: "GET", Path: v1 + "/applications/dashboard", Tag: "applications", Summary: "Application dashboard", Response: reporting.ApplicationDashboard{}},
		route{Method: "GET", Path: v1 + "/applications/{id}", Tag: "applications", Summary: "Get an application", Response: workflow.ApplicationDetail{}},
		route{Method: "POST", Path: v1 + "/applications/{id}/review", Tag: "applications", Summary: "Approve or reject", Request: StatusRequest{}, Response: app},
		route{Method: "POST", Path: v1 + "/applications/{id}/status", Tag: "applications", Summary: "Move to a new status", Request: StatusRequest{}, Response: app},
		route{Method: "POST", Path: v1 + "/applications/{id}/cancel", Tag: "applications", Summary: "Cancel own application", Response: app},
		route{Method: "POST", Path: v1 + "/applications/{id}/evaluations", Tag: "applications", Summary: "Evaluate an application", Request: EvaluationRequest{}, Response: domain.Evaluation{}, Status: created},

		route{Method: "GET", Path: v1 + "/notifications", Tag: "notifications", Summary: "List own notifications", Response: domain.Notification{}, List: true, Query: []string{"unread"}},
		route{Method: "POST", Path: v1 + "/notifications/{id}/read", Tag: "notifications", Summary: "Mark read", Status: noBody},

		route{Method: "GET", Path: v1 + "/hours", Tag: "hours", Summary: "List hour logs", Response: hourLog, List: true, Query: hourList},
		route{Method: "POST", Path: v1 + "/hours", Tag: "hours", Summary: "Log hours", Request: HourLogRequest{}, Response: hourLog, Status: created},
		route{Method: "POST", Path: v1 + "/hours/bulk-review", Tag: "hours", Summary: "Bulk review pending logs", Request: BulkHourReviewRequest{}, Response: count},
		route{Method: "GET", Path: v1 + "/hours/stats", Tag: "hours", Summary: "Hour totals", Response: reporting.HourStats{}, Query: []string{"user_id"}},
		route{Method: "GET", Path: v1 + "/hours/dashboard", Tag: "hours", Summary: "Hour dashboard", Response: reporting.HourDashboard{}},
		route{Method: "GET", Path: v1 + "/hours/reports/monthly", Tag: "reports", Summary: "Monthly report", Response: reporting.MonthlyReport{}, Query: []string{"user_id", "year", "month"}},
		route{Method: "GET", Path: v1 + "/hours/reports/yearly", Tag: "reports", Summary: "Yearly report", Response: reporting.YearlyReport{}, Query: []string{"user_id", "year"}},
		route{Method: "GET", Path: v1 + "/hours/{id}", Tag: "hours", Summary: "Get an hour log", Response: hourLog},
		route{Method: "PATCH", Path: v1 + "/hours/{id}", Tag: "hours", Summary: "Edit a pending hour log", Request: HourLogRequest{}, Response: hourLog},
		route{Method: "DELETE", Path: v1 + "/hours/{id}", Tag: "hours", Summary: "Delete a pending hour log", Status: noBody},
		route{Method: "POST", Path: v1 + "/hours/{id}/review", Tag: "hours", Summary: "Approve or reject", Request: HourReviewRequest{}, Response: hourLog},
		route{Method: "POST", Path: v1 + "/hours/{id}/resubmit", Tag: "hours", Summary: "Resubmit a rejected log", Response: hourLog},
		route{Method: "GET", Path: v1 + "/hours/{id}/documents", Tag: "hours", Summary: "List evidence documents", Response: domain.HourLogDocument{}, List: true},
		route{Method: "POST", Path: v1 + "/hours/{id}/documents", Tag: "hours", Summary: "Attach an evidence document", Request: HourDocumentRequest{}, Response: domain.HourLogDocument{}, Status: created},

		route{Method: "GET", Path: v1 + "/goals", Tag: "goals", Summary: "List own goals", Response: domain.HourGoal{}, List: true},
		route{Method: "POST", Path: v1 + "/goals", Tag: "goals", Summary: "Create a goal", Request: GoalRequest{}, Response: domain.HourGoal{}, Status: created},
		route{Method: "GET", Path: v1 + "/goals/{id}/progress", Tag: "goals", Summary: "Goal progress", Response: domain.GoalProgress{}},
		route{Method: "GET", Path: v1 + "/summaries", Tag: "reports", Summary: "Persisted monthly summaries", Response: domain.HourSummary{}, List: true, Query: []string{"user_id", "year"}},
		route{Method: "POST", Path: v1 + "/summaries/refresh", Tag: "reports", Summary: "Recompute monthly summaries", Request: RefreshRequest{}, Response: count},
	)
}

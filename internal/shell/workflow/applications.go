package workflow

import (
	"context"

	"github.com/artpar/keyhours/internal/core/auth"
	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/core/reporting"
	"github.com/artpar/keyhours/internal/shell/store"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// =============================================================================
// Transition Side Effects
// =============================================================================

// applicationEffect runs inside the transition's transaction after the
// status has changed. from is the status the application left.
type applicationEffect func(ctx context.Context, tx store.Store, app *domain.Application, project *domain.Project, from domain.ApplicationStatus) error

func (s *Service) registerApplicationEffects() {
	s.onEnter = map[domain.ApplicationStatus]applicationEffect{
		domain.ApplicationApproved:  s.admitApplicant,
		domain.ApplicationRejected:  s.releaseApplicant,
		domain.ApplicationCancelled: s.releaseApplicant,
	}
}

// admitApplicant adds the applicant to the project's members when absent
// and resyncs the participant count. Capacity is checked against the row
// read inside the transaction; the CHECK constraint backs it.
func (s *Service) admitApplicant(ctx context.Context, tx store.Store, app *domain.Application, project *domain.Project, _ domain.ApplicationStatus) error {
	member, err := tx.IsMember(ctx, project.ID, app.UserID)
	if err != nil {
		return err
	}
	if member {
		return nil
	}
	if err := project.CheckCapacity(); err != nil {
		return err
	}
	if err := tx.AddMember(ctx, project.ID, app.UserID, s.clock()); err != nil {
		return err
	}
	current, err := tx.SyncParticipants(ctx, project.ID)
	if err != nil {
		return err
	}
	project.CurrentParticipants = current
	return nil
}

// releaseApplicant removes the applicant's membership when the application
// held it.
func (s *Service) releaseApplicant(ctx context.Context, tx store.Store, app *domain.Application, project *domain.Project, from domain.ApplicationStatus) error {
	if !from.HoldsMembership() {
		return nil
	}
	if _, err := tx.RemoveMember(ctx, project.ID, app.UserID); err != nil {
		return err
	}
	current, err := tx.SyncParticipants(ctx, project.ID)
	if err != nil {
		return err
	}
	project.CurrentParticipants = current
	return nil
}

// commitTransition persists app after it moved from -> app.Status: side
// effects, the row itself and the notification.
func (s *Service) commitTransition(ctx context.Context, tx store.Store, app *domain.Application, project *domain.Project, from domain.ApplicationStatus) error {
	if effect, ok := s.onEnter[app.Status]; ok {
		if err := effect(ctx, tx, app, project, from); err != nil {
			return err
		}
	}
	if err := tx.UpdateApplication(ctx, app); err != nil {
		return err
	}
	if err := s.notify(ctx, tx, domain.NotificationForStatus(app, project, app.Status, s.clock())); err != nil {
		return err
	}
	s.metrics.Transition(domain.ApplicationMachine.Name(), string(from), string(app.Status))
	return nil
}

// transitionAction is the policy action gating a move into status to.
func transitionAction(to domain.ApplicationStatus) auth.Action {
	if to == domain.ApplicationCancelled {
		return auth.ActionCancelApplication
	}
	return auth.ActionReviewApplication
}

// =============================================================================
// Submission
// =============================================================================

// SubmitApplicationInput is a student's application to a project.
type SubmitApplicationInput struct {
	ProjectID int64
	domain.ApplicationInput
}

// SubmitApplication creates a pending application for the principal.
func (s *Service) SubmitApplication(ctx context.Context, p auth.Principal, in SubmitApplicationInput) (*domain.Application, error) {
	if err := auth.Authorize(p, auth.ActionSubmitApplication, auth.Self(p)); err != nil {
		return nil, err
	}
	app, err := domain.NewApplication(p.UserID, in.ProjectID, in.ApplicationInput)
	if err != nil {
		return nil, err
	}
	app.AppliedAt = s.clock()
	app.UpdatedAt = app.AppliedAt

	err = s.inTx(ctx, func(tx store.Store) error {
		project, err := tx.GetProject(ctx, in.ProjectID)
		if err != nil {
			return referenced("project_id", err)
		}

		_, err = tx.FindActiveApplication(ctx, p.UserID, project.ID)
		switch {
		case err == nil:
			return domain.NewValidationError("project_id", domain.ErrDuplicateApplication)
		case !store.IsNotFound(err):
			return err
		}

		if err := project.CheckAcceptingApplications(s.clock()); err != nil {
			return err
		}
		if err := tx.CreateApplication(ctx, app); err != nil {
			return duplicate("project_id", domain.ErrDuplicateApplication, err)
		}
		return s.notify(ctx, tx, domain.NotificationForStatus(app, project, domain.ApplicationPending, s.clock()))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("application submitted",
		zap.Int64("application_id", app.ID),
		zap.Int64("project_id", app.ProjectID),
		zap.Int64("user_id", app.UserID),
	)
	return app, nil
}

// =============================================================================
// Review and Transitions
// =============================================================================

// ReviewApplication records an administrator's decision. to must be
// approved or rejected; rejecting an approved application withdraws the
// membership.
func (s *Service) ReviewApplication(ctx context.Context, p auth.Principal, id int64, to domain.ApplicationStatus, notes string) (*domain.Application, error) {
	if err := auth.Authorize(p, auth.ActionReviewApplication, auth.Resource{}); err != nil {
		return nil, err
	}

	var app *domain.Application
	err := s.inTx(ctx, func(tx store.Store) error {
		var err error
		app, err = tx.GetApplication(ctx, id)
		if err != nil {
			return err
		}
		project, err := tx.GetProject(ctx, app.ProjectID)
		if err != nil {
			return err
		}
		from := app.Status
		if err := app.Review(p.UserID, to, notes, s.clock()); err != nil {
			return err
		}
		return s.commitTransition(ctx, tx, app, project, from)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("application reviewed",
		zap.Int64("application_id", app.ID),
		zap.String("status", string(app.Status)),
		zap.Int64("reviewer_id", p.UserID),
	)
	return app, nil
}

// UpdateApplicationStatus moves an application along its lifecycle. Moves
// into cancelled are reserved to the applicant; all others to
// administrators.
func (s *Service) UpdateApplicationStatus(ctx context.Context, p auth.Principal, id int64, to domain.ApplicationStatus, notes string) (*domain.Application, error) {
	if to == domain.ApplicationCancelled {
		return s.CancelApplication(ctx, p, id)
	}
	if to == domain.ApplicationApproved || to == domain.ApplicationRejected {
		return s.ReviewApplication(ctx, p, id, to, notes)
	}
	if err := auth.Authorize(p, transitionAction(to), auth.Resource{}); err != nil {
		return nil, err
	}

	var app *domain.Application
	err := s.inTx(ctx, func(tx store.Store) error {
		var err error
		app, err = tx.GetApplication(ctx, id)
		if err != nil {
			return err
		}
		project, err := tx.GetProject(ctx, app.ProjectID)
		if err != nil {
			return err
		}
		from := app.Status
		if err := app.Transition(to, s.clock()); err != nil {
			return err
		}
		if notes != "" {
			app.ReviewNotes = notes
		}
		return s.commitTransition(ctx, tx, app, project, from)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// CancelApplication lets the applicant withdraw a pending, approved or
// in-progress application.
func (s *Service) CancelApplication(ctx context.Context, p auth.Principal, id int64) (*domain.Application, error) {
	var app *domain.Application
	err := s.inTx(ctx, func(tx store.Store) error {
		var err error
		app, err = tx.GetApplication(ctx, id)
		if err != nil {
			return err
		}
		if err := auth.Authorize(p, auth.ActionCancelApplication, auth.OwnedBy(app.UserID)); err != nil {
			return err
		}
		project, err := tx.GetProject(ctx, app.ProjectID)
		if err != nil {
			return err
		}
		from := app.Status
		if err := app.Withdraw(s.clock()); err != nil {
			return err
		}
		return s.commitTransition(ctx, tx, app, project, from)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("application cancelled", zap.Int64("application_id", app.ID), zap.Int64("user_id", p.UserID))
	return app, nil
}

// BulkAction names a bulk application operation.
type BulkAction string

const (
	BulkApprove BulkAction = "approve"
	BulkReject  BulkAction = "reject"
	BulkCancel  BulkAction = "cancel"
)

var bulkTargets = map[BulkAction]domain.ApplicationStatus{
	BulkApprove: domain.ApplicationApproved,
	BulkReject:  domain.ApplicationRejected,
	BulkCancel:  domain.ApplicationCancelled,
}

// BulkApplicationAction applies action to every pending application in ids
// and returns how many changed. Approve and reject follow the review rule,
// cancel the withdrawal rule. Unknown ids fail the whole call; non-pending
// rows are skipped.
func (s *Service) BulkApplicationAction(ctx context.Context, p auth.Principal, ids []int64, action BulkAction, notes string) (int, error) {
	if err := auth.Authorize(p, auth.ActionReviewApplication, auth.Resource{}); err != nil {
		return 0, err
	}
	to, ok := bulkTargets[action]
	if !ok {
		return 0, domain.NewValidationError("action", domain.ErrInvalidEnum)
	}
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return 0, domain.NewValidationError("application_ids", domain.ErrRequired)
	}

	affected := 0
	err := s.inTx(ctx, func(tx store.Store) error {
		apps, err := tx.GetApplications(ctx, ids)
		if err != nil {
			return err
		}

		projects := make(map[int64]*domain.Project)
		for i := range apps {
			app := &apps[i]
			if app.Status != domain.ApplicationPending {
				continue
			}
			project, ok := projects[app.ProjectID]
			if !ok {
				if project, err = tx.GetProject(ctx, app.ProjectID); err != nil {
					return err
				}
				projects[app.ProjectID] = project
			}

			from := app.Status
			if to == domain.ApplicationCancelled {
				err = app.Withdraw(s.clock())
			} else {
				err = app.Review(p.UserID, to, notes, s.clock())
			}
			if err != nil {
				return err
			}
			if err := s.commitTransition(ctx, tx, app, project, from); err != nil {
				return err
			}
			affected++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.Bulk("application."+string(action), affected)
	s.logger.Info("bulk application action",
		zap.String("action", string(action)),
		zap.Int("requested", len(ids)),
		zap.Int("affected", affected),
	)
	return affected, nil
}

// =============================================================================
// Queries
// =============================================================================

// ApplicationDetail is an application with its derived progress.
type ApplicationDetail struct {
	domain.Application
	Progress    reporting.ApplicationProgress `json:"progress"`
	Evaluations []domain.Evaluation           `json:"evaluations,omitempty"`
}

// GetApplication returns an application visible to the principal.
// Evaluations are included for administrators.
func (s *Service) GetApplication(ctx context.Context, p auth.Principal, id int64) (*ApplicationDetail, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, auth.ActionViewApplication, auth.OwnedBy(app.UserID)); err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, app.ProjectID)
	if err != nil {
		return nil, err
	}

	detail := &ApplicationDetail{
		Application: *app,
		Progress:    reporting.NewApplicationProgress(*app, *project),
	}
	if auth.Can(p, auth.ActionEvaluateApplication, auth.Resource{}) {
		if detail.Evaluations, err = s.store.ListEvaluations(ctx, app.ID); err != nil {
			return nil, err
		}
	}
	return detail, nil
}

// ListApplications lists applications. Students only ever see their own.
func (s *Service) ListApplications(ctx context.Context, p auth.Principal, filter store.ApplicationFilter, opts store.ListOptions) ([]domain.Application, error) {
	filter.UserID = ownScope(p, filter.UserID)
	if err := auth.Authorize(p, auth.ActionViewApplication, auth.OwnedBy(filter.UserID)); err != nil {
		return nil, err
	}
	return s.store.ListApplications(ctx, filter, opts)
}

// ApplicationStats are the counts of applications in every status.
type ApplicationStats struct {
	Total    int                              `json:"total_applications"`
	ByStatus map[domain.ApplicationStatus]int `json:"by_status"`
}

// ApplicationStats counts applications by status, optionally for one
// project.
func (s *Service) ApplicationStats(ctx context.Context, p auth.Principal, projectID int64) (*ApplicationStats, error) {
	if err := auth.Authorize(p, auth.ActionViewFleetStats, auth.Resource{}); err != nil {
		return nil, err
	}
	rows, err := s.store.CountApplicationsByStatus(ctx, store.ApplicationFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	counts := reporting.CountsByStatus(domain.ApplicationMachine.States(), rows)
	return &ApplicationStats{Total: reporting.Total(counts), ByStatus: counts}, nil
}

// ApplicationDashboard returns fleet-wide figures to administrators and the
// principal's own figures to students.
func (s *Service) ApplicationDashboard(ctx context.Context, p auth.Principal) (*reporting.ApplicationDashboard, error) {
	if err := auth.Authorize(p, auth.ActionViewReports, auth.Self(p)); err != nil {
		return nil, err
	}

	dash := &reporting.ApplicationDashboard{Scope: "student"}
	filter := store.ApplicationFilter{UserID: p.UserID}
	if p.IsAdmin() {
		dash.Scope = "admin"
		filter = store.ApplicationFilter{}
		popular, err := s.store.PopularProjects(ctx, s.config.DashboardTopN)
		if err != nil {
			return nil, err
		}
		dash.TopProjects = reporting.TopN(popular, s.config.DashboardTopN)
	}

	rows, err := s.store.CountApplicationsByStatus(ctx, filter)
	if err != nil {
		return nil, err
	}
	dash.ByStatus = reporting.CountsByStatus(domain.ApplicationMachine.States(), rows)
	dash.Total = reporting.Total(dash.ByStatus)

	if dash.UnreadNotifications, err = s.store.CountUnreadNotifications(ctx, p.UserID); err != nil {
		return nil, err
	}
	return dash, nil
}

// =============================================================================
// Evaluations
// =============================================================================

// EvaluationInput is an administrator's assessment of an application.
type EvaluationInput struct {
	Score          int
	Comments       string
	Recommendation domain.Recommendation
}

// EvaluateApplication records one evaluation per administrator.
func (s *Service) EvaluateApplication(ctx context.Context, p auth.Principal, id int64, in EvaluationInput) (*domain.Evaluation, error) {
	if err := auth.Authorize(p, auth.ActionEvaluateApplication, auth.Resource{}); err != nil {
		return nil, err
	}
	eval := &domain.Evaluation{
		ApplicationID:  id,
		EvaluatorID:    p.UserID,
		Score:          in.Score,
		Comments:       in.Comments,
		Recommendation: in.Recommendation,
		CreatedAt:      s.clock(),
	}
	if err := eval.Validate(); err != nil {
		return nil, err
	}

	err := s.inTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetApplication(ctx, id); err != nil {
			return err
		}
		if err := tx.CreateEvaluation(ctx, eval); err != nil {
			return duplicate("application_id", errAlreadyEvaluated, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return eval, nil
}

// =============================================================================
// Notifications
// =============================================================================

// ListNotifications lists the principal's notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, p auth.Principal, unreadOnly bool, opts store.ListOptions) ([]domain.Notification, error) {
	if err := auth.Authorize(p, auth.ActionReadNotification, auth.Self(p)); err != nil {
		return nil, err
	}
	return s.store.ListNotifications(ctx, p.UserID, unreadOnly, opts)
}

// MarkNotificationRead marks one of the principal's notifications read.
func (s *Service) MarkNotificationRead(ctx context.Context, p auth.Principal, id int64) error {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.Authorize(p, auth.ActionReadNotification, auth.OwnedBy(n.RecipientID)); err != nil {
		return err
	}
	if n.IsRead {
		return nil
	}
	return s.store.MarkNotificationRead(ctx, id)
}

package workflow

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/artpar/keyhours/internal/core/auth"
	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/core/reporting"
	"github.com/artpar/keyhours/internal/shell/store"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// =============================================================================
// Logging Hours
// =============================================================================

// LogHours records a pending entry for the principal. The entry must
// reference an approved or in-progress application of the principal's, or
// the principal must be a member of the project.
func (s *Service) LogHours(ctx context.Context, p auth.Principal, in domain.HourLogInput) (*domain.HourLog, error) {
	if err := auth.Authorize(p, auth.ActionLogHours, auth.Self(p)); err != nil {
		return nil, err
	}
	log, err := domain.NewHourLog(p.UserID, in)
	if err != nil {
		return nil, err
	}
	log.CreatedAt = s.clock()
	log.UpdatedAt = log.CreatedAt

	err = s.inTx(ctx, func(tx store.Store) error {
		if err := s.checkEligibility(ctx, tx, p.UserID, in); err != nil {
			return err
		}
		return tx.CreateHourLog(ctx, log)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("hours logged",
		zap.Int64("hour_log_id", log.ID),
		zap.Int64("user_id", log.UserID),
		zap.Int64("project_id", log.ProjectID),
		zap.Stringer("hours", log.Hours),
	)
	return log, nil
}

func (s *Service) checkEligibility(ctx context.Context, tx store.Store, userID int64, in domain.HourLogInput) error {
	project, err := tx.GetProject(ctx, in.ProjectID)
	if err != nil {
		return referenced("project_id", err)
	}
	var app *domain.Application
	if in.ApplicationID != nil {
		if app, err = tx.GetApplication(ctx, *in.ApplicationID); err != nil {
			return referenced("application_id", err)
		}
	}
	member, err := tx.IsMember(ctx, project.ID, userID)
	if err != nil {
		return err
	}
	return domain.CheckHourLogEligibility(in, userID, project, app, member)
}

// GetHourLog returns an entry visible to the principal.
func (s *Service) GetHourLog(ctx context.Context, p auth.Principal, id int64) (*domain.HourLog, error) {
	log, err := s.store.GetHourLog(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, auth.ActionViewHourLog, auth.OwnedBy(log.UserID)); err != nil {
		return nil, err
	}
	return log, nil
}

// ListHourLogs lists entries. Students only see their own.
func (s *Service) ListHourLogs(ctx context.Context, p auth.Principal, filter store.HourFilter, opts store.ListOptions) ([]domain.HourLog, error) {
	filter.UserID = ownScope(p, filter.UserID)
	if err := auth.Authorize(p, auth.ActionViewHourLog, auth.OwnedBy(filter.UserID)); err != nil {
		return nil, err
	}
	return s.store.ListHourLogs(ctx, filter, opts)
}

// UpdateHourLog replaces the fields of the principal's pending entry.
func (s *Service) UpdateHourLog(ctx context.Context, p auth.Principal, id int64, in domain.HourLogInput) (*domain.HourLog, error) {
	var log *domain.HourLog
	err := s.inTx(ctx, func(tx store.Store) error {
		var err error
		if log, err = tx.GetHourLog(ctx, id); err != nil {
			return err
		}
		if err := auth.Authorize(p, auth.ActionEditHourLog, auth.OwnedBy(log.UserID)); err != nil {
			return err
		}
		if in.ProjectID == 0 {
			in.ProjectID = log.ProjectID
		}
		if err := log.Apply(in, s.clock()); err != nil {
			return err
		}
		if err := s.checkEligibility(ctx, tx, log.UserID, in); err != nil {
			return err
		}
		return tx.UpdateHourLog(ctx, log)
	})
	if err != nil {
		return nil, err
	}
	return log, nil
}

// DeleteHourLog removes the principal's pending entry.
func (s *Service) DeleteHourLog(ctx context.Context, p auth.Principal, id int64) error {
	return s.inTx(ctx, func(tx store.Store) error {
		log, err := tx.GetHourLog(ctx, id)
		if err != nil {
			return err
		}
		if err := auth.Authorize(p, auth.ActionEditHourLog, auth.OwnedBy(log.UserID)); err != nil {
			return err
		}
		if log.Status != domain.HourPending {
			return domain.Invalidf("status", "only pending entries can be deleted")
		}
		return tx.DeleteHourLog(ctx, id)
	})
}

// =============================================================================
// Review
// =============================================================================

// ReviewHourLog approves or rejects a pending entry. Approval recomputes
// the hours of the referenced application and of the author's active
// scholarships in the same transaction.
func (s *Service) ReviewHourLog(ctx context.Context, p auth.Principal, id int64, to domain.HourStatus, notes string) (*domain.HourLog, error) {
	if err := auth.Authorize(p, auth.ActionReviewHourLog, auth.Resource{}); err != nil {
		return nil, err
	}

	var log *domain.HourLog
	err := s.inTx(ctx, func(tx store.Store) error {
		var err error
		if log, err = tx.GetHourLog(ctx, id); err != nil {
			return err
		}
		return s.reviewHourLog(ctx, tx, p, log, to, notes)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("hour log reviewed",
		zap.Int64("hour_log_id", log.ID),
		zap.String("status", string(log.Status)),
		zap.Int64("reviewer_id", p.UserID),
	)
	return log, nil
}

func (s *Service) reviewHourLog(ctx context.Context, tx store.Store, p auth.Principal, log *domain.HourLog, to domain.HourStatus, notes string) error {
	from := log.Status
	if err := log.Review(p.UserID, to, notes, s.clock()); err != nil {
		return err
	}
	if err := tx.UpdateHourLog(ctx, log); err != nil {
		return err
	}
	if log.Status == domain.HourApproved {
		if err := s.creditApprovedHours(ctx, tx, log); err != nil {
			return err
		}
	}
	s.metrics.Transition(domain.HourLogMachine.Name(), string(from), string(log.Status))
	return nil
}

// creditApprovedHours resyncs the counters derived from the approved ledger.
func (s *Service) creditApprovedHours(ctx context.Context, tx store.Store, log *domain.HourLog) error {
	if log.ApplicationID != nil {
		hours, err := tx.SyncApplicationHours(ctx, *log.ApplicationID)
		if err != nil {
			return err
		}
		app, err := tx.GetApplication(ctx, *log.ApplicationID)
		if err != nil {
			return err
		}
		app.HoursCompleted = hours
		project, err := tx.GetProject(ctx, app.ProjectID)
		if err != nil {
			return err
		}
		if err := s.notify(ctx, tx, domain.HoursUpdatedNotification(app, project, s.clock())); err != nil {
			return err
		}
	}
	return tx.SyncScholarshipHours(ctx, log.UserID, s.clock().Year())
}

// BulkReviewHourLogs reviews every pending entry in ids and returns how
// many changed. Unknown ids fail the whole call.
func (s *Service) BulkReviewHourLogs(ctx context.Context, p auth.Principal, ids []int64, to domain.HourStatus, notes string) (int, error) {
	if err := auth.Authorize(p, auth.ActionReviewHourLog, auth.Resource{}); err != nil {
		return 0, err
	}
	if to != domain.HourApproved && to != domain.HourRejected {
		return 0, domain.Invalidf("status", "review status must be %q or %q", domain.HourApproved, domain.HourRejected)
	}
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return 0, domain.NewValidationError("hour_log_ids", domain.ErrRequired)
	}

	affected := 0
	err := s.inTx(ctx, func(tx store.Store) error {
		logs, err := tx.GetHourLogs(ctx, ids)
		if err != nil {
			return err
		}
		for i := range logs {
			if logs[i].Status != domain.HourPending {
				continue
			}
			if err := s.reviewHourLog(ctx, tx, p, &logs[i], to, notes); err != nil {
				return err
			}
			affected++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.Bulk("hour_log."+string(to), affected)
	s.logger.Info("bulk hour review",
		zap.String("status", string(to)),
		zap.Int("requested", len(ids)),
		zap.Int("affected", affected),
	)
	return affected, nil
}

// ResubmitHourLog returns the principal's rejected entry to pending.
func (s *Service) ResubmitHourLog(ctx context.Context, p auth.Principal, id int64) (*domain.HourLog, error) {
	var log *domain.HourLog
	err := s.inTx(ctx, func(tx store.Store) error {
		var err error
		if log, err = tx.GetHourLog(ctx, id); err != nil {
			return err
		}
		if err := auth.Authorize(p, auth.ActionResubmitHourLog, auth.OwnedBy(log.UserID)); err != nil {
			return err
		}
		from := log.Status
		if err := log.Resubmit(s.clock()); err != nil {
			return err
		}
		if err := tx.UpdateHourLog(ctx, log); err != nil {
			return err
		}
		s.metrics.Transition(domain.HourLogMachine.Name(), string(from), string(log.Status))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return log, nil
}

// =============================================================================
// Evidence
// =============================================================================

// HourDocumentInput references an evidence file. An empty Reference gets a
// generated storage key.
type HourDocumentInput struct {
	Title        string
	DocumentType domain.DocumentType
	Reference    string
	Description  string
}

// AddHourLogDocument attaches evidence to an entry. The entry's owner and
// administrators may attach.
func (s *Service) AddHourLogDocument(ctx context.Context, p auth.Principal, hourLogID int64, in HourDocumentInput) (*domain.HourLogDocument, error) {
	log, err := s.store.GetHourLog(ctx, hourLogID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, auth.ActionAttachEvidence, auth.OwnedBy(log.UserID)); err != nil {
		return nil, err
	}

	d := &domain.HourLogDocument{
		HourLogID:    log.ID,
		Title:        strings.TrimSpace(in.Title),
		DocumentType: in.DocumentType,
		Reference:    strings.TrimSpace(in.Reference),
		Description:  in.Description,
		UploadedBy:   p.UserID,
		UploadedAt:   s.clock(),
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.Reference == "" {
		d.Reference = path.Join("hours", fmt.Sprint(log.ID), "documents", uuid.NewString()+path.Ext(d.Title))
	}
	if err := s.store.CreateHourLogDocument(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("hour log evidence attached",
		zap.Int64("hour_log_id", log.ID),
		zap.String("document_type", string(d.DocumentType)),
	)
	return d, nil
}

// ListHourLogDocuments lists the evidence of an entry visible to the
// principal.
func (s *Service) ListHourLogDocuments(ctx context.Context, p auth.Principal, hourLogID int64) ([]domain.HourLogDocument, error) {
	if _, err := s.GetHourLog(ctx, p, hourLogID); err != nil {
		return nil, err
	}
	return s.store.ListHourLogDocuments(ctx, hourLogID)
}

// =============================================================================
// Reports
// =============================================================================

// HourStats summarizes a user's ledger. userID 0 means the principal.
func (s *Service) HourStats(ctx context.Context, p auth.Principal, userID int64) (*reporting.HourStats, error) {
	userID = lo.Ternary(userID == 0, p.UserID, userID)
	if err := auth.Authorize(p, auth.ActionViewReports, auth.OwnedBy(userID)); err != nil {
		return nil, err
	}

	totals, err := s.store.SumHours(ctx, store.HourFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	now := s.clock()
	month, err := s.store.SumHours(ctx, store.HourFilter{UserID: userID, Year: now.Year(), Month: int(now.Month())})
	if err != nil {
		return nil, err
	}
	year, err := s.store.SumHours(ctx, store.HourFilter{UserID: userID, Year: now.Year()})
	if err != nil {
		return nil, err
	}
	return &reporting.HourStats{
		StatusTotals:      totals,
		CurrentMonthHours: month.ApprovedHours,
		CurrentYearHours:  year.ApprovedHours,
	}, nil
}

func validatePeriod(year, month int) error {
	if year < 1 || year > 9999 {
		return domain.NewValidationError("year", domain.ErrOutOfRange)
	}
	if month < 1 || month > 12 {
		return domain.Invalidf("month", "must be between 1 and 12")
	}
	return nil
}

// MonthlyReport sums a user's entries for one calendar month.
func (s *Service) MonthlyReport(ctx context.Context, p auth.Principal, userID int64, year, month int) (*reporting.MonthlyReport, error) {
	userID = lo.Ternary(userID == 0, p.UserID, userID)
	if err := auth.Authorize(p, auth.ActionViewReports, auth.OwnedBy(userID)); err != nil {
		return nil, err
	}
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}
	totals, err := s.store.SumHours(ctx, store.HourFilter{UserID: userID, Year: year, Month: month})
	if err != nil {
		return nil, err
	}
	report := reporting.NewMonthlyReport(year, month, totals)
	return &report, nil
}

// YearlyReport sums a user's entries for one calendar year with a
// twelve-month breakdown.
func (s *Service) YearlyReport(ctx context.Context, p auth.Principal, userID int64, year int) (*reporting.YearlyReport, error) {
	userID = lo.Ternary(userID == 0, p.UserID, userID)
	if err := auth.Authorize(p, auth.ActionViewReports, auth.OwnedBy(userID)); err != nil {
		return nil, err
	}
	if err := validatePeriod(year, 1); err != nil {
		return nil, err
	}
	filter := store.HourFilter{UserID: userID, Year: year}
	totals, err := s.store.SumHours(ctx, filter)
	if err != nil {
		return nil, err
	}
	buckets, err := s.store.SumHoursByMonth(ctx, filter)
	if err != nil {
		return nil, err
	}
	report := reporting.BuildYearlyReport(year, totals, buckets)
	return &report, nil
}

// HourDashboard returns fleet-wide figures and top contributors to
// administrators, and the principal's own figures and recent entries to
// students.
func (s *Service) HourDashboard(ctx context.Context, p auth.Principal) (*reporting.HourDashboard, error) {
	if err := auth.Authorize(p, auth.ActionViewReports, auth.Self(p)); err != nil {
		return nil, err
	}

	if p.IsAdmin() {
		totals, err := s.store.SumHours(ctx, store.HourFilter{})
		if err != nil {
			return nil, err
		}
		pending, err := s.store.SumHours(ctx, store.HourFilter{Status: []domain.HourStatus{domain.HourPending}})
		if err != nil {
			return nil, err
		}
		top, err := s.store.TopContributors(ctx, s.config.DashboardTopN)
		if err != nil {
			return nil, err
		}
		return &reporting.HourDashboard{
			Scope:          "admin",
			TotalHours:     totals.TotalHours,
			ApprovedHours:  totals.ApprovedHours,
			PendingHours:   totals.PendingHours,
			TotalLogs:      totals.LogsCount,
			PendingReviews: pending.LogsCount,
			TopUsers:       reporting.AsHours(reporting.TopN(top, s.config.DashboardTopN)),
			ProjectsWorked: totals.ProjectsCount,
		}, nil
	}

	totals, err := s.store.SumHours(ctx, store.HourFilter{UserID: p.UserID})
	if err != nil {
		return nil, err
	}
	recent, err := s.store.ListHourLogs(ctx, store.HourFilter{UserID: p.UserID}, store.ListOptions{Limit: s.config.RecentLogsLimit})
	if err != nil {
		return nil, err
	}
	return &reporting.HourDashboard{
		Scope:          "student",
		TotalHours:     totals.TotalHours,
		ApprovedHours:  totals.ApprovedHours,
		PendingHours:   totals.PendingHours,
		TotalLogs:      totals.LogsCount,
		ProjectsWorked: totals.ProjectsCount,
		RecentLogs:     recent,
	}, nil
}

// =============================================================================
// Goals
// =============================================================================

// GoalInput describes a new hour goal.
type GoalInput struct {
	GoalType    domain.GoalType
	ProjectID   *int64
	TargetHours domain.Hours
	StartDate   time.Time
	EndDate     time.Time
	Description string
}

// CreateGoal records a goal for the principal.
func (s *Service) CreateGoal(ctx context.Context, p auth.Principal, in GoalInput) (*domain.HourGoal, error) {
	if err := auth.Authorize(p, auth.ActionManageGoal, auth.Self(p)); err != nil {
		return nil, err
	}
	goal := &domain.HourGoal{
		UserID:      p.UserID,
		GoalType:    in.GoalType,
		ProjectID:   in.ProjectID,
		TargetHours: in.TargetHours,
		StartDate:   domain.DateOf(in.StartDate),
		EndDate:     domain.DateOf(in.EndDate),
		Description: in.Description,
		IsActive:    true,
		CreatedAt:   s.clock(),
	}
	if err := goal.Validate(); err != nil {
		return nil, err
	}
	if goal.ProjectID != nil {
		if _, err := s.store.GetProject(ctx, *goal.ProjectID); err != nil {
			return nil, referenced("project_id", err)
		}
	}
	if err := s.store.CreateGoal(ctx, goal); err != nil {
		return nil, err
	}
	return goal, nil
}

// ListGoals lists the principal's goals.
func (s *Service) ListGoals(ctx context.Context, p auth.Principal) ([]domain.HourGoal, error) {
	if err := auth.Authorize(p, auth.ActionManageGoal, auth.Self(p)); err != nil {
		return nil, err
	}
	return s.store.ListGoals(ctx, p.UserID)
}

// GoalProgress compares the approved hours inside the goal's window, and
// project when set, with its target.
func (s *Service) GoalProgress(ctx context.Context, p auth.Principal, id int64) (*domain.GoalProgress, error) {
	goal, err := s.store.GetGoal(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, auth.ActionViewReports, auth.OwnedBy(goal.UserID)); err != nil {
		return nil, err
	}
	filter := store.HourFilter{
		UserID: goal.UserID,
		From:   &goal.StartDate,
		To:     &goal.EndDate,
	}
	if goal.ProjectID != nil {
		filter.ProjectID = *goal.ProjectID
	}
	totals, err := s.store.SumHours(ctx, filter)
	if err != nil {
		return nil, err
	}
	progress := goal.Progress(totals.ApprovedHours)
	return &progress, nil
}

// =============================================================================
// Summaries
// =============================================================================

// RefreshHourSummaries recomputes the persisted monthly summaries for
// year/month in one transaction and returns the number of rows written.
func (s *Service) RefreshHourSummaries(ctx context.Context, p auth.Principal, year, month int) (int, error) {
	if err := auth.Authorize(p, auth.ActionRefreshSummaries, auth.Resource{}); err != nil {
		return 0, err
	}
	if err := validatePeriod(year, month); err != nil {
		return 0, err
	}
	var n int
	err := s.inTx(ctx, func(tx store.Store) error {
		var err error
		n, err = tx.RefreshHourSummaries(ctx, year, month, s.clock())
		return err
	})
	if err != nil {
		return 0, err
	}
	s.metrics.Bulk("hour_summary.refresh", n)
	s.logger.Debug("hour summaries refreshed", zap.Int("year", year), zap.Int("month", month), zap.Int("rows", n))
	return n, nil
}

// ListHourSummaries returns a user's persisted summaries for year.
func (s *Service) ListHourSummaries(ctx context.Context, p auth.Principal, userID int64, year int) ([]domain.HourSummary, error) {
	userID = lo.Ternary(userID == 0, p.UserID, userID)
	if err := auth.Authorize(p, auth.ActionViewReports, auth.OwnedBy(userID)); err != nil {
		return nil, err
	}
	return s.store.ListHourSummaries(ctx, userID, year)
}

package workflow

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/keyhours/internal/core/auth"
	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/shell/store"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourInput(projectID int64, appID *int64, date time.Time, hours domain.Hours) domain.HourLogInput {
	return domain.HourLogInput{
		ProjectID:           projectID,
		ApplicationID:       appID,
		Date:                date,
		StartTime:           domain.Clock(9, 0),
		EndTime:             domain.Clock(12, 0),
		Hours:               hours,
		ActivityDescription: "weeding",
	}
}

func (f *fixture) logHours(p auth.Principal, in domain.HourLogInput) *domain.HourLog {
	f.t.Helper()
	log, err := f.svc.LogHours(f.ctx, p, in)
	require.NoError(f.t, err)
	return log
}

// =============================================================================
// Logging Tests
// =============================================================================

func TestLogHours_ViaApplication(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	student := f.student()
	app := f.approved(student, project.ID)

	log := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 4), domain.WholeHours(3)))
	assert.NotZero(t, log.ID)
	assert.Equal(t, domain.HourPending, log.Status)
	assert.Nil(t, log.ReviewedBy)
}

func TestLogHours_EndBeforeStart(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	student := f.student()
	app := f.approved(student, project.ID)

	in := hourInput(project.ID, &app.ID, day(2024, 3, 4), domain.WholeHours(1))
	in.StartTime = domain.Clock(9, 0)
	in.EndTime = domain.Clock(8, 0)

	_, err := f.svc.LogHours(f.ctx, student, in)
	assertValidation(t, err, "end_time")
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)
}

func TestLogHours_Eligibility(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	student := f.student()

	t.Run("no membership and no application", func(t *testing.T) {
		_, err := f.svc.LogHours(f.ctx, student, hourInput(project.ID, nil, day(2024, 3, 4), domain.WholeHours(1)))
		assertValidation(t, err, "project_id")
		assert.ErrorIs(t, err, domain.ErrNotEligible)
	})

	t.Run("pending application", func(t *testing.T) {
		app := f.apply(student, project.ID)
		_, err := f.svc.LogHours(f.ctx, student, hourInput(project.ID, &app.ID, day(2024, 3, 4), domain.WholeHours(1)))
		assertValidation(t, err, "application_id")
	})

	t.Run("someone else's application", func(t *testing.T) {
		other := f.student()
		app := f.approved(other, project.ID)
		_, err := f.svc.LogHours(f.ctx, student, hourInput(project.ID, &app.ID, day(2024, 3, 4), domain.WholeHours(1)))
		assertValidation(t, err, "application_id")
	})

	t.Run("member outside window", func(t *testing.T) {
		member := f.student()
		_, err := f.svc.AddMember(f.ctx, f.admin, project.ID, member.UserID)
		require.NoError(t, err)

		_, err = f.svc.LogHours(f.ctx, member, hourInput(project.ID, nil, day(2025, 1, 1), domain.WholeHours(1)))
		assertValidation(t, err, "date")

		f.logHours(member, hourInput(project.ID, nil, day(2024, 12, 31), domain.WholeHours(1)))
	})

	t.Run("unknown project", func(t *testing.T) {
		_, err := f.svc.LogHours(f.ctx, student, hourInput(999, nil, day(2024, 3, 4), domain.WholeHours(1)))
		assertValidation(t, err, "project_id")
	})
}

func TestUpdateAndDeleteHourLog_OwnerWhilePending(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	student := f.student()
	app := f.approved(student, project.ID)
	log := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 4), domain.WholeHours(2)))

	in := hourInput(0, &app.ID, day(2024, 3, 5), domain.WholeHours(3))
	updated, err := f.svc.UpdateHourLog(f.ctx, student, log.ID, in)
	require.NoError(t, err)
	assert.Equal(t, domain.WholeHours(3), updated.Hours)
	assert.Equal(t, day(2024, 3, 5), updated.Date)

	_, err = f.svc.UpdateHourLog(f.ctx, f.student(), log.ID, in)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = f.svc.ReviewHourLog(f.ctx, f.admin, log.ID, domain.HourApproved, "")
	require.NoError(t, err)

	_, err = f.svc.UpdateHourLog(f.ctx, student, log.ID, in)
	assertValidation(t, err, "status")
	err = f.svc.DeleteHourLog(f.ctx, student, log.ID)
	assertValidation(t, err, "status")

	pending := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 6), domain.WholeHours(1)))
	require.NoError(t, f.svc.DeleteHourLog(f.ctx, student, pending.ID))
	_, err = f.store.GetHourLog(f.ctx, pending.ID)
	assert.True(t, store.IsNotFound(err))
}

// =============================================================================
// Review Tests
// =============================================================================

func TestReviewHourLog_ApprovalResyncsCounters(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	student := f.student()
	app := f.approved(student, project.ID)

	sc, err := f.svc.CreateScholarship(f.ctx, f.admin, domain.Scholarship{
		Name: "Excellence", Kind: domain.ScholarshipExcellence, RequiredHours: domain.WholeHours(100), DurationYears: 4,
	})
	require.NoError(t, err)
	us, err := f.svc.AssignScholarship(f.ctx, f.admin, student.UserID, sc.ID, day(2024, 1, 1), nil)
	require.NoError(t, err)

	l1 := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 4), domain.HoursFromFloat(2.5)))
	l2 := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 5), domain.HoursFromFloat(1.25)))

	reviewed, err := f.svc.ReviewHourLog(f.ctx, f.admin, l1.ID, domain.HourApproved, "ok")
	require.NoError(t, err)
	assert.Equal(t, domain.HourApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedAt)
	assert.Equal(t, testNow, *reviewed.ReviewedAt)

	_, err = f.svc.ReviewHourLog(f.ctx, f.admin, l2.ID, domain.HourApproved, "")
	require.NoError(t, err)

	got, err := f.store.GetApplication(f.ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoursFromFloat(3.75), got.HoursCompleted)

	progress, err := f.svc.ScholarshipProgress(f.ctx, student, us.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoursFromFloat(3.75), progress.Assignment.CurrentYearHours)
	assert.Equal(t, domain.HoursFromFloat(3.75), progress.Assignment.TotalHoursCompleted)
	assert.Equal(t, domain.HoursFromFloat(96.25), progress.RemainingHours)

	notes, err := f.svc.ListNotifications(f.ctx, student, false, store.DefaultListOptions())
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationHoursUpdated, notes[0].Type)

	_, err = f.svc.ReviewHourLog(f.ctx, f.admin, l1.ID, domain.HourRejected, "")
	assertValidation(t, err, "status")
}

func TestReviewHourLog_StudentsForbidden(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	student := f.student()
	app := f.approved(student, project.ID)
	log := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 4), domain.WholeHours(1)))

	_, err := f.svc.ReviewHourLog(f.ctx, student, log.ID, domain.HourApproved, "")
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestBulkReviewHourLogs_PendingOnly(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	student := f.student()
	app := f.approved(student, project.ID)
	l1 := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 4), domain.WholeHours(1)))
	l2 := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 5), domain.WholeHours(2)))
	l3 := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 6), domain.WholeHours(4)))
	_, err := f.svc.ReviewHourLog(f.ctx, f.admin, l3.ID, domain.HourRejected, "")
	require.NoError(t, err)

	n, err := f.svc.BulkReviewHourLogs(f.ctx, f.admin, []int64{l1.ID, l2.ID, l3.ID}, domain.HourApproved, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := f.store.GetApplication(f.ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WholeHours(3), got.HoursCompleted)

	_, err = f.svc.BulkReviewHourLogs(f.ctx, f.admin, []int64{l1.ID, 999}, domain.HourApproved, "")
	assert.True(t, store.IsNotFound(err))

	_, err = f.svc.BulkReviewHourLogs(f.ctx, f.admin, []int64{l1.ID}, domain.HourPending, "")
	assertValidation(t, err, "status")
}

func TestResubmitHourLog(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	student := f.student()
	app := f.approved(student, project.ID)
	log := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 4), domain.WholeHours(1)))

	_, err := f.svc.ResubmitHourLog(f.ctx, student, log.ID)
	assertValidation(t, err, "status")

	_, err = f.svc.ReviewHourLog(f.ctx, f.admin, log.ID, domain.HourRejected, "missing supervisor")
	require.NoError(t, err)

	_, err = f.svc.ResubmitHourLog(f.ctx, f.student(), log.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	again, err := f.svc.ResubmitHourLog(f.ctx, student, log.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HourPending, again.Status)
	assert.Nil(t, again.ReviewedBy)
	assert.Empty(t, again.ReviewNotes)
}

func TestListHourLogs_StudentsSeeOwn(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	s1, s2 := f.student(), f.student()
	a1 := f.approved(s1, project.ID)
	a2 := f.approved(s2, project.ID)
	f.logHours(s1, hourInput(project.ID, &a1.ID, day(2024, 3, 4), domain.WholeHours(1)))
	l2 := f.logHours(s2, hourInput(project.ID, &a2.ID, day(2024, 3, 4), domain.WholeHours(1)))

	logs, err := f.svc.ListHourLogs(f.ctx, s1, store.HourFilter{UserID: s2.UserID}, store.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, s1.UserID, logs[0].UserID)

	_, err = f.svc.GetHourLog(f.ctx, s1, l2.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	all, err := f.svc.ListHourLogs(f.ctx, f.admin, store.HourFilter{ProjectID: project.ID}, store.DefaultListOptions())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// =============================================================================
// Report Tests
// =============================================================================

func TestYearlyReport_OnlyMarchEntries(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	student := f.student()
	app := f.approved(student, project.ID)
	log := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 4), domain.WholeHours(3)))
	f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 20), domain.WholeHours(2)))
	_, err := f.svc.ReviewHourLog(f.ctx, f.admin, log.ID, domain.HourApproved, "")
	require.NoError(t, err)

	report, err := f.svc.YearlyReport(f.ctx, student, 0, 2024)
	require.NoError(t, err)
	assert.Equal(t, domain.WholeHours(5), report.TotalHours)
	assert.Equal(t, domain.WholeHours(3), report.ApprovedHours)
	assert.Equal(t, 1, report.ProjectsCount)
	require.Len(t, report.MonthlyBreakdown, 12)

	zero := 0
	for _, m := range report.MonthlyBreakdown {
		if m.Month == 3 {
			assert.Equal(t, domain.WholeHours(5), m.TotalHours)
			assert.Equal(t, 2, m.LogsCount)
			continue
		}
		if m.TotalHours == 0 {
			zero++
		}
	}
	assert.Equal(t, 11, zero)
}

func TestMonthlyReport(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	student := f.student()
	app := f.approved(student, project.ID)
	f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 4), domain.WholeHours(3)))

	march, err := f.svc.MonthlyReport(f.ctx, student, 0, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.WholeHours(3), march.PendingHours)

	april, err := f.svc.MonthlyReport(f.ctx, student, 0, 2024, 4)
	require.NoError(t, err)
	assert.Zero(t, april.TotalHours)

	_, err = f.svc.MonthlyReport(f.ctx, student, 0, 2024, 13)
	assertValidation(t, err, "month")

	_, err = f.svc.MonthlyReport(f.ctx, student, f.student().UserID, 2024, 3)
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestHourStats_EmptyLedger(t *testing.T) {
	f := newFixture(t)
	student := f.student()

	stats, err := f.svc.HourStats(f.ctx, student, 0)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalHours)
	assert.Zero(t, stats.ApprovedHours)
	assert.Zero(t, stats.CurrentMonthHours)
	assert.Zero(t, stats.ProjectsCount)
}

func TestHourStats_CurrentPeriods(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	student := f.student()
	app := f.approved(student, project.ID)
	june := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 6, 3), domain.WholeHours(2)))
	march := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 3), domain.WholeHours(3)))
	f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 6, 4), domain.WholeHours(4)))
	_, err := f.svc.BulkReviewHourLogs(f.ctx, f.admin, []int64{june.ID, march.ID}, domain.HourApproved, "")
	require.NoError(t, err)

	stats, err := f.svc.HourStats(f.ctx, student, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.WholeHours(9), stats.TotalHours)
	assert.Equal(t, domain.WholeHours(5), stats.ApprovedHours)
	assert.Equal(t, domain.WholeHours(4), stats.PendingHours)
	assert.Equal(t, domain.WholeHours(2), stats.CurrentMonthHours)
	assert.Equal(t, domain.WholeHours(5), stats.CurrentYearHours)
}

func TestHourDashboard_ByRole(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	s1, s2 := f.student(), f.student()
	a1 := f.approved(s1, project.ID)
	a2 := f.approved(s2, project.ID)
	l1 := f.logHours(s1, hourInput(project.ID, &a1.ID, day(2024, 3, 4), domain.WholeHours(5)))
	l2 := f.logHours(s2, hourInput(project.ID, &a2.ID, day(2024, 3, 4), domain.WholeHours(2)))
	f.logHours(s2, hourInput(project.ID, &a2.ID, day(2024, 3, 5), domain.WholeHours(1)))
	_, err := f.svc.BulkReviewHourLogs(f.ctx, f.admin, []int64{l1.ID, l2.ID}, domain.HourApproved, "")
	require.NoError(t, err)

	admin, err := f.svc.HourDashboard(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, "admin", admin.Scope)
	assert.Equal(t, 3, admin.TotalLogs)
	assert.Equal(t, 1, admin.PendingReviews)
	require.Len(t, admin.TopUsers, 2)
	assert.Equal(t, s1.UserID, admin.TopUsers[0].ID)
	assert.Equal(t, domain.WholeHours(5), admin.TopUsers[0].Hours)
	assert.Empty(t, admin.RecentLogs)

	mine, err := f.svc.HourDashboard(f.ctx, s2)
	require.NoError(t, err)
	assert.Equal(t, "student", mine.Scope)
	assert.Equal(t, domain.WholeHours(3), mine.TotalHours)
	assert.Equal(t, domain.WholeHours(2), mine.ApprovedHours)
	assert.Len(t, mine.RecentLogs, 2)
	assert.Empty(t, mine.TopUsers)
}

// =============================================================================
// Goal and Summary Tests
// =============================================================================

func TestGoalProgress(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	student := f.student()
	app := f.approved(student, project.ID)
	inside := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 4), domain.WholeHours(6)))
	outside := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 8, 4), domain.WholeHours(6)))
	_, err := f.svc.BulkReviewHourLogs(f.ctx, f.admin, []int64{inside.ID, outside.ID}, domain.HourApproved, "")
	require.NoError(t, err)

	goal, err := f.svc.CreateGoal(f.ctx, student, GoalInput{
		GoalType:    domain.GoalSemester,
		TargetHours: domain.WholeHours(24),
		StartDate:   day(2024, 1, 1),
		EndDate:     day(2024, 6, 30),
	})
	require.NoError(t, err)

	progress, err := f.svc.GoalProgress(f.ctx, student, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WholeHours(6), progress.CompletedHours)
	assert.InDelta(t, 25.0, progress.ProgressPercent, 0.001)
	assert.Equal(t, domain.WholeHours(18), progress.RemainingHours)

	_, err = f.svc.GoalProgress(f.ctx, f.student(), goal.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	goals, err := f.svc.ListGoals(f.ctx, student)
	require.NoError(t, err)
	assert.Len(t, goals, 1)

	_, err = f.svc.CreateGoal(f.ctx, student, GoalInput{
		GoalType:    domain.GoalProject,
		TargetHours: domain.WholeHours(1),
		StartDate:   day(2024, 1, 1),
		EndDate:     day(2024, 6, 30),
	})
	assertValidation(t, err, "project_id")
}

func TestHourLogDocuments(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	student := f.student()
	app := f.approved(student, project.ID)
	log := f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 4), domain.WholeHours(2)))

	doc, err := f.svc.AddHourLogDocument(f.ctx, student, log.ID, HourDocumentInput{
		Title:        "sheet.pdf",
		DocumentType: domain.DocumentAttendance,
	})
	require.NoError(t, err)
	assert.Equal(t, student.UserID, doc.UploadedBy)
	assert.True(t, strings.HasPrefix(doc.Reference, fmt.Sprintf("hours/%d/documents/", log.ID)))
	assert.True(t, strings.HasSuffix(doc.Reference, ".pdf"))

	_, err = f.svc.AddHourLogDocument(f.ctx, f.admin, log.ID, HourDocumentInput{
		Title:        "Certificate",
		DocumentType: domain.DocumentCertificate,
		Reference:    "https://files.example.edu/cert.pdf",
	})
	require.NoError(t, err)

	t.Run("other students cannot attach or list", func(t *testing.T) {
		other := f.student()
		_, err := f.svc.AddHourLogDocument(f.ctx, other, log.ID, HourDocumentInput{Title: "x", DocumentType: domain.DocumentOther})
		assert.ErrorIs(t, err, auth.ErrForbidden)
		_, err = f.svc.ListHourLogDocuments(f.ctx, other, log.ID)
		assert.ErrorIs(t, err, auth.ErrForbidden)
	})

	t.Run("document type is checked", func(t *testing.T) {
		_, err := f.svc.AddHourLogDocument(f.ctx, student, log.ID, HourDocumentInput{Title: "clip", DocumentType: "video"})
		assertValidation(t, err, "document_type")
	})

	t.Run("unknown entry", func(t *testing.T) {
		_, err := f.svc.AddHourLogDocument(f.ctx, student, 999, HourDocumentInput{Title: "x", DocumentType: domain.DocumentOther})
		assert.True(t, store.IsNotFound(err))
	})

	docs, err := f.svc.ListHourLogDocuments(f.ctx, student, log.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestRefreshHourSummaries(t *testing.T) {
	f := newFixture(t)
	project := f.project(5, domain.VisibilityConvocatoria)
	student := f.student()
	app := f.approved(student, project.ID)
	f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 4), domain.WholeHours(2)))

	n, err := f.svc.RefreshHourSummaries(f.ctx, auth.System(), 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	summaries, err := f.svc.ListHourSummaries(f.ctx, student, 0, 2024)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, domain.WholeHours(2), summaries[0].PendingHours)

	_, err = f.svc.RefreshHourSummaries(f.ctx, student, 2024, 3)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = f.svc.RefreshHourSummaries(f.ctx, f.admin, 2024, 0)
	assertValidation(t, err, "month")
}

func TestRefreshHourSummaries_FailedRebuildKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyhours.db")
	f := newFixtureAt(t, path)
	project := f.project(5, domain.VisibilityConvocatoria)
	student := f.student()
	app := f.approved(student, project.ID)
	f.logHours(student, hourInput(project.ID, &app.ID, day(2024, 3, 4), domain.WholeHours(2)))

	_, err := f.svc.RefreshHourSummaries(f.ctx, f.admin, 2024, 3)
	require.NoError(t, err)

	// Make the INSERT that follows the DELETE fail.
	db, err := sqlx.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TRIGGER reject_summary BEFORE INSERT ON hour_summaries
		BEGIN SELECT RAISE(ABORT, 'summary insert rejected'); END`)
	require.NoError(t, err)

	_, err = f.svc.RefreshHourSummaries(f.ctx, f.admin, 2024, 3)
	require.Error(t, err)

	summaries, err := f.svc.ListHourSummaries(f.ctx, student, 0, 2024)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, domain.WholeHours(2), summaries[0].TotalHours)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

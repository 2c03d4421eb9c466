package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/core/reporting"
	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Application Operations
// =============================================================================

type applicationRow struct {
	ID                    int64        `db:"id"`
	UserID                int64        `db:"user_id"`
	ProjectID             int64        `db:"project_id"`
	Status                string       `db:"status"`
	Motivation            string       `db:"motivation"`
	RelevantExperience    string       `db:"relevant_experience"`
	AvailableHoursPerWeek int          `db:"available_hours_per_week"`
	StartDatePreference   *string      `db:"start_date_preference"`
	AdditionalNotes       string       `db:"additional_notes"`
	AppliedAt             string       `db:"applied_at"`
	ReviewedAt            *string      `db:"reviewed_at"`
	ReviewedBy            *int64       `db:"reviewed_by"`
	ReviewNotes           string       `db:"review_notes"`
	HoursCompleted        domain.Hours `db:"hours_completed"`
	CompletionDate        *string      `db:"completion_date"`
	UpdatedAt             string       `db:"updated_at"`
}

func applicationToRow(a *domain.Application) map[string]any {
	return map[string]any{
		"id":                       a.ID,
		"user_id":                  a.UserID,
		"project_id":               a.ProjectID,
		"status":                   string(a.Status),
		"motivation":               a.Motivation,
		"relevant_experience":      a.RelevantExperience,
		"available_hours_per_week": a.AvailableHoursPerWeek,
		"start_date_preference":    formatDatePtr(a.StartDatePreference),
		"additional_notes":         a.AdditionalNotes,
		"applied_at":               formatTime(a.AppliedAt),
		"reviewed_at":              formatTimePtr(a.ReviewedAt),
		"reviewed_by":              a.ReviewedBy,
		"review_notes":             a.ReviewNotes,
		"hours_completed":          int64(a.HoursCompleted),
		"completion_date":          formatTimePtr(a.CompletionDate),
		"updated_at":               formatTime(a.UpdatedAt),
	}
}

func rowToApplication(row *applicationRow) *domain.Application {
	return &domain.Application{
		ID:                    row.ID,
		UserID:                row.UserID,
		ProjectID:             row.ProjectID,
		Status:                domain.ApplicationStatus(row.Status),
		Motivation:            row.Motivation,
		RelevantExperience:    row.RelevantExperience,
		AvailableHoursPerWeek: row.AvailableHoursPerWeek,
		StartDatePreference:   parseDatePtr(row.StartDatePreference),
		AdditionalNotes:       row.AdditionalNotes,
		AppliedAt:             parseTime(row.AppliedAt),
		ReviewedAt:            parseTimePtr(row.ReviewedAt),
		ReviewedBy:            row.ReviewedBy,
		ReviewNotes:           row.ReviewNotes,
		HoursCompleted:        row.HoursCompleted,
		CompletionDate:        parseTimePtr(row.CompletionDate),
		UpdatedAt:             parseTime(row.UpdatedAt),
	}
}

func rowsToApplications(rows []applicationRow) []domain.Application {
	apps := make([]domain.Application, 0, len(rows))
	for i := range rows {
		apps = append(apps, *rowToApplication(&rows[i]))
	}
	return apps
}

func (q queries) CreateApplication(ctx context.Context, app *domain.Application) error {
	query := `
		INSERT INTO applications (
			user_id, project_id, status, motivation, relevant_experience,
			available_hours_per_week, start_date_preference, additional_notes,
			applied_at, reviewed_at, reviewed_by, review_notes, hours_completed,
			completion_date, updated_at
		) VALUES (
			:user_id, :project_id, :status, :motivation, :relevant_experience,
			:available_hours_per_week, :start_date_preference, :additional_notes,
			:applied_at, :reviewed_at, :reviewed_by, :review_notes, :hours_completed,
			:completion_date, :updated_at
		)`

	res, err := q.exec.NamedExecContext(ctx, query, applicationToRow(app))
	if err != nil {
		return wrapErr("CreateApplication", "application", 0, err)
	}
	app.ID = lastID(res)
	return nil
}

func (q queries) GetApplication(ctx context.Context, id int64) (*domain.Application, error) {
	var row applicationRow
	err := q.exec.GetContext(ctx, &row, `SELECT * FROM applications WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetApplication", "application", idString(id), "application not found", ErrNotFound)
		}
		return nil, wrapErr("GetApplication", "application", id, err)
	}
	return rowToApplication(&row), nil
}

// GetApplications loads every id or fails with ErrNotFound naming the first
// missing one. The result follows the order of ids.
func (q queries) GetApplications(ctx context.Context, ids []int64) ([]domain.Application, error) {
	if len(ids) == 0 {
		return []domain.Application{}, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM applications WHERE id IN (?)`, ids)
	if err != nil {
		return nil, NewStoreError("GetApplications", "application", "", err.Error(), ErrInvalidData)
	}

	var rows []applicationRow
	if err := q.exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapErr("GetApplications", "application", 0, err)
	}

	byID := make(map[int64]*applicationRow, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	apps := make([]domain.Application, 0, len(ids))
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			return nil, NewStoreError("GetApplications", "application", idString(id), "application not found", ErrNotFound)
		}
		apps = append(apps, *rowToApplication(row))
	}
	return apps, nil
}

func (q queries) UpdateApplication(ctx context.Context, app *domain.Application) error {
	query := `
		UPDATE applications SET
			status = :status,
			motivation = :motivation,
			relevant_experience = :relevant_experience,
			available_hours_per_week = :available_hours_per_week,
			start_date_preference = :start_date_preference,
			additional_notes = :additional_notes,
			reviewed_at = :reviewed_at,
			reviewed_by = :reviewed_by,
			review_notes = :review_notes,
			hours_completed = :hours_completed,
			completion_date = :completion_date,
			updated_at = :updated_at
		WHERE id = :id`

	res, err := q.exec.NamedExecContext(ctx, query, applicationToRow(app))
	if err != nil {
		return wrapErr("UpdateApplication", "application", app.ID, err)
	}
	if affected(res) == 0 {
		return NewStoreError("UpdateApplication", "application", idString(app.ID), "application not found", ErrNotFound)
	}
	return nil
}

func applicationWhere(filter ApplicationFilter) *where {
	w := &where{}
	if filter.UserID != 0 {
		w.add("user_id = ?", filter.UserID)
	}
	if filter.ProjectID != 0 {
		w.add("project_id = ?", filter.ProjectID)
	}
	in(w, "status", filter.Status)
	return w
}

func (q queries) ListApplications(ctx context.Context, filter ApplicationFilter, opts ListOptions) ([]domain.Application, error) {
	opts = opts.Normalize()
	w := applicationWhere(filter)

	query := `SELECT * FROM applications` + w.String() + ` ORDER BY applied_at DESC, id DESC LIMIT ? OFFSET ?`
	var rows []applicationRow
	if err := q.exec.SelectContext(ctx, &rows, query, append(w.args, opts.Limit, opts.Offset)...); err != nil {
		return nil, wrapErr("ListApplications", "application", 0, err)
	}
	return rowsToApplications(rows), nil
}

// FindActiveApplication returns the pending, approved or in-progress
// application of userID for projectID.
func (q queries) FindActiveApplication(ctx context.Context, userID, projectID int64) (*domain.Application, error) {
	var row applicationRow
	err := q.exec.GetContext(ctx, &row, `
		SELECT * FROM applications
		WHERE user_id = ? AND project_id = ? AND status IN (?, ?, ?)
		ORDER BY id DESC LIMIT 1`,
		userID, projectID,
		string(domain.ApplicationPending), string(domain.ApplicationApproved), string(domain.ApplicationInProgress))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("FindActiveApplication", "application", "", "no active application", ErrNotFound)
		}
		return nil, wrapErr("FindActiveApplication", "application", 0, err)
	}
	return rowToApplication(&row), nil
}

func (q queries) CountApplicationsByStatus(ctx context.Context, filter ApplicationFilter) ([]reporting.StatusCount, error) {
	w := applicationWhere(filter)
	query := `SELECT status, COUNT(*) AS count FROM applications` + w.String() + ` GROUP BY status`

	var rows []reporting.StatusCount
	if err := q.exec.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, wrapErr("CountApplicationsByStatus", "application", 0, err)
	}
	return rows, nil
}

func (q queries) SyncApplicationHours(ctx context.Context, applicationID int64) (domain.Hours, error) {
	res, err := q.exec.ExecContext(ctx, `
		UPDATE applications SET
			hours_completed = (
				SELECT COALESCE(SUM(hours), 0) FROM hour_logs
				 WHERE application_id = ? AND status = 'approved'),
			updated_at = ?
		WHERE id = ?`,
		applicationID, formatTime(q.now()), applicationID)
	if err != nil {
		return 0, wrapErr("SyncApplicationHours", "application", applicationID, err)
	}
	if affected(res) == 0 {
		return 0, NewStoreError("SyncApplicationHours", "application", idString(applicationID), "application not found", ErrNotFound)
	}

	var hours domain.Hours
	if err := q.exec.GetContext(ctx, &hours, `SELECT hours_completed FROM applications WHERE id = ?`, applicationID); err != nil {
		return 0, wrapErr("SyncApplicationHours", "application", applicationID, err)
	}
	return hours, nil
}

// =============================================================================
// Notification Operations
// =============================================================================

type notificationRow struct {
	ID            int64  `db:"id"`
	ApplicationID int64  `db:"application_id"`
	RecipientID   int64  `db:"recipient_id"`
	Type          string `db:"notification_type"`
	Title         string `db:"title"`
	Message       string `db:"message"`
	IsRead        bool   `db:"is_read"`
	CreatedAt     string `db:"created_at"`
}

func rowToNotification(row *notificationRow) *domain.Notification {
	return &domain.Notification{
		ID:            row.ID,
		ApplicationID: row.ApplicationID,
		RecipientID:   row.RecipientID,
		Type:          domain.NotificationType(row.Type),
		Title:         row.Title,
		Message:       row.Message,
		IsRead:        row.IsRead,
		CreatedAt:     parseTime(row.CreatedAt),
	}
}

func (q queries) CreateNotification(ctx context.Context, n *domain.Notification) error {
	res, err := q.exec.NamedExecContext(ctx, `
		INSERT INTO application_notifications (
			application_id, recipient_id, notification_type, title, message, is_read, created_at
		) VALUES (
			:application_id, :recipient_id, :notification_type, :title, :message, :is_read, :created_at
		)`,
		map[string]any{
			"application_id":    n.ApplicationID,
			"recipient_id":      n.RecipientID,
			"notification_type": string(n.Type),
			"title":             n.Title,
			"message":           n.Message,
			"is_read":           boolInt(n.IsRead),
			"created_at":        formatTime(n.CreatedAt),
		})
	if err != nil {
		return wrapErr("CreateNotification", "notification", 0, err)
	}
	n.ID = lastID(res)
	return nil
}

func (q queries) GetNotification(ctx context.Context, id int64) (*domain.Notification, error) {
	var row notificationRow
	err := q.exec.GetContext(ctx, &row, `SELECT * FROM application_notifications WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetNotification", "notification", idString(id), "notification not found", ErrNotFound)
		}
		return nil, wrapErr("GetNotification", "notification", id, err)
	}
	return rowToNotification(&row), nil
}

func (q queries) ListNotifications(ctx context.Context, recipientID int64, unreadOnly bool, opts ListOptions) ([]domain.Notification, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM application_notifications WHERE recipient_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	var rows []notificationRow
	if err := q.exec.SelectContext(ctx, &rows, query, recipientID, opts.Limit, opts.Offset); err != nil {
		return nil, wrapErr("ListNotifications", "notification", 0, err)
	}
	out := make([]domain.Notification, 0, len(rows))
	for i := range rows {
		out = append(out, *rowToNotification(&rows[i]))
	}
	return out, nil
}

func (q queries) MarkNotificationRead(ctx context.Context, id int64) error {
	res, err := q.exec.ExecContext(ctx, `UPDATE application_notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return wrapErr("MarkNotificationRead", "notification", id, err)
	}
	if affected(res) == 0 {
		return NewStoreError("MarkNotificationRead", "notification", idString(id), "notification not found", ErrNotFound)
	}
	return nil
}

func (q queries) CountUnreadNotifications(ctx context.Context, recipientID int64) (int, error) {
	var n int
	err := q.exec.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM application_notifications WHERE recipient_id = ? AND is_read = 0`, recipientID)
	if err != nil {
		return 0, wrapErr("CountUnreadNotifications", "notification", 0, err)
	}
	return n, nil
}

// =============================================================================
// Evaluation Operations
// =============================================================================

type evaluationRow struct {
	ID             int64  `db:"id"`
	ApplicationID  int64  `db:"application_id"`
	EvaluatorID    int64  `db:"evaluator_id"`
	Score          int    `db:"score"`
	Comments       string `db:"comments"`
	Recommendation string `db:"recommendation"`
	CreatedAt      string `db:"created_at"`
}

func (q queries) CreateEvaluation(ctx context.Context, e *domain.Evaluation) error {
	res, err := q.exec.NamedExecContext(ctx, `
		INSERT INTO application_evaluations (
			application_id, evaluator_id, score, comments, recommendation, created_at
		) VALUES (
			:application_id, :evaluator_id, :score, :comments, :recommendation, :created_at
		)`,
		map[string]any{
			"application_id": e.ApplicationID,
			"evaluator_id":   e.EvaluatorID,
			"score":          e.Score,
			"comments":       e.Comments,
			"recommendation": string(e.Recommendation),
			"created_at":     formatTime(e.CreatedAt),
		})
	if err != nil {
		return wrapErr("CreateEvaluation", "evaluation", 0, err)
	}
	e.ID = lastID(res)
	return nil
}

func (q queries) ListEvaluations(ctx context.Context, applicationID int64) ([]domain.Evaluation, error) {
	var rows []evaluationRow
	err := q.exec.SelectContext(ctx, &rows,
		`SELECT * FROM application_evaluations WHERE application_id = ? ORDER BY created_at, id`, applicationID)
	if err != nil {
		return nil, wrapErr("ListEvaluations", "evaluation", applicationID, err)
	}
	out := make([]domain.Evaluation, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Evaluation{
			ID:             r.ID,
			ApplicationID:  r.ApplicationID,
			EvaluatorID:    r.EvaluatorID,
			Score:          r.Score,
			Comments:       r.Comments,
			Recommendation: domain.Recommendation(r.Recommendation),
			CreatedAt:      parseTime(r.CreatedAt),
		})
	}
	return out, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/core/reporting"
	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Hour Log Operations
// =============================================================================

type hourLogRow struct {
	ID                  int64        `db:"id"`
	UserID              int64        `db:"user_id"`
	ProjectID           int64        `db:"project_id"`
	ApplicationID       *int64       `db:"application_id"`
	Date                string       `db:"date"`
	StartTime           string       `db:"start_time"`
	EndTime             string       `db:"end_time"`
	Hours               domain.Hours `db:"hours"`
	ActivityDescription string       `db:"activity_description"`
	SkillsDeveloped     string       `db:"skills_developed"`
	ImpactDescription   string       `db:"impact_description"`
	SupervisorName      string       `db:"supervisor_name"`
	SupervisorContact   string       `db:"supervisor_contact"`
	Status              string       `db:"status"`
	ReviewedBy          *int64       `db:"reviewed_by"`
	ReviewedAt          *string      `db:"reviewed_at"`
	ReviewNotes         string       `db:"review_notes"`
	CreatedAt           string       `db:"created_at"`
	UpdatedAt           string       `db:"updated_at"`
}

func hourLogToRow(h *domain.HourLog) map[string]any {
	return map[string]any{
		"id":                   h.ID,
		"user_id":              h.UserID,
		"project_id":           h.ProjectID,
		"application_id":       h.ApplicationID,
		"date":                 formatDate(h.Date),
		"start_time":           h.StartTime.String(),
		"end_time":             h.EndTime.String(),
		"hours":                int64(h.Hours),
		"activity_description": h.ActivityDescription,
		"skills_developed":     h.SkillsDeveloped,
		"impact_description":   h.ImpactDescription,
		"supervisor_name":      h.SupervisorName,
		"supervisor_contact":   h.SupervisorContact,
		"status":               string(h.Status),
		"reviewed_by":          h.ReviewedBy,
		"reviewed_at":          formatTimePtr(h.ReviewedAt),
		"review_notes":         h.ReviewNotes,
		"created_at":           formatTime(h.CreatedAt),
		"updated_at":           formatTime(h.UpdatedAt),
	}
}

func rowToHourLog(row *hourLogRow) *domain.HourLog {
	start, _ := domain.ParseTimeOfDay(row.StartTime)
	end, _ := domain.ParseTimeOfDay(row.EndTime)
	return &domain.HourLog{
		ID:                  row.ID,
		UserID:              row.UserID,
		ProjectID:           row.ProjectID,
		ApplicationID:       row.ApplicationID,
		Date:                parseDate(row.Date),
		StartTime:           start,
		EndTime:             end,
		Hours:               row.Hours,
		ActivityDescription: row.ActivityDescription,
		SkillsDeveloped:     row.SkillsDeveloped,
		ImpactDescription:   row.ImpactDescription,
		SupervisorName:      row.SupervisorName,
		SupervisorContact:   row.SupervisorContact,
		Status:              domain.HourStatus(row.Status),
		ReviewedBy:          row.ReviewedBy,
		ReviewedAt:          parseTimePtr(row.ReviewedAt),
		ReviewNotes:         row.ReviewNotes,
		CreatedAt:           parseTime(row.CreatedAt),
		UpdatedAt:           parseTime(row.UpdatedAt),
	}
}

func (q queries) CreateHourLog(ctx context.Context, h *domain.HourLog) error {
	query := `
		INSERT INTO hour_logs (
			user_id, project_id, application_id, date, start_time, end_time, hours,
			activity_description, skills_developed, impact_description,
			supervisor_name, supervisor_contact, status, reviewed_by, reviewed_at,
			review_notes, created_at, updated_at
		) VALUES (
			:user_id, :project_id, :application_id, :date, :start_time, :end_time, :hours,
			:activity_description, :skills_developed, :impact_description,
			:supervisor_name, :supervisor_contact, :status, :reviewed_by, :reviewed_at,
			:review_notes, :created_at, :updated_at
		)`

	res, err := q.exec.NamedExecContext(ctx, query, hourLogToRow(h))
	if err != nil {
		return wrapErr("CreateHourLog", "hour_log", 0, err)
	}
	h.ID = lastID(res)
	return nil
}

func (q queries) GetHourLog(ctx context.Context, id int64) (*domain.HourLog, error) {
	var row hourLogRow
	err := q.exec.GetContext(ctx, &row, `SELECT * FROM hour_logs WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetHourLog", "hour_log", idString(id), "hour log not found", ErrNotFound)
		}
		return nil, wrapErr("GetHourLog", "hour_log", id, err)
	}
	return rowToHourLog(&row), nil
}

// GetHourLogs loads every id or fails with ErrNotFound naming the first
// missing one. The result follows the order of ids.
func (q queries) GetHourLogs(ctx context.Context, ids []int64) ([]domain.HourLog, error) {
	if len(ids) == 0 {
		return []domain.HourLog{}, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM hour_logs WHERE id IN (?)`, ids)
	if err != nil {
		return nil, NewStoreError("GetHourLogs", "hour_log", "", err.Error(), ErrInvalidData)
	}

	var rows []hourLogRow
	if err := q.exec.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapErr("GetHourLogs", "hour_log", 0, err)
	}

	byID := make(map[int64]*hourLogRow, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	logs := make([]domain.HourLog, 0, len(ids))
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			return nil, NewStoreError("GetHourLogs", "hour_log", idString(id), "hour log not found", ErrNotFound)
		}
		logs = append(logs, *rowToHourLog(row))
	}
	return logs, nil
}

func (q queries) UpdateHourLog(ctx context.Context, h *domain.HourLog) error {
	query := `
		UPDATE hour_logs SET
			application_id = :application_id,
			date = :date,
			start_time = :start_time,
			end_time = :end_time,
			hours = :hours,
			activity_description = :activity_description,
			skills_developed = :skills_developed,
			impact_description = :impact_description,
			supervisor_name = :supervisor_name,
			supervisor_contact = :supervisor_contact,
			status = :status,
			reviewed_by = :reviewed_by,
			reviewed_at = :reviewed_at,
			review_notes = :review_notes,
			updated_at = :updated_at
		WHERE id = :id`

	res, err := q.exec.NamedExecContext(ctx, query, hourLogToRow(h))
	if err != nil {
		return wrapErr("UpdateHourLog", "hour_log", h.ID, err)
	}
	if affected(res) == 0 {
		return NewStoreError("UpdateHourLog", "hour_log", idString(h.ID), "hour log not found", ErrNotFound)
	}
	return nil
}

func (q queries) DeleteHourLog(ctx context.Context, id int64) error {
	res, err := q.exec.ExecContext(ctx, `DELETE FROM hour_logs WHERE id = ?`, id)
	if err != nil {
		return wrapErr("DeleteHourLog", "hour_log", id, err)
	}
	if affected(res) == 0 {
		return NewStoreError("DeleteHourLog", "hour_log", idString(id), "hour log not found", ErrNotFound)
	}
	return nil
}

type hourDocumentRow struct {
	ID           int64  `db:"id"`
	HourLogID    int64  `db:"hour_log_id"`
	Title        string `db:"title"`
	DocumentType string `db:"document_type"`
	Reference    string `db:"reference"`
	Description  string `db:"description"`
	UploadedBy   int64  `db:"uploaded_by"`
	UploadedAt   string `db:"uploaded_at"`
}

func (q queries) CreateHourLogDocument(ctx context.Context, d *domain.HourLogDocument) error {
	res, err := q.exec.NamedExecContext(ctx, `
		INSERT INTO hour_log_documents (hour_log_id, title, document_type, reference, description, uploaded_by, uploaded_at)
		VALUES (:hour_log_id, :title, :document_type, :reference, :description, :uploaded_by, :uploaded_at)`,
		map[string]any{
			"hour_log_id":   d.HourLogID,
			"title":         d.Title,
			"document_type": string(d.DocumentType),
			"reference":     d.Reference,
			"description":   d.Description,
			"uploaded_by":   d.UploadedBy,
			"uploaded_at":   formatTime(d.UploadedAt),
		})
	if err != nil {
		return wrapErr("CreateHourLogDocument", "hour_log_document", 0, err)
	}
	d.ID = lastID(res)
	return nil
}

// ListHourLogDocuments returns an entry's documents, newest first.
func (q queries) ListHourLogDocuments(ctx context.Context, hourLogID int64) ([]domain.HourLogDocument, error) {
	var rows []hourDocumentRow
	err := q.exec.SelectContext(ctx, &rows,
		`SELECT * FROM hour_log_documents WHERE hour_log_id = ? ORDER BY uploaded_at DESC, id DESC`, hourLogID)
	if err != nil {
		return nil, wrapErr("ListHourLogDocuments", "hour_log_document", hourLogID, err)
	}
	out := make([]domain.HourLogDocument, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.HourLogDocument{
			ID:           r.ID,
			HourLogID:    r.HourLogID,
			Title:        r.Title,
			DocumentType: domain.DocumentType(r.DocumentType),
			Reference:    r.Reference,
			Description:  r.Description,
			UploadedBy:   r.UploadedBy,
			UploadedAt:   parseTime(r.UploadedAt),
		})
	}
	return out, nil
}

func hourWhere(filter HourFilter) *where {
	w := &where{}
	if filter.UserID != 0 {
		w.add("user_id = ?", filter.UserID)
	}
	if filter.ProjectID != 0 {
		w.add("project_id = ?", filter.ProjectID)
	}
	if filter.ApplicationID != 0 {
		w.add("application_id = ?", filter.ApplicationID)
	}
	in(w, "status", filter.Status)
	if filter.From != nil {
		w.add("date >= ?", formatDate(*filter.From))
	}
	if filter.To != nil {
		w.add("date <= ?", formatDate(*filter.To))
	}
	if filter.Year != 0 {
		w.add("strftime('%Y', date) = ?", fmt.Sprintf("%04d", filter.Year))
	}
	if filter.Month != 0 {
		w.add("strftime('%m', date) = ?", fmt.Sprintf("%02d", filter.Month))
	}
	return w
}

func (q queries) ListHourLogs(ctx context.Context, filter HourFilter, opts ListOptions) ([]domain.HourLog, error) {
	opts = opts.Normalize()
	w := hourWhere(filter)

	query := `SELECT * FROM hour_logs` + w.String() + ` ORDER BY date DESC, start_time DESC, id DESC LIMIT ? OFFSET ?`
	var rows []hourLogRow
	if err := q.exec.SelectContext(ctx, &rows, query, append(w.args, opts.Limit, opts.Offset)...); err != nil {
		return nil, wrapErr("ListHourLogs", "hour_log", 0, err)
	}
	logs := make([]domain.HourLog, 0, len(rows))
	for i := range rows {
		logs = append(logs, *rowToHourLog(&rows[i]))
	}
	return logs, nil
}

// totalsColumns computes reporting.StatusTotals over hour_logs.
const totalsColumns = `
	COALESCE(SUM(hours), 0) AS total_hours,
	COALESCE(SUM(CASE WHEN status = 'approved' THEN hours ELSE 0 END), 0) AS approved_hours,
	COALESCE(SUM(CASE WHEN status = 'pending' THEN hours ELSE 0 END), 0) AS pending_hours,
	COALESCE(SUM(CASE WHEN status = 'rejected' THEN hours ELSE 0 END), 0) AS rejected_hours,
	COUNT(DISTINCT CASE WHEN status = 'approved' THEN project_id END) AS projects_count,
	COUNT(*) AS logs_count`

// SumHours never fails on an empty selection; every figure is then zero.
func (q queries) SumHours(ctx context.Context, filter HourFilter) (reporting.StatusTotals, error) {
	w := hourWhere(filter)
	var totals reporting.StatusTotals
	if err := q.exec.GetContext(ctx, &totals, `SELECT`+totalsColumns+` FROM hour_logs`+w.String(), w.args...); err != nil {
		return totals, wrapErr("SumHours", "hour_log", 0, err)
	}
	return totals, nil
}

// SumHoursByMonth groups the selection by calendar month. Months without
// entries are absent.
func (q queries) SumHoursByMonth(ctx context.Context, filter HourFilter) ([]reporting.MonthBucket, error) {
	w := hourWhere(filter)
	query := `SELECT CAST(strftime('%m', date) AS INTEGER) AS month,` + totalsColumns +
		` FROM hour_logs` + w.String() + ` GROUP BY month ORDER BY month`

	var rows []reporting.MonthBucket
	if err := q.exec.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, wrapErr("SumHoursByMonth", "hour_log", 0, err)
	}
	return rows, nil
}

// TopContributors ranks users by approved hours.
func (q queries) TopContributors(ctx context.Context, limit int) ([]reporting.Ranked, error) {
	query := `
		SELECT u.id AS id, TRIM(u.first_name || ' ' || u.last_name) AS label, SUM(h.hours) AS value
		FROM hour_logs h
		JOIN users u ON u.id = h.user_id
		WHERE h.status = 'approved'
		GROUP BY u.id, label
		ORDER BY value DESC, u.id ASC
		LIMIT ?`

	var rows []reporting.Ranked
	if err := q.exec.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, wrapErr("TopContributors", "hour_log", 0, err)
	}
	return rows, nil
}

// =============================================================================
// Goal Operations
// =============================================================================

type goalRow struct {
	ID          int64        `db:"id"`
	UserID      int64        `db:"user_id"`
	GoalType    string       `db:"goal_type"`
	ProjectID   *int64       `db:"project_id"`
	TargetHours domain.Hours `db:"target_hours"`
	StartDate   string       `db:"start_date"`
	EndDate     string       `db:"end_date"`
	Description string       `db:"description"`
	IsActive    bool         `db:"is_active"`
	CreatedAt   string       `db:"created_at"`
}

func rowToGoal(row *goalRow) *domain.HourGoal {
	return &domain.HourGoal{
		ID:          row.ID,
		UserID:      row.UserID,
		GoalType:    domain.GoalType(row.GoalType),
		ProjectID:   row.ProjectID,
		TargetHours: row.TargetHours,
		StartDate:   parseDate(row.StartDate),
		EndDate:     parseDate(row.EndDate),
		Description: row.Description,
		IsActive:    row.IsActive,
		CreatedAt:   parseTime(row.CreatedAt),
	}
}

func (q queries) CreateGoal(ctx context.Context, g *domain.HourGoal) error {
	res, err := q.exec.NamedExecContext(ctx, `
		INSERT INTO hour_goals (
			user_id, goal_type, project_id, target_hours, start_date, end_date,
			description, is_active, created_at
		) VALUES (
			:user_id, :goal_type, :project_id, :target_hours, :start_date, :end_date,
			:description, :is_active, :created_at
		)`,
		map[string]any{
			"user_id":      g.UserID,
			"goal_type":    string(g.GoalType),
			"project_id":   g.ProjectID,
			"target_hours": int64(g.TargetHours),
			"start_date":   formatDate(g.StartDate),
			"end_date":     formatDate(g.EndDate),
			"description":  g.Description,
			"is_active":    boolInt(g.IsActive),
			"created_at":   formatTime(g.CreatedAt),
		})
	if err != nil {
		return wrapErr("CreateGoal", "goal", 0, err)
	}
	g.ID = lastID(res)
	return nil
}

func (q queries) GetGoal(ctx context.Context, id int64) (*domain.HourGoal, error) {
	var row goalRow
	err := q.exec.GetContext(ctx, &row, `SELECT * FROM hour_goals WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetGoal", "goal", idString(id), "goal not found", ErrNotFound)
		}
		return nil, wrapErr("GetGoal", "goal", id, err)
	}
	return rowToGoal(&row), nil
}

func (q queries) ListGoals(ctx context.Context, userID int64) ([]domain.HourGoal, error) {
	var rows []goalRow
	err := q.exec.SelectContext(ctx, &rows,
		`SELECT * FROM hour_goals WHERE user_id = ? ORDER BY is_active DESC, end_date, id`, userID)
	if err != nil {
		return nil, wrapErr("ListGoals", "goal", 0, err)
	}
	out := make([]domain.HourGoal, 0, len(rows))
	for i := range rows {
		out = append(out, *rowToGoal(&rows[i]))
	}
	return out, nil
}

// =============================================================================
// Summary Operations
// =============================================================================

type summaryRow struct {
	ID            int64        `db:"id"`
	UserID        int64        `db:"user_id"`
	Year          int          `db:"year"`
	Month         int          `db:"month"`
	TotalHours    domain.Hours `db:"total_hours"`
	ApprovedHours domain.Hours `db:"approved_hours"`
	PendingHours  domain.Hours `db:"pending_hours"`
	RejectedHours domain.Hours `db:"rejected_hours"`
	ProjectsCount int          `db:"projects_count"`
	UpdatedAt     string       `db:"updated_at"`
}

// RefreshHourSummaries rebuilds the summaries of year/month from the
// ledger. Summaries of users with no remaining entries are removed.
func (q queries) RefreshHourSummaries(ctx context.Context, year, month int, at time.Time) (int, error) {
	if _, err := q.exec.ExecContext(ctx,
		`DELETE FROM hour_summaries WHERE year = ? AND month = ?`, year, month); err != nil {
		return 0, wrapErr("RefreshHourSummaries", "hour_summary", 0, err)
	}

	res, err := q.exec.ExecContext(ctx, `
		INSERT INTO hour_summaries (
			user_id, year, month, total_hours, approved_hours, pending_hours,
			rejected_hours, projects_count, updated_at
		)
		SELECT
			user_id, ?, ?,
			COALESCE(SUM(hours), 0),
			COALESCE(SUM(CASE WHEN status = 'approved' THEN hours ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN hours ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'rejected' THEN hours ELSE 0 END), 0),
			COUNT(DISTINCT CASE WHEN status = 'approved' THEN project_id END),
			?
		FROM hour_logs
		WHERE strftime('%Y', date) = ? AND strftime('%m', date) = ?
		GROUP BY user_id`,
		year, month, formatTime(at), fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month))
	if err != nil {
		return 0, wrapErr("RefreshHourSummaries", "hour_summary", 0, err)
	}
	return int(affected(res)), nil
}

func (q queries) ListHourSummaries(ctx context.Context, userID int64, year int) ([]domain.HourSummary, error) {
	var rows []summaryRow
	err := q.exec.SelectContext(ctx, &rows,
		`SELECT * FROM hour_summaries WHERE user_id = ? AND year = ? ORDER BY month`, userID, year)
	if err != nil {
		return nil, wrapErr("ListHourSummaries", "hour_summary", 0, err)
	}
	out := make([]domain.HourSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.HourSummary{
			ID:            r.ID,
			UserID:        r.UserID,
			Year:          r.Year,
			Month:         r.Month,
			TotalHours:    r.TotalHours,
			ApprovedHours: r.ApprovedHours,
			PendingHours:  r.PendingHours,
			RejectedHours: r.RejectedHours,
			ProjectsCount: r.ProjectsCount,
			UpdatedAt:     parseTime(r.UpdatedAt),
		})
	}
	return out, nil
}

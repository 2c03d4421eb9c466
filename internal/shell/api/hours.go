package api

import (
	"net/http"
	"time"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/shell/store"
	"github.com/artpar/keyhours/internal/shell/workflow"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) hourRoutes(r chi.Router) {
	r.Route("/hours", func(r chi.Router) {
		r.Get("/", h.handleListHourLogs)
		r.Post("/", h.handleLogHours)
		r.Post("/bulk-review", h.handleBulkReviewHours)
		r.Get("/stats", h.handleHourStats)
		r.Get("/dashboard", h.handleHourDashboard)
		r.Get("/reports/monthly", h.handleMonthlyReport)
		r.Get("/reports/yearly", h.handleYearlyReport)
		r.Get("/{id}", h.handleGetHourLog)
		r.Patch("/{id}", h.handleUpdateHourLog)
		r.Delete("/{id}", h.handleDeleteHourLog)
		r.Post("/{id}/review", h.handleReviewHourLog)
		r.Post("/{id}/resubmit", h.handleResubmitHourLog)
		r.Get("/{id}/documents", h.handleListHourLogDocuments)
		r.Post("/{id}/documents", h.handleAddHourLogDocument)
	})

	r.Route("/goals", func(r chi.Router) {
		r.Get("/", h.handleListGoals)
		r.Post("/", h.handleCreateGoal)
		r.Get("/{id}/progress", h.handleGoalProgress)
	})

	r.Route("/summaries", func(r chi.Router) {
		r.Get("/", h.handleListSummaries)
		r.Post("/refresh", h.handleRefreshSummaries)
	})
}

// =============================================================================
// Ledger
// =============================================================================

// input converts a validated request into the domain input.
func (req HourLogRequest) input() (domain.HourLogInput, error) {
	date, err := parseDate("date", req.Date)
	if err != nil {
		return domain.HourLogInput{}, err
	}
	start, err := domain.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return domain.HourLogInput{}, domain.Invalidf("start_time", "must be a time in HH:MM format")
	}
	end, err := domain.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return domain.HourLogInput{}, domain.Invalidf("end_time", "must be a time in HH:MM format")
	}
	return domain.HourLogInput{
		ProjectID:           req.ProjectID,
		ApplicationID:       req.ApplicationID,
		Date:                date,
		StartTime:           start,
		EndTime:             end,
		Hours:               req.Hours,
		ActivityDescription: req.ActivityDescription,
		SkillsDeveloped:     req.SkillsDeveloped,
		ImpactDescription:   req.ImpactDescription,
		SupervisorName:      req.SupervisorName,
		SupervisorContact:   req.SupervisorContact,
	}, nil
}

func decodeHourLog(r *http.Request) (domain.HourLogInput, error) {
	var req HourLogRequest
	if err := decode(r, &req); err != nil {
		return domain.HourLogInput{}, err
	}
	return req.input()
}

func (h *Handler) handleLogHours(w http.ResponseWriter, r *http.Request) {
	in, err := decodeHourLog(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	log, err := h.svc.LogHours(r.Context(), principal(r), in)
	respond(h, w, r, http.StatusCreated, log, err)
}

func (h *Handler) handleGetHourLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	log, err := h.svc.GetHourLog(r.Context(), principal(r), id)
	respond(h, w, r, http.StatusOK, log, err)
}

func hourFilter(r *http.Request) (store.HourFilter, error) {
	var (
		filter store.HourFilter
		err    error
		n      int64
	)
	if filter.UserID, err = queryInt(r, "user_id"); err != nil {
		return filter, err
	}
	if filter.ProjectID, err = queryInt(r, "project_id"); err != nil {
		return filter, err
	}
	if filter.ApplicationID, err = queryInt(r, "application_id"); err != nil {
		return filter, err
	}
	if filter.From, err = queryDate(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryDate(r, "to"); err != nil {
		return filter, err
	}
	if n, err = queryInt(r, "year"); err != nil {
		return filter, err
	}
	filter.Year = int(n)
	if n, err = queryInt(r, "month"); err != nil {
		return filter, err
	}
	filter.Month = int(n)
	for _, raw := range queryList(r, "status") {
		st := domain.HourStatus(raw)
		if !domain.HourLogMachine.Known(st) {
			return filter, domain.NewValidationError("status", domain.ErrInvalidEnum)
		}
		filter.Status = append(filter.Status, st)
	}
	return filter, nil
}

func (h *Handler) handleListHourLogs(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	filter, err := hourFilter(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	logs, err := h.svc.ListHourLogs(r.Context(), principal(r), filter, opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, logs, opts)
}

func (h *Handler) handleUpdateHourLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	in, err := decodeHourLog(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	log, err := h.svc.UpdateHourLog(r.Context(), principal(r), id, in)
	respond(h, w, r, http.StatusOK, log, err)
}

func (h *Handler) handleDeleteHourLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.svc.DeleteHourLog(r.Context(), principal(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Review
// =============================================================================

func (h *Handler) handleReviewHourLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req HourReviewRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	log, err := h.svc.ReviewHourLog(r.Context(), principal(r), id, domain.HourStatus(req.Status), req.Notes)
	respond(h, w, r, http.StatusOK, log, err)
}

func (h *Handler) handleBulkReviewHours(w http.ResponseWriter, r *http.Request) {
	var req BulkHourReviewRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	n, err := h.svc.BulkReviewHourLogs(r.Context(), principal(r), req.IDs, domain.HourStatus(req.Status), req.Notes)
	respond(h, w, r, http.StatusOK, CountResponse{Affected: n}, err)
}

func (h *Handler) handleResubmitHourLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	log, err := h.svc.ResubmitHourLog(r.Context(), principal(r), id)
	respond(h, w, r, http.StatusOK, log, err)
}

func (h *Handler) handleAddHourLogDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req HourDocumentRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	doc, err := h.svc.AddHourLogDocument(r.Context(), principal(r), id, workflow.HourDocumentInput{
		Title:        req.Title,
		DocumentType: domain.DocumentType(req.DocumentType),
		Reference:    req.Reference,
		Description:  req.Description,
	})
	respond(h, w, r, http.StatusCreated, doc, err)
}

func (h *Handler) handleListHourLogDocuments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	list, err := h.svc.ListHourLogDocuments(r.Context(), principal(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, list, store.ListOptions{Limit: len(list)})
}

// =============================================================================
// Reports
// =============================================================================

// period reads the user_id, year and month query parameters. A missing
// year or month defaults to the current one.
func period(r *http.Request) (userID int64, year, month int, err error) {
	if userID, err = queryInt(r, "user_id"); err != nil {
		return 0, 0, 0, err
	}
	now := time.Now().UTC()
	y, err := queryInt(r, "year")
	if err != nil {
		return 0, 0, 0, err
	}
	m, err := queryInt(r, "month")
	if err != nil {
		return 0, 0, 0, err
	}
	year, month = int(y), int(m)
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	return userID, year, month, nil
}

func (h *Handler) handleHourStats(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt(r, "user_id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	stats, err := h.svc.HourStats(r.Context(), principal(r), userID)
	respond(h, w, r, http.StatusOK, stats, err)
}

func (h *Handler) handleHourDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.svc.HourDashboard(r.Context(), principal(r))
	respond(h, w, r, http.StatusOK, dash, err)
}

func (h *Handler) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	userID, year, month, err := period(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	report, err := h.svc.MonthlyReport(r.Context(), principal(r), userID, year, month)
	respond(h, w, r, http.StatusOK, report, err)
}

func (h *Handler) handleYearlyReport(w http.ResponseWriter, r *http.Request) {
	userID, year, _, err := period(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	report, err := h.svc.YearlyReport(r.Context(), principal(r), userID, year)
	respond(h, w, r, http.StatusOK, report, err)
}

// =============================================================================
// Goals and Summaries
// =============================================================================

func (h *Handler) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	goal, err := h.svc.CreateGoal(r.Context(), principal(r), workflow.GoalInput{
		GoalType:    domain.GoalType(req.GoalType),
		ProjectID:   req.ProjectID,
		TargetHours: req.TargetHours,
		StartDate:   start,
		EndDate:     end,
		Description: req.Description,
	})
	respond(h, w, r, http.StatusCreated, goal, err)
}

func (h *Handler) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.svc.ListGoals(r.Context(), principal(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, goals, store.ListOptions{Limit: len(goals)})
}

func (h *Handler) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	progress, err := h.svc.GoalProgress(r.Context(), principal(r), id)
	respond(h, w, r, http.StatusOK, progress, err)
}

func (h *Handler) handleRefreshSummaries(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}
	now := time.Now().UTC()
	if req.Year == 0 {
		req.Year = now.Year()
	}
	if req.Month == 0 {
		req.Month = int(now.Month())
	}
	n, err := h.svc.RefreshHourSummaries(r.Context(), principal(r), req.Year, req.Month)
	respond(h, w, r, http.StatusOK, CountResponse{Affected: n}, err)
}

func (h *Handler) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	userID, year, _, err := period(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	list, err := h.svc.ListHourSummaries(r.Context(), principal(r), userID, year)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, list, store.ListOptions{Limit: len(list)})
}

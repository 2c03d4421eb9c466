package api

import (
	"net/http"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/shell/store"
	"github.com/artpar/keyhours/internal/shell/workflow"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) applicationRoutes(r chi.Router) {
	r.Route("/applications", func(r chi.Router) {
		r.Get("/", h.handleListApplications)
		r.Post("/", h.handleSubmitApplication)
		r.Post("/bulk", h.handleBulkApplications)
		r.Get("/stats", h.handleApplicationStats)
		r.Get("/dashboard", h.handleApplicationDashboard)
		r.Get("/{id}", h.handleGetApplication)
		r.Post("/{id}/review", h.handleReviewApplication)
		r.Post("/{id}/status", h.handleApplicationStatus)
		r.Post("/{id}/cancel", h.handleCancelApplication)
		r.Post("/{id}/evaluations", h.handleEvaluateApplication)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.handleListNotifications)
		r.Post("/{id}/read", h.handleMarkNotificationRead)
	})
}

// =============================================================================
// Submission
// =============================================================================

func (h *Handler) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	var req ApplicationRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	pref, err := parseOptionalDate("start_date_preference", req.StartDatePreference)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	app, err := h.svc.SubmitApplication(r.Context(), principal(r), workflow.SubmitApplicationInput{
		ProjectID: req.ProjectID,
		ApplicationInput: domain.ApplicationInput{
			Motivation:            req.Motivation,
			RelevantExperience:    req.RelevantExperience,
			AvailableHoursPerWeek: req.AvailableHoursPerWeek,
			StartDatePreference:   pref,
			AdditionalNotes:       req.AdditionalNotes,
		},
	})
	respond(h, w, r, http.StatusCreated, app, err)
}

func (h *Handler) handleCancelApplication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	app, err := h.svc.CancelApplication(r.Context(), principal(r), id)
	respond(h, w, r, http.StatusOK, app, err)
}

// =============================================================================
// Review
// =============================================================================

// statusChange decodes the id and a StatusRequest shared by the review and
// status endpoints.
func statusChange(r *http.Request) (int64, StatusRequest, error) {
	var req StatusRequest
	id, err := pathID(r, "id")
	if err != nil {
		return 0, req, err
	}
	if err := decode(r, &req); err != nil {
		return 0, req, err
	}
	if !domain.ApplicationMachine.Known(domain.ApplicationStatus(req.Status)) {
		return 0, req, domain.NewValidationError("status", domain.ErrInvalidEnum)
	}
	return id, req, nil
}

func (h *Handler) handleReviewApplication(w http.ResponseWriter, r *http.Request) {
	id, req, err := statusChange(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	app, err := h.svc.ReviewApplication(r.Context(), principal(r), id, domain.ApplicationStatus(req.Status), req.Notes)
	respond(h, w, r, http.StatusOK, app, err)
}

func (h *Handler) handleApplicationStatus(w http.ResponseWriter, r *http.Request) {
	id, req, err := statusChange(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	app, err := h.svc.UpdateApplicationStatus(r.Context(), principal(r), id, domain.ApplicationStatus(req.Status), req.Notes)
	respond(h, w, r, http.StatusOK, app, err)
}

func (h *Handler) handleBulkApplications(w http.ResponseWriter, r *http.Request) {
	var req BulkApplicationRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	n, err := h.svc.BulkApplicationAction(r.Context(), principal(r), req.IDs, workflow.BulkAction(req.Action), req.Notes)
	respond(h, w, r, http.StatusOK, CountResponse{Affected: n}, err)
}

func (h *Handler) handleEvaluateApplication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req EvaluationRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	ev, err := h.svc.EvaluateApplication(r.Context(), principal(r), id, workflow.EvaluationInput{
		Score:          req.Score,
		Comments:       req.Comments,
		Recommendation: domain.Recommendation(req.Recommendation),
	})
	respond(h, w, r, http.StatusCreated, ev, err)
}

// =============================================================================
// Queries
// =============================================================================

func (h *Handler) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	detail, err := h.svc.GetApplication(r.Context(), principal(r), id)
	respond(h, w, r, http.StatusOK, detail, err)
}

func (h *Handler) handleListApplications(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var filter store.ApplicationFilter
	if filter.UserID, err = queryInt(r, "user_id"); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if filter.ProjectID, err = queryInt(r, "project_id"); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	for _, raw := range queryList(r, "status") {
		st := domain.ApplicationStatus(raw)
		if !domain.ApplicationMachine.Known(st) {
			h.writeServiceError(w, r, domain.NewValidationError("status", domain.ErrInvalidEnum))
			return
		}
		filter.Status = append(filter.Status, st)
	}
	apps, err := h.svc.ListApplications(r.Context(), principal(r), filter, opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, apps, opts)
}

func (h *Handler) handleApplicationStats(w http.ResponseWriter, r *http.Request) {
	projectID, err := queryInt(r, "project_id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	stats, err := h.svc.ApplicationStats(r.Context(), principal(r), projectID)
	respond(h, w, r, http.StatusOK, stats, err)
}

func (h *Handler) handleApplicationDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.svc.ApplicationDashboard(r.Context(), principal(r))
	respond(h, w, r, http.StatusOK, dash, err)
}

// =============================================================================
// Notifications
// =============================================================================

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	unread, err := queryBool(r, "unread")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	list, err := h.svc.ListNotifications(r.Context(), principal(r), unread, opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, list, opts)
}

func (h *Handler) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.svc.MarkNotificationRead(r.Context(), principal(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

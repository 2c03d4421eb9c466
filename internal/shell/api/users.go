package api

import (
	"net/http"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/shell/store"
	"github.com/artpar/keyhours/internal/shell/workflow"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) userRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.handleListUsers)
		r.Post("/", h.handleRegisterUser)
		r.Post("/students", h.handleCreateStudent)
		r.Get("/stats", h.handleUserStats)
		r.Get("/me", h.handleMe)
		r.Get("/me/dashboard", h.handleMyDashboard)
		r.Get("/{id}", h.handleGetUser)
		r.Patch("/{id}", h.handleUpdateUser)
		r.Get("/{id}/dashboard", h.handleUserDashboard)
		r.Get("/{id}/scholarships", h.handleListUserScholarships)
		r.Post("/{id}/scholarships", h.handleAssignScholarship)
	})

	r.Route("/scholarships", func(r chi.Router) {
		r.Get("/", h.handleListScholarships)
		r.Post("/", h.handleCreateScholarship)
		r.Get("/{id}", h.handleGetScholarship)
	})
	r.Get("/user-scholarships/{id}/progress", h.handleScholarshipProgress)
}

// =============================================================================
// Authentication
// =============================================================================

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	token, err := h.svc.Authenticate(r.Context(), req.Username, req.Password)
	respond(h, w, r, http.StatusOK, token, err)
}

// =============================================================================
// Accounts
// =============================================================================

func (p ProfileRequest) input() workflow.ProfileInput {
	return workflow.ProfileInput{
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Carnet:    p.Carnet,
		Phone:     p.Phone,
		Career:    p.Career,
		Semester:  p.Semester,
	}
}

func (h *Handler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	userType := domain.UserType(req.UserType)
	if userType == "" {
		userType = domain.UserTypeStudent
	}
	user, err := h.svc.RegisterUser(r.Context(), principal(r), workflow.RegisterInput{
		ProfileInput: req.input(),
		Username:     req.Username,
		Password:     req.Password,
		UserType:     userType,
	})
	respond(h, w, r, http.StatusCreated, user, err)
}

func (h *Handler) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	in := req.input()
	in.Carnet = req.Carnet
	created, err := h.svc.CreateStudent(r.Context(), principal(r), in)
	respond(h, w, r, http.StatusCreated, created, err)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), principal(r))
	respond(h, w, r, http.StatusOK, user, err)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	user, err := h.svc.GetUser(r.Context(), principal(r), id)
	respond(h, w, r, http.StatusOK, user, err)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	active, err := queryBool(r, "active")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	filter := store.UserFilter{
		UserType:   domain.UserType(r.URL.Query().Get("user_type")),
		ActiveOnly: active,
		Search:     r.URL.Query().Get("search"),
	}
	if filter.UserType != "" && !filter.UserType.Valid() {
		h.writeServiceError(w, r, domain.NewValidationError("user_type", domain.ErrInvalidEnum))
		return
	}
	users, err := h.svc.ListUsers(r.Context(), principal(r), filter, opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, users, opts)
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req UpdateUserRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	user, err := h.svc.UpdateUser(r.Context(), principal(r), id, workflow.UserPatch{
		Email:                 req.Email,
		FirstName:             req.FirstName,
		LastName:              req.LastName,
		Phone:                 req.Phone,
		Career:                req.Career,
		Semester:              req.Semester,
		Password:              req.Password,
		Carnet:                req.Carnet,
		ScholarshipType:       req.ScholarshipType,
		ScholarshipPercentage: req.ScholarshipPercentage,
		IsActive:              req.IsActive,
	})
	respond(h, w, r, http.StatusOK, user, err)
}

// =============================================================================
// Reports
// =============================================================================

func (h *Handler) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.UserStats(r.Context(), principal(r))
	respond(h, w, r, http.StatusOK, stats, err)
}

func (h *Handler) handleMyDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.svc.UserDashboard(r.Context(), principal(r), 0)
	respond(h, w, r, http.StatusOK, dash, err)
}

func (h *Handler) handleUserDashboard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dash, err := h.svc.UserDashboard(r.Context(), principal(r), id)
	respond(h, w, r, http.StatusOK, dash, err)
}

// =============================================================================
// Scholarships
// =============================================================================

func (h *Handler) handleCreateScholarship(w http.ResponseWriter, r *http.Request) {
	var req ScholarshipRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	sc, err := h.svc.CreateScholarship(r.Context(), principal(r), domain.Scholarship{
		Name:          req.Name,
		Kind:          domain.ScholarshipKind(req.Type),
		Description:   req.Description,
		RequiredHours: req.RequiredHours,
		DurationYears: req.DurationYears,
		IsActive:      true,
	})
	respond(h, w, r, http.StatusCreated, sc, err)
}

func (h *Handler) handleGetScholarship(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	sc, err := h.svc.GetScholarship(r.Context(), principal(r), id)
	respond(h, w, r, http.StatusOK, sc, err)
}

func (h *Handler) handleListScholarships(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListScholarships(r.Context(), principal(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, list, store.ListOptions{Limit: len(list)})
}

func (h *Handler) handleAssignScholarship(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req AssignScholarshipRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	end, err := parseOptionalDate("end_date", req.EndDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	us, err := h.svc.AssignScholarship(r.Context(), principal(r), userID, req.ScholarshipID, start, end)
	respond(h, w, r, http.StatusCreated, us, err)
}

func (h *Handler) handleListUserScholarships(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	list, err := h.svc.ListUserScholarships(r.Context(), principal(r), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, list, store.ListOptions{Limit: len(list)})
}

func (h *Handler) handleScholarshipProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	progress, err := h.svc.ScholarshipProgress(r.Context(), principal(r), id)
	respond(h, w, r, http.StatusOK, progress, err)
}

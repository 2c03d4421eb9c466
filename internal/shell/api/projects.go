package api

import (
	"net/http"

	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/shell/store"
	"github.com/artpar/keyhours/internal/shell/workflow"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

func (h *Handler) projectRoutes(r chi.Router) {
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.handleListCategories)
		r.Post("/", h.handleCreateCategory)
	})

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.handleListProjects)
		r.Post("/", h.handleCreateProject)
		r.Get("/mine", h.handleMyProjects)
		r.Get("/convocatorias", h.handleConvocatorias)
		r.Get("/dashboard", h.handleProjectDashboard)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetProject)
			r.Patch("/", h.handleUpdateProject)
			r.Delete("/", h.handleDeleteProject)
			r.Post("/publish", h.handlePublishProject)
			r.Post("/join", h.handleJoinProject)
			r.Post("/leave", h.handleLeaveProject)
			r.Get("/is-member", h.handleIsMember)
			r.Get("/stats", h.handleProjectStats)
			r.Get("/members", h.handleListMembers)
			r.Post("/members", h.handleAddMember)
			r.Delete("/members/{userID}", h.handleRemoveMember)
			r.Get("/requirements", h.handleListRequirements)
			r.Post("/requirements", h.handleAddRequirement)
			r.Get("/documents", h.handleListDocuments)
			r.Post("/documents", h.handleAddDocument)
		})
	})
}

// =============================================================================
// Categories
// =============================================================================

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	cat, err := h.svc.CreateCategory(r.Context(), principal(r), req.Name, req.Description)
	respond(h, w, r, http.StatusCreated, cat, err)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.ListCategories(r.Context(), principal(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, cats, store.ListOptions{Limit: len(cats)})
}

// =============================================================================
// Registry
// =============================================================================

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
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
	project, err := h.svc.CreateProject(r.Context(), principal(r), workflow.ProjectInput{
		Name:            req.Name,
		Description:     req.Description,
		ManagerID:       req.ManagerID,
		CategoryID:      req.CategoryID,
		MaxHours:        req.MaxHours,
		HourAssignment:  domain.HourAssignment(req.HourAssignment),
		AutomaticHours:  req.AutomaticHours,
		Visibility:      domain.Visibility(req.Visibility),
		StartDate:       start,
		EndDate:         end,
		MaxParticipants: req.MaxParticipants,
	})
	respond(h, w, r, http.StatusCreated, project, err)
}

func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req UpdateProjectRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	patch := workflow.ProjectPatch{
		Name:            req.Name,
		Description:     req.Description,
		ManagerID:       req.ManagerID,
		CategoryID:      req.CategoryID,
		MaxHours:        req.MaxHours,
		AutomaticHours:  req.AutomaticHours,
		MaxParticipants: req.MaxParticipants,
		IsActive:        req.IsActive,
	}
	if req.HourAssignment != nil {
		patch.HourAssignment = lo.ToPtr(domain.HourAssignment(*req.HourAssignment))
	}
	if req.Visibility != nil {
		patch.Visibility = lo.ToPtr(domain.Visibility(*req.Visibility))
	}
	if req.StartDate != nil {
		if patch.StartDate, err = parseOptionalDate("start_date", *req.StartDate); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}
	if req.EndDate != nil {
		if patch.EndDate, err = parseOptionalDate("end_date", *req.EndDate); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}
	project, err := h.svc.UpdateProject(r.Context(), principal(r), id, patch)
	respond(h, w, r, http.StatusOK, project, err)
}

func (h *Handler) handlePublishProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req PublishRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	project, err := h.svc.PublishProject(r.Context(), principal(r), id, domain.Visibility(req.Visibility))
	respond(h, w, r, http.StatusOK, project, err)
}

func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.svc.DeleteProject(r.Context(), principal(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Views
// =============================================================================

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	detail, err := h.svc.GetProject(r.Context(), principal(r), id)
	respond(h, w, r, http.StatusOK, detail, err)
}

func projectFilter(r *http.Request) (store.ProjectFilter, error) {
	var (
		filter store.ProjectFilter
		err    error
	)
	if filter.ManagerID, err = queryInt(r, "manager_id"); err != nil {
		return filter, err
	}
	if filter.CategoryID, err = queryInt(r, "category_id"); err != nil {
		return filter, err
	}
	if filter.ActiveOnly, err = queryBool(r, "active"); err != nil {
		return filter, err
	}
	if filter.HasSpots, err = queryBool(r, "has_spots"); err != nil {
		return filter, err
	}
	if filter.OpenOn, err = queryDate(r, "open_on"); err != nil {
		return filter, err
	}
	for _, raw := range queryList(r, "visibility") {
		v := domain.Visibility(raw)
		if !v.Valid() {
			return filter, domain.NewValidationError("visibility", domain.ErrInvalidEnum)
		}
		filter.Visibility = append(filter.Visibility, v)
	}
	return filter, nil
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	filter, err := projectFilter(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	projects, err := h.svc.ListProjects(r.Context(), principal(r), filter, opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, projects, opts)
}

func (h *Handler) handlePublicProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.PublicProjects(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, projects, store.ListOptions{Limit: len(projects)})
}

func (h *Handler) handleConvocatorias(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	projects, err := h.svc.ListConvocatorias(r.Context(), principal(r), opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, projects, opts)
}

func (h *Handler) handleMyProjects(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	projects, err := h.svc.MyProjects(r.Context(), principal(r), opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, projects, opts)
}

// =============================================================================
// Membership
// =============================================================================

func (h *Handler) handleJoinProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	project, err := h.svc.JoinProject(r.Context(), principal(r), id)
	respond(h, w, r, http.StatusOK, project, err)
}

func (h *Handler) handleLeaveProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	project, err := h.svc.LeaveProject(r.Context(), principal(r), id)
	respond(h, w, r, http.StatusOK, project, err)
}

func (h *Handler) handleIsMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	member, err := h.svc.IsMember(r.Context(), principal(r), id)
	respond(h, w, r, http.StatusOK, MembershipResponse{ProjectID: id, IsMember: member}, err)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	members, err := h.svc.ListMembers(r.Context(), principal(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, members, store.ListOptions{Limit: len(members)})
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req MemberRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	project, err := h.svc.AddMember(r.Context(), principal(r), id, req.UserID)
	respond(h, w, r, http.StatusOK, project, err)
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	project, err := h.svc.RemoveMember(r.Context(), principal(r), id, userID)
	respond(h, w, r, http.StatusOK, project, err)
}

// =============================================================================
// Requirements and Documents
// =============================================================================

func (h *Handler) handleAddRequirement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req RequirementRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	reqm, err := h.svc.AddRequirement(r.Context(), principal(r), id, req.Description, req.IsMandatory)
	respond(h, w, r, http.StatusCreated, reqm, err)
}

func (h *Handler) handleListRequirements(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	list, err := h.svc.ListRequirements(r.Context(), principal(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, list, store.ListOptions{Limit: len(list)})
}

func (h *Handler) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var req DocumentRequest
	if err := decode(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	doc, err := h.svc.AddDocument(r.Context(), principal(r), id, workflow.DocumentInput{
		Name:      req.Name,
		Reference: req.Reference,
		IsPublic:  req.IsPublic,
	})
	respond(h, w, r, http.StatusCreated, doc, err)
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	list, err := h.svc.ListDocuments(r.Context(), principal(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(h, w, list, store.ListOptions{Limit: len(list)})
}

// =============================================================================
// Reports
// =============================================================================

func (h *Handler) handleProjectStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	stats, err := h.svc.ProjectStats(r.Context(), principal(r), id)
	respond(h, w, r, http.StatusOK, stats, err)
}

func (h *Handler) handleProjectDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.svc.ProjectDashboard(r.Context(), principal(r))
	respond(h, w, r, http.StatusOK, dash, err)
}

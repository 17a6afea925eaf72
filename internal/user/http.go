package user

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rewan24/E-Learning-Lessons-Platform/common/httputil"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/access"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/apperr"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/query"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/respond"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/validation"
)

type Handler struct {
	service  Service
	students access.StudentResolver
	validate *validation.Validator
	logger   *slog.Logger
	listOpts query.Options
}

func NewHandler(service Service, students access.StudentResolver, validate *validation.Validator, logger *slog.Logger, pageSize, maxPageSize int) *Handler {
	return &Handler{
		service:  service,
		students: students,
		validate: validate,
		logger:   logger,
		listOpts: query.Options{
			DefaultPageSize: pageSize,
			MaxPageSize:     maxPageSize,
			DefaultOrdering: "id",
			OrderFields:     []string{"id", "username", "email", "date_joined"},
		},
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.ListUsers)
	r.Get("/users/me", h.Me)
	r.Get("/users/{id}", h.GetUser)
	r.Put("/users/{id}", h.UpdateUser)
	r.Patch("/users/{id}", h.UpdateUser)
	r.Delete("/users/{id}", h.DeleteUser)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, err := access.RequireAdmin(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	params, err := query.Parse(r, h.listOpts)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	users, total, err := h.service.List(r.Context(), params)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, query.NewPage(r, params, users, total))
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller, err := access.RequireCaller(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	u, err := h.service.Get(r.Context(), caller.UserID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	profile := Profile{User: *u}
	studentID, err := h.students.StudentIDForUser(r.Context(), u.ID)
	switch {
	case err == nil:
		profile.StudentID = &studentID
	case apperr.KindOf(err) != apperr.KindNotFound:
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, profile)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	if _, err := access.RequireAdmin(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	id, err := httputil.PathID(r, "id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, u)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	if _, err := access.RequireAdmin(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	id, err := httputil.PathID(r, "id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var req UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "updating user", "user_id", id)
	u, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, u)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if _, err := access.RequireAdmin(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	id, err := httputil.PathID(r, "id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "deleting user", "user_id", id)
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, r, h.logger, err)
}

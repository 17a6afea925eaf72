package group

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rewan24/E-Learning-Lessons-Platform/common/httputil"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/access"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/query"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/respond"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/student"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/validation"
)

// MemberLister lists the students booked into a group.
type MemberLister interface {
	GroupMembers(ctx context.Context, groupID int64) ([]student.Student, error)
}

type Handler struct {
	service  Service
	members  MemberLister
	validate *validation.Validator
	metrics  *metrics.Metrics
	logger   *slog.Logger
	listOpts query.Options
}

func NewHandler(service Service, members MemberLister, validate *validation.Validator, m *metrics.Metrics, logger *slog.Logger, pageSize, maxPageSize int) *Handler {
	return &Handler{
		service:  service,
		members:  members,
		validate: validate,
		metrics:  m,
		logger:   logger,
		listOpts: query.Options{
			DefaultPageSize: pageSize,
			MaxPageSize:     maxPageSize,
			DefaultOrdering: "-created_at",
			OrderFields:     []string{"id", "name", "stage", "capacity", "created_at"},
		},
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/groups", h.ListGroups)
	r.Post("/groups", h.CreateGroup)
	r.Post("/groups/create", h.CreateGroup)
	r.Get("/groups/{id}", h.GetGroup)
	r.Put("/groups/{id}", h.UpdateGroup)
	r.Patch("/groups/{id}", h.UpdateGroup)
	r.Delete("/groups/{id}", h.DeleteGroup)
}

func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	params, err := query.Parse(r, h.listOpts)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	groups, total, err := h.service.ListGroups(r.Context(), params)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, query.NewPage(r, params, groups, total))
}

// GetGroup is public; administrators also get the member list.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathID(r, "id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	g, err := h.service.GetGroup(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	caller, ok := access.CallerFrom(r.Context())
	if !ok || !caller.IsStaff {
		httputil.RespondWithJSON(w, http.StatusOK, g)
		return
	}

	students, err := h.members.GroupMembers(r.Context(), g.ID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	detail := Detail{Group: g, Students: make([]Member, 0, len(students))}
	for _, s := range students {
		detail.Students = append(detail.Students, Member{ID: s.ID, FullName: s.FullName, Phone: s.Phone})
	}
	httputil.RespondWithJSON(w, http.StatusOK, detail)
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	if _, err := access.RequireAdmin(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var req CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "creating group", "name", req.Name)
	g, err := h.service.CreateGroup(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, g)
}

func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
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

	h.logger.InfoContext(r.Context(), "updating group", "group_id", id)
	g, err := h.service.UpdateGroup(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, ErrInvalidCapacity) {
			h.metrics.RecordCapacityRejected(r.Context())
		}
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, g)
}

func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if _, err := access.RequireAdmin(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	id, err := httputil.PathID(r, "id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "deleting group", "group_id", id)
	if err := h.service.DeleteGroup(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, r, h.logger, err)
}

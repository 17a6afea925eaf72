package student

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rewan24/E-Learning-Lessons-Platform/common/httputil"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/access"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/apperr"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/query"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/respond"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/validation"
)

type Handler struct {
	service  Service
	validate *validation.Validator
	metrics  *metrics.Metrics
	logger   *slog.Logger
	listOpts query.Options
}

func NewHandler(service Service, validate *validation.Validator, m *metrics.Metrics, logger *slog.Logger, pageSize, maxPageSize int) *Handler {
	return &Handler{
		service:  service,
		validate: validate,
		metrics:  m,
		logger:   logger,
		listOpts: query.Options{
			DefaultPageSize: pageSize,
			MaxPageSize:     maxPageSize,
			DefaultOrdering: "id",
			OrderFields:     []string{"id", "full_name", "email", "stage", "created_at"},
		},
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/students", h.ListStudents)
	r.Post("/students", h.CreateStudent)
	r.Post("/students/create", h.CreateStudent)
	r.Get("/students/{id}", h.GetStudent)
	r.Put("/students/{id}", h.UpdateStudent)
	r.Patch("/students/{id}", h.UpdateStudent)
	r.Delete("/students/{id}", h.DeleteStudent)
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	caller, err := access.RequireCaller(r.Context())
	if err != nil {
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

	// Only administrators choose the linked account.
	if !caller.IsStaff {
		req.UserID = &caller.UserID
	}

	h.logger.InfoContext(r.Context(), "creating student", "email", req.Email, "user_id", req.UserID)
	student, err := h.service.CreateStudent(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.metrics.RecordStudentCreated(r.Context())

	httputil.RespondWithJSON(w, http.StatusCreated, student)
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	if _, err := access.RequireAdmin(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	params, err := query.Parse(r, h.listOpts)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	students, total, err := h.service.ListStudents(r.Context(), params)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, query.NewPage(r, params, students, total))
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	student, ok := h.authorized(w, r)
	if !ok {
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, student)
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	student, ok := h.authorized(w, r)
	if !ok {
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

	h.logger.InfoContext(r.Context(), "updating student", "student_id", student.ID)
	updated, err := h.service.UpdateStudent(r.Context(), student.ID, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	student, ok := h.authorized(w, r)
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "deleting student", "student_id", student.ID)
	if err := h.service.DeleteStudent(r.Context(), student.ID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// authorized loads the student named in the path and checks that the caller
// owns it or is an administrator. It writes the error response itself.
func (h *Handler) authorized(w http.ResponseWriter, r *http.Request) (*Student, bool) {
	caller, err := access.RequireCaller(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return nil, false
	}

	id, err := httputil.PathID(r, "id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return nil, false
	}

	student, err := h.service.GetStudent(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return nil, false
	}
	if !access.CanActOnStudent(caller, student.UserID) {
		h.handleServiceError(w, r, apperr.ErrForbidden)
		return nil, false
	}
	return student, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, r, h.logger, err)
}

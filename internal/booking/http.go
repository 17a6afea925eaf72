package booking

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rewan24/E-Learning-Lessons-Platform/common/httputil"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/access"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/apperr"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/i18n"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/query"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/respond"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/validation"
)

// Service is the part of the Engine the HTTP layer uses.
type Service interface {
	CreateBooking(ctx context.Context, studentID, groupID int64) (*Booking, error)
	CancelBooking(ctx context.Context, studentID, groupID int64) (bool, error)
	CancelBookingByID(ctx context.Context, bookingID int64) error
	GetBooking(ctx context.Context, id int64) (*Booking, error)
	SeatsLeft(ctx context.Context, groupID int64) (int, error)
	ListBookingsForStudent(ctx context.Context, studentID int64) ([]Booking, error)
	ListBookingsForGroup(ctx context.Context, groupID int64) ([]Booking, error)
	FindBookings(ctx context.Context, f Filter) ([]Booking, error)
	ListBookings(ctx context.Context, f Filter, p query.ListParams) ([]Booking, int, error)
}

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
			DefaultOrdering: "-created_at",
			OrderFields:     []string{"id", "student_id", "group_id", "created_at"},
		},
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/bookings", h.ListMyBookings)
	r.Post("/bookings", h.CreateBooking)
	r.Get("/bookings/admin", h.ListAllBookings)
	r.Get("/bookings/{id}", h.GetBooking)
	r.Delete("/bookings/{id}", h.DeleteBooking)
	r.Post("/bookings/group/{group_id}/join", h.JoinGroup)
	r.Post("/bookings/group/{group_id}/leave", h.LeaveGroup)
	r.Get("/groups/{id}/bookings", h.ListGroupBookings)
}

// ListMyBookings returns the caller's bookings. Administrators may filter by
// any student or group; other callers only see their own profile.
func (h *Handler) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	caller, err := access.RequireCaller(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	params, err := query.Parse(r, h.listOpts)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	filter, err := filterFrom(params)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var bookings []Booking
	if caller.IsStaff {
		bookings, err = h.service.FindBookings(r.Context(), filter)
	} else {
		var studentID int64
		if _, studentID, err = access.RequireStudent(r.Context(), h.students); err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		if filter.StudentID != 0 && filter.StudentID != studentID {
			h.handleServiceError(w, r, apperr.ErrForbidden)
			return
		}
		bookings, err = h.service.ListBookingsForStudent(r.Context(), studentID)
	}
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, bookings)
}

func (h *Handler) ListAllBookings(w http.ResponseWriter, r *http.Request) {
	if _, err := access.RequireAdmin(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	params, err := query.Parse(r, h.listOpts)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	filter, err := filterFrom(params)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	bookings, total, err := h.service.ListBookings(r.Context(), filter, params)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, query.NewPage(r, params, bookings, total))
}

func (h *Handler) ListGroupBookings(w http.ResponseWriter, r *http.Request) {
	if _, err := access.RequireAdmin(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	groupID, err := httputil.PathID(r, "id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	bookings, err := h.service.ListBookingsForGroup(r.Context(), groupID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, bookings)
}

// CreateBooking books the caller's own profile. Administrators may book any
// student by passing student_id.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
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

	var studentID int64
	switch {
	case caller.IsStaff && req.StudentID != nil:
		studentID = *req.StudentID
	default:
		if _, studentID, err = access.RequireStudent(r.Context(), h.students); err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		if req.StudentID != nil && *req.StudentID != studentID {
			h.handleServiceError(w, r, apperr.ErrForbidden)
			return
		}
	}

	b, err := h.service.CreateBooking(r.Context(), studentID, req.GroupID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, b)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, ok := h.authorized(w, r)
	if !ok {
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, b)
}

func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	b, ok := h.authorized(w, r)
	if !ok {
		return
	}

	if err := h.service.CancelBookingByID(r.Context(), b.ID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	_, studentID, err := access.RequireStudent(r.Context(), h.students)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	groupID, err := httputil.PathID(r, "group_id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	b, err := h.service.CreateBooking(r.Context(), studentID, groupID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	seats, err := h.service.SeatsLeft(r.Context(), groupID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusCreated, JoinResponse{
		Message:   i18n.T(r.Context(), "joined group"),
		Booking:   b,
		SeatsLeft: seats,
	})
}

func (h *Handler) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	_, studentID, err := access.RequireStudent(r.Context(), h.students)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	groupID, err := httputil.PathID(r, "group_id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	removed, err := h.service.CancelBooking(r.Context(), studentID, groupID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	seats, err := h.service.SeatsLeft(r.Context(), groupID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	key := "left group"
	if !removed {
		key = "not a member of this group"
	}
	httputil.RespondWithJSON(w, http.StatusOK, LeaveResponse{
		Message:   i18n.T(r.Context(), key),
		Removed:   removed,
		SeatsLeft: seats,
	})
}

// authorized loads the booking named in the path and checks that it belongs
// to the caller's student profile, unless the caller is an administrator.
func (h *Handler) authorized(w http.ResponseWriter, r *http.Request) (*Booking, bool) {
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

	b, err := h.service.GetBooking(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return nil, false
	}
	if caller.IsStaff {
		return b, true
	}

	studentID, err := h.students.StudentIDForUser(r.Context(), caller.UserID)
	if err != nil || studentID != b.StudentID {
		h.handleServiceError(w, r, apperr.ErrForbidden)
		return nil, false
	}
	return b, true
}

// filterFrom reads the optional student and group filters of a listing.
func filterFrom(p query.ListParams) (Filter, error) {
	studentID, err := p.FilterID("student")
	if err != nil {
		return Filter{}, err
	}
	groupID, err := p.FilterID("group")
	if err != nil {
		return Filter{}, err
	}
	return Filter{StudentID: studentID, GroupID: groupID}, nil
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, r, h.logger, err)
}

package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rewan24/E-Learning-Lessons-Platform/common/httputil"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/respond"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/validation"
)

type Handler struct {
	service  *Service
	validate *validation.Validator
	logger   *slog.Logger
	cookies  CookiePolicy
}

func NewHandler(service *Service, validate *validation.Validator, logger *slog.Logger, cookies CookiePolicy) *Handler {
	return &Handler{
		service:  service,
		validate: validate,
		logger:   logger,
		cookies:  cookies,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/users/register", h.Register)
	r.Post("/token", h.Login)
	r.Post("/token/refresh", h.Refresh)
	r.Post("/token/logout", h.Logout)
	r.Post("/users/forgot-password", h.ForgotPassword)
	r.Post("/users/reset-password", h.ResetPassword)
}

// Register creates an account and returns it with a token pair.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.logger.InfoContext(r.Context(), "user registered", "user_id", resp.User.ID)

	SetAuthCookie(w, resp.Access, h.cookies)
	httputil.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.logger.InfoContext(r.Context(), "user logged in", "user_id", resp.User.ID)

	SetAuthCookie(w, resp.Access, h.cookies)
	httputil.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.RefreshAccessToken(r.Context(), req.Refresh)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	SetAuthCookie(w, resp.Access, h.cookies)
	httputil.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.Logout(r.Context(), req.Refresh); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	ClearAuthCookie(w, h.cookies)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.Message(w, r, http.StatusOK, "if the email exists, a reset link has been sent")
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	ClearAuthCookie(w, h.cookies)
	respond.Message(w, r, http.StatusOK, "password has been reset")
}

// decode reads and validates the body into dst, writing the error response
// itself when it fails.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := httputil.DecodeJSON(r, dst); err != nil {
		respond.Error(w, r, h.logger, err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respond.Error(w, r, h.logger, err)
		return false
	}
	return true
}

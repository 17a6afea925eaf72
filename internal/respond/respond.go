// Package respond turns service errors into localized JSON error responses.
package respond

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rewan24/E-Learning-Lessons-Platform/common/httputil"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/apperr"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/i18n"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/validation"
)

// Error writes err as a JSON error body with the status of its kind.
// Unclassified errors are logged and reported as 500.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ctx := r.Context()

	var fieldErrs validation.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		httputil.RespondWithCodedError(w, http.StatusBadRequest, string(apperr.KindInvalidInput),
			i18n.T(ctx, "validation failed"), fieldErrs)
		return
	case errors.Is(err, httputil.ErrInvalidBody), errors.Is(err, httputil.ErrEmptyBody):
		httputil.RespondWithCodedError(w, http.StatusBadRequest, string(apperr.KindInvalidInput),
			i18n.T(ctx, "invalid request body"), nil)
		return
	case errors.Is(err, httputil.ErrInvalidID):
		httputil.RespondWithCodedError(w, http.StatusBadRequest, string(apperr.KindInvalidInput),
			i18n.T(ctx, "invalid id"), nil)
		return
	}

	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "internal error", "error", err, "path", r.URL.Path)
		httputil.RespondWithCodedError(w, status, string(apperr.KindInternal), i18n.T(ctx, "internal server error"), nil)
		return
	}

	logger.InfoContext(ctx, "request rejected", "code", kind, "error", err)
	httputil.RespondWithCodedError(w, status, string(kind), i18n.T(ctx, apperr.KeyOf(err)), nil)
}

// Message writes {"message": ...} translated into the request language.
func Message(w http.ResponseWriter, r *http.Request, status int, key string) {
	httputil.RespondWithJSON(w, status, map[string]string{"message": i18n.T(r.Context(), key)})
}

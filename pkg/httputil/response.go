package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/jashezan/HomifyHub/pkg/errors"
	"github.com/jashezan/HomifyHub/pkg/logger"
	"github.com/jashezan/HomifyHub/pkg/validator"
)

// Failure is the body of every storefront response whose action did not
// succeed. The page shows Message verbatim.
type Failure struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Code      string            `json:"code,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a {success:false} body for err. AppErrors keep their
// status and message, validation errors answer 400, everything else is
// logged and answered with a generic 500. The request-scoped logger from
// context is preferred over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Failure{
			Message:   valErr.Message(),
			Code:      "VALIDATION_ERROR",
			Fields:    valErr.Fields(),
			RequestID: requestID,
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Failure{
		Message:   apperrors.UserMessage(err),
		Code:      code,
		RequestID: requestID,
	})
}

// ParseItemID parses a positive cart item id from a path parameter. On
// failure it writes a 400 {success:false} body and returns false.
func ParseItemID(w http.ResponseWriter, param string) (int64, bool) {
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id <= 0 {
		WriteJSON(w, http.StatusBadRequest, Failure{
			Message: "Invalid cart item.",
			Code:    "INVALID_PARAMETER",
		})
		return 0, false
	}
	return id, true
}

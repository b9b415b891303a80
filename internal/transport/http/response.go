package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"medy-coop-service/internal/domain"
)

// errMissingIdentity is returned when neither X-User-ID nor userId identify the caller.
var errMissingIdentity = &domain.Error{Kind: domain.KindPermission, Code: "UNAUTHENTICATED", Message: "missing user identity"}

type dataEnvelope struct {
	Data any `json:"data"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dataEnvelope{Data: data})
}

// writeError maps err to its HTTP status. Unknown errors are logged and reported as transient.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status := statusFor(err)
	if errors.Is(err, errMissingIdentity) {
		status = http.StatusUnauthorized
	}
	body := errorFrom(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", body.Code).Msg("request failed")
	}
	writeJSON(w, status, errorEnvelope{Error: body})
}

func errorFrom(err error) errorBody {
	var de *domain.Error
	if errors.As(err, &de) {
		return errorBody{Code: de.Code, Message: de.Message}
	}
	storage := domain.ErrStorageUnavailable.(*domain.Error)
	return errorBody{Code: storage.Code, Message: storage.Message}
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindPermission:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnavailable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}

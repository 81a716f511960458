package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/fixithostel/fixit/internal/api"
	"github.com/fixithostel/fixit/internal/services"
)

// statusForKind maps a service error kind to its HTTP status code
func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.ErrorKindNotFound:
		return http.StatusNotFound
	case services.ErrorKindInvalidArgument:
		return http.StatusBadRequest
	case services.ErrorKindConflict:
		return http.StatusConflict
	case services.ErrorKindStoreFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError renders err as {"error", "code"}. Only the service
// message reaches the client; wrapped store errors are logged.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var se *services.ServiceError
	if !errors.As(err, &se) {
		log.Printf("API: %s %s: unexpected error: %v", r.Method, r.URL.Path, err)
		api.RespondErrorWithCode(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	if se.Retryable() {
		log.Printf("API: %s %s: %v", r.Method, r.URL.Path, err)
	}
	api.RespondErrorWithCode(w, statusForKind(se.Kind), string(se.Kind), se.Message)
}

// decodeAndValidate decodes the request body into dst and runs its validation
// tags. It writes the error response itself and reports whether to continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := api.DecodeJSON(r, dst); err != nil {
		api.RespondErrorWithCode(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	if errs := api.Validate(dst); errs != nil {
		api.RespondValidationError(w, errs)
		return false
	}
	return true
}

package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/raywall/docstore-toolkit/mongodb"
	"github.com/raywall/docstore-toolkit/pkg/analysis"
	"github.com/raywall/docstore-toolkit/pkg/export"
)

type errorPayload struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, mongodb.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, mongodb.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, mongodb.ErrInvalidID):
		status = http.StatusBadRequest
	case errors.Is(err, mongodb.ErrNotConnected):
		status = http.StatusServiceUnavailable
	case errors.Is(err, export.ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, analysis.ErrUnknownAnalysis):
		status = http.StatusBadRequest
	case errors.As(err, &verrs):
		status = http.StatusBadRequest
	}

	writeJSON(w, status, errorPayload{Error: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorPayload{Error: message})
}

func writeTooLarge(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusRequestEntityTooLarge, errorPayload{Error: message})
}

// decodeBody parses a JSON request body into out.
func decodeBody(r *http.Request, out interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

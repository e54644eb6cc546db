package utils

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"PenguinWatch.dashboard/internal/models"
)

// RespondWithError sends a JSON error response using the APIError model.
// The HTTP status comes from the APIError.
func RespondWithError(writer http.ResponseWriter, apiErr models.APIError) {
	if apiErr.StatusCode == 0 {
		apiErr.StatusCode = http.StatusInternalServerError
	}
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(apiErr.StatusCode)

	if err := json.NewEncoder(writer).Encode(apiErr); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

// RespondWithJSON sends a JSON success response. Encoding failures go to the
// process logger since the status line is already written.
func RespondWithJSON(writer http.ResponseWriter, statusCode int, payload interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)
	if err := json.NewEncoder(writer).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

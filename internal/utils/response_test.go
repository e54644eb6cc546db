package utils

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"

	"PenguinWatch.dashboard/internal/models"
)

func TestRespondWithError_DefaultsToInternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, models.APIError{Code: models.ErrorCodeBadRequest, Message: "nope"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"message":"nope"`)
}

func TestRespondWithJSON_LogsEncodeFailure(t *testing.T) {
	var logs bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&logs)
	t.Cleanup(func() { log.Logger = prev })

	rec := httptest.NewRecorder()
	RespondWithJSON(rec, http.StatusOK, map[string]interface{}{"ch": make(chan int)})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), `"level":"error"`)
	assert.Contains(t, logs.String(), "Failed to encode JSON response")
}

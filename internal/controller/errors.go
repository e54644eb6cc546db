package controller

import (
	"errors"
	"net/http"

	"PenguinWatch.dashboard/internal/backend"
	"PenguinWatch.dashboard/internal/models"
	"PenguinWatch.dashboard/internal/report"
	"PenguinWatch.dashboard/internal/service"
	"PenguinWatch.dashboard/internal/utils"
)

// toAPIError maps service and backend failures to the error sent to the
// browser. message is used when err carries nothing more specific.
func toAPIError(err error, message string) models.APIError {
	var upstream models.APIError
	switch {
	case errors.Is(err, service.ErrNoPenguinID):
		return models.NewAPIError(models.ErrorCodeMissingParameter, err.Error(), nil, http.StatusBadRequest)
	case errors.Is(err, service.ErrFieldRequired):
		return models.NewAPIError(models.ErrorCodeMissingParameter, err.Error(), nil, http.StatusBadRequest)
	case errors.Is(err, service.ErrSuperseded):
		return models.NewAPIError(models.ErrorCodeSuperseded, err.Error(), nil, http.StatusConflict)
	case errors.Is(err, service.ErrArchiveDisabled):
		return models.NewAPIError(models.ErrorCodeUnavailable, err.Error(), nil, http.StatusServiceUnavailable)
	case errors.Is(err, report.ErrNotImplemented):
		return models.NewAPIError(models.ErrorCodeNotImplemented, err.Error(), nil, http.StatusNotImplemented)
	case errors.Is(err, backend.ErrNoData):
		return models.NewAPIError(models.ErrorCodeNoData, messageOr(err, message), nil, http.StatusNotFound)
	case errors.As(err, &upstream):
		status := http.StatusBadGateway
		if upstream.Code == models.ErrorCodeNotFound {
			status = http.StatusNotFound
		}
		return models.NewAPIError(upstream.Code, messageOr(err, message), upstream.Message, status)
	default:
		return models.NewAPIError(models.ErrorCodeInternalServerError, message, err.Error(), http.StatusInternalServerError)
	}
}

// messageOr prefers the text of a ProfileError, which is already meant for
// display.
func messageOr(err error, message string) string {
	var pe *service.ProfileError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	return message
}

func respondWithError(w http.ResponseWriter, err error, message string) {
	utils.RespondWithError(w, toAPIError(err, message))
}

package api

import (
	"errors"
	"net/http"

	"metriclens/internal/domain"
)

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var validationErr *domain.ValidationError
	var notFoundErr *domain.NotFoundError
	var joinErr *domain.UnresolvableJoinError
	var cycleErr *domain.CircularDependencyError
	var crossErr *domain.CrossConnectionError
	var relationErr *domain.UnsupportedRelationError

	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	case errors.As(err, &joinErr),
		errors.As(err, &cycleErr),
		errors.As(err, &crossErr),
		errors.As(err, &relationErr):
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

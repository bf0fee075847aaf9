// Package http contains the chi handlers for the REST surface. Handlers
// decode and validate request DTOs, delegate to the services layer, and
// translate service errors into the shared APIError envelope.
package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"stickforstats/internal/audit"
	apierrors "stickforstats/internal/errors"
	"stickforstats/internal/guardian"
	"stickforstats/internal/operations"
	"stickforstats/internal/services"
	"stickforstats/internal/stats"
	"stickforstats/internal/workflow"
	api "stickforstats/pkg/contracts/api/v1"
)

// decodeValid decodes the JSON body into req and runs tag validation.
func decodeValid(r *http.Request, req interface{}) error {
	if err := render.DecodeJSON(r.Body, req); err != nil {
		return apierrors.InvalidRequestWithError(err)
	}
	if err := api.Validate(req); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError flattens validator field errors into the envelope.
func validationError(err error) *apierrors.APIError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make([]apierrors.ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, apierrors.ValidationError{
				Field:   fe.Field(),
				Message: fe.Tag(),
			})
		}
		return apierrors.NewValidationErrors(details)
	}
	return apierrors.NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED",
		"Request validation failed", err.Error())
}

// mapError translates service and engine errors into APIErrors.
func mapError(err error) *apierrors.APIError {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if ae, ok := services.AsAssumptionsError(err); ok {
		return apierrors.AssumptionsFailedError(ae.Report)
	}

	var unknownTest *guardian.ErrUnknownTest
	switch {
	case errors.Is(err, stats.ErrInvalidInput):
		return apierrors.InvalidDataError(err)
	case errors.Is(err, api.ErrMissingSample),
		errors.Is(err, services.ErrUnknownTestKind),
		errors.Is(err, services.ErrUnknownChartKind),
		errors.Is(err, services.ErrInvalidPayload),
		errors.Is(err, operations.ErrUnknownKind),
		errors.Is(err, workflow.ErrUnknownStep),
		errors.As(err, &unknownTest):
		return apierrors.NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED",
			"Request validation failed", err.Error())
	case errors.Is(err, services.ErrExportUnsupported):
		return apierrors.NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED",
			"Unsupported export format", err.Error())
	case errors.Is(err, audit.ErrNotFound):
		return apierrors.ErrRecordNotFound
	case errors.Is(err, workflow.ErrSessionNotFound):
		return apierrors.ErrSessionNotFound
	case errors.Is(err, operations.ErrJobNotFound):
		return apierrors.ErrJobNotFound
	case errors.Is(err, services.ErrStoreUnavailable):
		return apierrors.ErrServiceUnavailable
	}
	return apierrors.ErrInternalServer
}

// renderError writes the mapped error envelope.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	render.Render(w, r, apierrors.NewErrorResponse(mapError(err)))
}

// renderOK writes the standard success envelope.
func renderOK(w http.ResponseWriter, r *http.Request, data interface{}) {
	render.JSON(w, r, api.OK(data))
}

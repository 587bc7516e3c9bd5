package mediahttp

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/uniedit/mediagen/internal/domain/media"
	apperrors "github.com/uniedit/mediagen/internal/utils/errors"
)

// Media error codes.
const (
	codeSubmissionFailed    = "submission_failed"
	codeProviderUnavailable = "provider_unavailable"
	codeUnknownModel        = "unknown_model"
	codePollUnsupported     = "poll_unsupported"
	codeTaskNotFound        = "task_not_found"
	codeTaskTerminal        = "task_terminal"
	codeRecoveryExhausted   = "recovery_exhausted"
)

// toAppError maps media domain errors to API errors.
func toAppError(err error) *apperrors.AppError {
	var transportErr *media.TransportError
	switch {
	case media.IsSubmissionError(err):
		return apperrors.NewAppError(codeSubmissionFailed, err.Error(), http.StatusBadGateway, err)

	case errors.As(err, &transportErr):
		return apperrors.NewAppError(codeProviderUnavailable, err.Error(), http.StatusBadGateway, err)

	case errors.Is(err, media.ErrInvalidInput):
		return apperrors.NewAppError(apperrors.CodeInvalidInput, err.Error(), http.StatusBadRequest, err)

	case errors.Is(err, media.ErrUnknownModel):
		return apperrors.NewAppError(codeUnknownModel, err.Error(), http.StatusBadRequest, err)

	case errors.Is(err, media.ErrPollUnsupported):
		return apperrors.NewAppError(codePollUnsupported, err.Error(), http.StatusBadRequest, err)

	// Someone else's task looks the same as a missing one.
	case errors.Is(err, media.ErrTaskNotFound), errors.Is(err, media.ErrTaskNotOwned):
		return apperrors.NewAppError(codeTaskNotFound, media.ErrTaskNotFound.Error(), http.StatusNotFound, err)

	case errors.Is(err, media.ErrTaskTerminal):
		return apperrors.NewAppError(codeTaskTerminal, err.Error(), http.StatusConflict, err)

	case errors.Is(err, media.ErrRecoveryExhausted):
		return apperrors.NewAppError(codeRecoveryExhausted, err.Error(), http.StatusUnprocessableEntity, err)

	default:
		return nil
	}
}

// handleMediaError writes the API error for err. Errors outside the media
// domain fall back to their generic status; server errors are logged.
func handleMediaError(c *gin.Context, logger *zap.Logger, err error) {
	appErr := toAppError(err)
	if appErr == nil {
		appErr = apperrors.FromError(err)
		if appErr.StatusCode >= http.StatusInternalServerError {
			logger.Error("unhandled media error",
				zap.String("path", c.FullPath()),
				zap.Error(err))
		}
	}
	apperrors.Respond(c, appErr)
}

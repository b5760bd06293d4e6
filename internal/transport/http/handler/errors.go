package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"grimoire-api/internal/domain"
	"grimoire-api/internal/media/images"
	resp "grimoire-api/internal/transport/http/response"
)

// fail maps domain errors onto the HTTP error taxonomy. Anything unmapped is
// an internal error and the message is not leaked to the client.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		resp.Fail(c, resp.CodeNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		resp.Fail(c, resp.CodeForbidden, err.Error())
	case errors.Is(err, domain.ErrEmailTaken), errors.Is(err, domain.ErrAlreadyRated):
		resp.Fail(c, resp.CodeConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		resp.Fail(c, resp.CodeUnauthorized, err.Error())
	case errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrWeakPassword),
		errors.Is(err, domain.ErrInvalidGrade):
		resp.Fail(c, resp.CodeBadRequest, err.Error())
	case errors.Is(err, images.ErrUnsupportedType):
		resp.Fail(c, resp.CodeUnsupportedMedia, err.Error())
	case errors.Is(err, images.ErrTooLarge):
		resp.Fail(c, resp.CodePayloadTooLarge, err.Error())
	default:
		_ = c.Error(err)
		resp.Fail(c, resp.CodeServerError, "")
	}
}

package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/caregiver-api/internal/handler"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
)

// ErrorHandler logs the errors handlers attached with c.Error. Server errors
// keep their cause in the log only. A handler that recorded an error without
// writing a response gets the error envelope here.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		for _, e := range c.Errors {
			event := zerologFrom(c).Warn()
			if apperrors.CodeOf(e.Err) == apperrors.ErrInternal {
				event = zerologFrom(c).Error()
			}
			event.Err(e.Err).
				Str("client_ip", c.ClientIP()).
				Msg("request error")
		}

		if !c.Writer.Written() {
			handler.RespondError(c, c.Errors.Last().Err)
		}
	}
}

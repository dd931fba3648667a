// Package public serves the unauthenticated patient view opened with a
// patient access token.
package public

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/caregiver-api/internal/handler"
	"github.com/jwalitptl/caregiver-api/internal/service/dashboard"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
)

type Handler struct {
	service *dashboard.Service
}

func NewHandler(service *dashboard.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/public/patients/:token", h.GetPatient)
}

func (h *Handler) GetPatient(c *gin.Context) {
	token, err := uuid.Parse(c.Param("token"))
	if err != nil {
		// malformed tokens look the same as unknown ones
		handler.RespondError(c, apperrors.NotFound("patient", err))
		return
	}

	view, err := h.service.PatientByToken(c.Request.Context(), token)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

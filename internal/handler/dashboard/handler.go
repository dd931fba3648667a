package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/caregiver-api/internal/handler"
	"github.com/jwalitptl/caregiver-api/internal/service/dashboard"
)

type Handler struct {
	service *dashboard.Service
}

func NewHandler(service *dashboard.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard", h.Today)
}

// Today serves the caregiver overview. ?patient_id picks the patient whose
// upcoming doses and routines are shown.
func (h *Handler) Today(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	patientID, ok := handler.QueryID(c, "patient_id")
	if !ok {
		return
	}

	view, err := h.service.Today(c.Request.Context(), caregiverID, patientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

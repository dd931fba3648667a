package routine

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/caregiver-api/internal/handler"
	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/service/routine"
)

type Handler struct {
	service routine.RoutineService
}

func NewHandler(service routine.RoutineService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	routines := r.Group("/routines")
	{
		routines.GET("", h.ListRoutines)
		routines.POST("", h.CreateRoutine)
		routines.GET("/:id", h.GetRoutine)
		routines.PUT("/:id", h.UpdateRoutine)
		routines.DELETE("/:id", h.DeleteRoutine)
		routines.POST("/:id/toggle-complete", h.ToggleComplete)
	}
}

func (h *Handler) CreateRoutine(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}

	var req model.CreateRoutineRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	routine, err := h.service.CreateRoutine(c.Request.Context(), caregiverID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(routine))
}

func (h *Handler) ListRoutines(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	patientID, ok := handler.QueryID(c, "patient_id")
	if !ok {
		return
	}

	routines, err := h.service.ListRoutines(c.Request.Context(), caregiverID, patientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(routines))
}

func (h *Handler) GetRoutine(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	routine, err := h.service.GetRoutine(c.Request.Context(), caregiverID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(routine))
}

func (h *Handler) UpdateRoutine(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateRoutineRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	routine, err := h.service.UpdateRoutine(c.Request.Context(), caregiverID, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(routine))
}

func (h *Handler) DeleteRoutine(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteRoutine(c.Request.Context(), caregiverID, id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse("routine deleted successfully"))
}

func (h *Handler) ToggleComplete(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	routine, err := h.service.ToggleComplete(c.Request.Context(), caregiverID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(routine))
}

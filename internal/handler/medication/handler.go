package medication

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/caregiver-api/internal/handler"
	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/service/medication"
)

type Handler struct {
	service medication.MedicationService
}

func NewHandler(service medication.MedicationService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	medications := r.Group("/medications")
	{
		medications.GET("", h.ListMedications)
		medications.POST("", h.CreateMedication)
		medications.GET("/schedule", h.Schedule)
		medications.GET("/:id", h.GetMedication)
		medications.PUT("/:id", h.UpdateMedication)
		medications.DELETE("/:id", h.DeleteMedication)
		medications.POST("/:id/mark-as-taken", h.MarkAsTaken)
		medications.GET("/:id/logs", h.ListLogs)
	}
}

func (h *Handler) CreateMedication(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}

	var req model.CreateMedicationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	medication, err := h.service.CreateMedication(c.Request.Context(), caregiverID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(medication))
}

func (h *Handler) ListMedications(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	patientID, ok := handler.QueryID(c, "patient_id")
	if !ok {
		return
	}

	medications, err := h.service.ListMedications(c.Request.Context(), caregiverID, patientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(medications))
}

func (h *Handler) Schedule(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	patientID, ok := handler.QueryID(c, "patient_id")
	if !ok {
		return
	}
	date, ok := handler.QueryDate(c, "date")
	if !ok {
		return
	}

	doses, err := h.service.Schedule(c.Request.Context(), caregiverID, patientID, date)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(doses))
}

func (h *Handler) GetMedication(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	medication, err := h.service.GetMedication(c.Request.Context(), caregiverID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(medication))
}

func (h *Handler) UpdateMedication(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateMedicationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	medication, err := h.service.UpdateMedication(c.Request.Context(), caregiverID, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(medication))
}

func (h *Handler) DeleteMedication(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteMedication(c.Request.Context(), caregiverID, id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse("medication deleted successfully"))
}

// MarkAsTaken toggles the dose on ?date (default today). An optional
// {"taken": bool} body sets the state instead of toggling it.
func (h *Handler) MarkAsTaken(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	date, ok := handler.QueryDate(c, "date")
	if !ok {
		return
	}

	var req model.MarkAsTakenRequest
	if !handler.BindOptionalJSON(c, &req) {
		return
	}

	result, err := h.service.MarkAsTaken(c.Request.Context(), caregiverID, id, date, req.Taken)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) ListLogs(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	logs, err := h.service.ListLogs(c.Request.Context(), caregiverID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(logs))
}

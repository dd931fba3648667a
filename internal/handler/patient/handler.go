package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/caregiver-api/internal/handler"
	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/service/dashboard"
	"github.com/jwalitptl/caregiver-api/internal/service/patient"
)

type Handler struct {
	service   patient.PatientService
	dashboard *dashboard.Service
}

func NewHandler(service patient.PatientService, dashboard *dashboard.Service) *Handler {
	return &Handler{
		service:   service,
		dashboard: dashboard,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.DELETE("/:id", h.DeletePatient)
		patients.GET("/:id/dashboard", h.GetDashboard)
		patients.POST("/:id/access-token", h.RotateAccessToken)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}

	var req model.CreatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	patient, err := h.service.CreatePatient(c.Request.Context(), caregiverID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(patient))
}

func (h *Handler) ListPatients(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}

	patients, err := h.service.ListPatients(c.Request.Context(), caregiverID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}

func (h *Handler) GetPatient(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	patient, err := h.service.GetPatient(c.Request.Context(), caregiverID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.UpdatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	patient, err := h.service.UpdatePatient(c.Request.Context(), caregiverID, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

func (h *Handler) DeletePatient(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeletePatient(c.Request.Context(), caregiverID, id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse("patient deleted successfully"))
}

func (h *Handler) GetDashboard(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	view, err := h.dashboard.Patient(c.Request.Context(), caregiverID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

func (h *Handler) RotateAccessToken(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	patient, err := h.service.RotateAccessToken(c.Request.Context(), caregiverID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

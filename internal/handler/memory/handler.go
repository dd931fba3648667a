package memory

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/caregiver-api/internal/handler"
	"github.com/jwalitptl/caregiver-api/internal/model"
	"github.com/jwalitptl/caregiver-api/internal/service/memory"
	"github.com/jwalitptl/caregiver-api/internal/storage"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
)

// multipartMemory is how much of a form is buffered in memory before
// gin spills file parts to disk.
const multipartMemory = 8 << 20

type Handler struct {
	service memory.MemoryService
}

func NewHandler(service memory.MemoryService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	memories := r.Group("/memories")
	{
		memories.GET("", h.ListMemories)
		memories.POST("", h.CreateMemory)
		memories.GET("/:id", h.GetMemory)
		memories.PUT("/:id", h.UpdateMemory)
		memories.DELETE("/:id", h.DeleteMemory)
		memories.GET("/:id/image", h.media(storage.KindImage))
		memories.GET("/:id/audio", h.media(storage.KindAudio))
	}
}

// CreateMemory accepts multipart/form-data with patient_id, caption and
// optional image and audio file parts.
func (h *Handler) CreateMemory(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	form, ok := parseForm(c)
	if !ok {
		return
	}

	patientID, err := uuid.Parse(formValue(form, "patient_id"))
	if err != nil {
		handler.RespondError(c, apperrors.Validation("patient_id is required"))
		return
	}

	in := &model.CreateMemoryInput{
		PatientID: patientID,
		Caption:   formValue(form, "caption"),
	}
	var closers []io.Closer
	defer func() { closeAll(closers) }()
	if in.Image, err = upload(form, "image", &closers); err != nil {
		handler.RespondError(c, err)
		return
	}
	if in.Audio, err = upload(form, "audio", &closers); err != nil {
		handler.RespondError(c, err)
		return
	}

	record, err := h.service.CreateMemory(c.Request.Context(), caregiverID, in)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(record))
}

func (h *Handler) ListMemories(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	patientID, ok := handler.QueryID(c, "patient_id")
	if !ok {
		return
	}

	records, err := h.service.ListMemories(c.Request.Context(), caregiverID, patientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(records))
}

func (h *Handler) GetMemory(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	record, err := h.service.GetMemory(c.Request.Context(), caregiverID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(record))
}

// UpdateMemory takes the same form as CreateMemory. Every field is
// optional; remove_image and remove_audio drop a stored file.
func (h *Handler) UpdateMemory(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	form, ok := parseForm(c)
	if !ok {
		return
	}

	in := &model.UpdateMemoryInput{}
	if raw, ok := form.Value["patient_id"]; ok && len(raw) > 0 && raw[0] != "" {
		patientID, err := uuid.Parse(raw[0])
		if err != nil {
			handler.RespondError(c, apperrors.Validation("patient_id is invalid"))
			return
		}
		in.PatientID = &patientID
	}
	if raw, ok := form.Value["caption"]; ok && len(raw) > 0 {
		in.Caption = &raw[0]
	}
	if raw := formValue(form, "version"); raw != "" {
		version, err := strconv.Atoi(raw)
		if err != nil {
			handler.RespondError(c, apperrors.Validation("version must be a number"))
			return
		}
		in.Version = &version
	}
	in.RemoveImage, _ = strconv.ParseBool(formValue(form, "remove_image"))
	in.RemoveAudio, _ = strconv.ParseBool(formValue(form, "remove_audio"))

	var closers []io.Closer
	defer func() { closeAll(closers) }()
	var err error
	if in.Image, err = upload(form, "image", &closers); err != nil {
		handler.RespondError(c, err)
		return
	}
	if in.Audio, err = upload(form, "audio", &closers); err != nil {
		handler.RespondError(c, err)
		return
	}

	record, err := h.service.UpdateMemory(c.Request.Context(), caregiverID, id, in)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(record))
}

func (h *Handler) DeleteMemory(c *gin.Context) {
	caregiverID, ok := handler.MustCaregiverID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteMemory(c.Request.Context(), caregiverID, id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse("memory record deleted successfully"))
}

func (h *Handler) media(kind storage.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		caregiverID, ok := handler.MustCaregiverID(c)
		if !ok {
			return
		}
		id, ok := handler.ParamID(c, "id")
		if !ok {
			return
		}

		media, err := h.service.OpenMedia(c.Request.Context(), caregiverID, id, kind)
		if err != nil {
			handler.RespondError(c, err)
			return
		}
		defer media.Content.Close()

		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", media.Name))
		c.DataFromReader(http.StatusOK, -1, media.ContentType, media.Content, nil)
	}
}

func parseForm(c *gin.Context) (*multipart.Form, bool) {
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handler.RespondError(c, apperrors.Validation("request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		handler.RespondError(c, apperrors.BadRequest("expected a multipart form", err))
		return nil, false
	}
	return c.Request.MultipartForm, true
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func upload(form *multipart.Form, field string, closers *[]io.Closer) (*model.Upload, error) {
	files := form.File[field]
	if len(files) == 0 || files[0].Filename == "" {
		return nil, nil
	}
	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.BadRequest(fmt.Sprintf("unreadable %s upload", field), err)
	}
	*closers = append(*closers, f)
	return &model.Upload{Filename: fh.Filename, Size: fh.Size, Content: f}, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}

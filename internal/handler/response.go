package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jwalitptl/caregiver-api/internal/model"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
)

// Context keys set by the auth middleware.
const (
	ContextCaregiverID = "caregiver_id"
	ContextEmail       = "caregiver_email"
	ContextToken       = "access_token"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError writes err as an error envelope. Errors that are not
// AppErrors become a 500 and their text is not shown to the client.
func RespondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"
	if appErr, ok := apperrors.As(err); ok {
		status = appErr.StatusCode()
		if status != http.StatusInternalServerError {
			message = appErr.Message
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, NewErrorResponse(message))
}

// BindJSON decodes the body into obj and reports binding failures as validation errors.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondError(c, bindError(err))
		return false
	}
	return true
}

// BindOptionalJSON is BindJSON for endpoints where the body may be omitted.
func BindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		RespondError(c, bindError(err))
		return false
	}
	return true
}

func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.BadRequest("invalid request body", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email", fe.Field()))
		case "frequency":
			msgs = append(msgs, fmt.Sprintf("%s must be Daily or Weekly", fe.Field()))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return apperrors.Validation("%s", strings.Join(msgs, "; "))
}

// CaregiverID returns the authenticated caregiver.
func CaregiverID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextCaregiverID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// MustCaregiverID writes a 401 and returns false when the request is not authenticated.
func MustCaregiverID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := CaregiverID(c)
	if !ok {
		RespondError(c, apperrors.Unauthorized(nil))
	}
	return id, ok
}

func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, apperrors.BadRequest(fmt.Sprintf("invalid %s", name), err))
		return uuid.Nil, false
	}
	return id, true
}

// QueryID parses an optional uuid query parameter.
func QueryID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		RespondError(c, apperrors.BadRequest(fmt.Sprintf("invalid %s", name), err))
		return nil, false
	}
	return &id, true
}

// QueryDate parses an optional YYYY-MM-DD query parameter.
func QueryDate(c *gin.Context, name string) (*model.Date, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		RespondError(c, apperrors.BadRequest(err.Error(), err))
		return nil, false
	}
	return &d, true
}

package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/caregiver-api/internal/middleware"
	"github.com/jwalitptl/caregiver-api/internal/model"
	apperrors "github.com/jwalitptl/caregiver-api/pkg/errors"
)

type stubHandler struct{ path string }

func (h stubHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET(h.path, func(c *gin.Context) { c.Status(http.StatusOK) })
}

type stubAuthHandler struct{ stubHandler }

func (h stubAuthHandler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/auth/logout", func(c *gin.Context) { c.Status(http.StatusOK) })
}

type denyAll struct{}

func (denyAll) ValidateToken(context.Context, string) (*model.TokenClaims, error) {
	return nil, apperrors.Unauthorized(errors.New("denied"))
}

func TestSetupSeparatesPublicAndProtectedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(middleware.NewAuthMiddleware(denyAll{}), Handlers{
		Health:     stubHandler{"/health/live"},
		Auth:       stubAuthHandler{stubHandler{"/auth/login"}},
		Public:     stubHandler{"/public/patients/:token"},
		Patient:    stubHandler{"/patients"},
		Medication: stubHandler{"/medications"},
		Routine:    stubHandler{"/routines"},
		Memory:     stubHandler{"/memories"},
		Dashboard:  stubHandler{"/dashboard"},
	}, RouterConfig{CORSConfig: middleware.DefaultCORSConfig()})
	r.Setup()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/v1/health/live", http.StatusOK},
		{http.MethodGet, "/api/v1/auth/login", http.StatusOK},
		{http.MethodGet, "/api/v1/public/patients/abc", http.StatusOK},
		{http.MethodPost, "/api/v1/auth/logout", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/patients", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/medications", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/routines", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/memories", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/dashboard", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.Engine().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

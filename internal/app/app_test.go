package app

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/caregiver-api/internal/config"
	"github.com/jwalitptl/caregiver-api/internal/middleware"
	"github.com/jwalitptl/caregiver-api/internal/repository/memstore"
	"github.com/jwalitptl/caregiver-api/internal/schedule"
	"github.com/jwalitptl/caregiver-api/internal/storage"
	"github.com/jwalitptl/caregiver-api/pkg/metrics"
)

// Wednesday 6 March 2024, 10:00.
var testNow = time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC)

type testAPI struct {
	engine   *gin.Engine
	store    *memstore.Store
	mediaDir string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	mediaDir := t.TempDir()
	media, err := storage.NewLocalStore(mediaDir)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.JWT = config.JWTConfig{Secret: "access-secret", RefreshSecret: "refresh-secret", ExpiryHours: 1, RefreshExpiryHours: 24}
	cfg.Media.MaxUploadBytes = 1 << 20

	r := NewRouter(cfg, Deps{
		Repos:      store.Repositories(),
		Media:      media,
		Clock:      schedule.NewClockAt(time.UTC, func() time.Time { return testNow }),
		Metrics:    metrics.New("test", prometheus.NewRegistry()),
		Gatherer:   prometheus.NewRegistry(),
		BcryptCost: bcrypt.MinCost,
	})

	return &testAPI{engine: r.Engine(), store: store, mediaDir: mediaDir}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(t, req, token)
}

func (a *testAPI) send(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if json.Valid(w.Body.Bytes()) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (a *testAPI) register(t *testing.T, email string) string {
	t.Helper()
	w, env := a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"password": "correct horse",
		"name":     "Care Giver",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tokens))
	require.NotEmpty(t, tokens.AccessToken)
	return tokens.AccessToken
}

func decode(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

type idVersion struct {
	ID          string `json:"id"`
	Version     int    `json:"version"`
	AccessToken string `json:"access_token"`
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, name := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("bytes of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealthIsPublic(t *testing.T) {
	api := newTestAPI(t)

	w, env := api.do(t, http.MethodGet, "/api/v1/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "1.0", w.Header().Get("X-API-Version"))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	api := newTestAPI(t)

	w, env := api.do(t, http.MethodGet, "/api/v1/patients", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "error", env.Status)

	w, _ = api.do(t, http.MethodGet, "/api/v1/patients", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCaregiverFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "carer@example.com")

	w, env := api.do(t, http.MethodPost, "/api/v1/patients", token, map[string]interface{}{"name": "Ada", "age": 81})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "private, no-store", w.Header().Get("Cache-Control"))
	var p idVersion
	decode(t, env, &p)

	w, env = api.do(t, http.MethodPost, "/api/v1/medications", token, map[string]interface{}{
		"patient_id":     p.ID,
		"name":           "Donepezil",
		"dosage":         "5 mg",
		"frequency_type": "daily",
		"scheduled_time": "09:00",
		"start_date":     "2024-03-01",
		"end_date":       "2024-03-31",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var med idVersion
	decode(t, env, &med)

	// the first toggle marks the dose taken, the second clears it
	var result struct {
		Taken bool `json:"taken"`
	}
	w, env = api.do(t, http.MethodPost, "/api/v1/medications/"+med.ID+"/mark-as-taken", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, env, &result)
	assert.True(t, result.Taken)

	w, env = api.do(t, http.MethodPost, "/api/v1/medications/"+med.ID+"/mark-as-taken", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, env, &result)
	assert.False(t, result.Taken)

	w, env = api.do(t, http.MethodPost, "/api/v1/medications/"+med.ID+"/mark-as-taken", token, map[string]bool{"taken": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, env, &result)
	assert.True(t, result.Taken)

	w, _ = api.do(t, http.MethodPost, "/api/v1/medications/"+med.ID+"/mark-as-taken?date=2024-04-02", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = api.do(t, http.MethodGet, "/api/v1/medications/schedule?patient_id="+p.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var doses []struct {
		PatientName string `json:"patient_name"`
		Taken       bool   `json:"taken"`
	}
	decode(t, env, &doses)
	require.Len(t, doses, 1)
	assert.Equal(t, "Ada", doses[0].PatientName)
	assert.True(t, doses[0].Taken)

	w, env = api.do(t, http.MethodGet, "/api/v1/dashboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var dash struct {
		TotalPatients int `json:"total_patients"`
		DueToday      int `json:"due_today"`
		TakenToday    int `json:"taken_today"`
	}
	decode(t, env, &dash)
	assert.Equal(t, 1, dash.TotalPatients)
	assert.Equal(t, 1, dash.DueToday)
	assert.Equal(t, 1, dash.TakenToday)

	w, _ = api.do(t, http.MethodGet, "/api/v1/public/patients/"+p.AccessToken, "", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestValidationErrorsUseJSONNames(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "names@example.com")

	w, env := api.do(t, http.MethodPost, "/api/v1/patients", token, map[string]interface{}{"age": 200})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Message, "name")

	w, env = api.do(t, http.MethodPost, "/api/v1/medications", token, map[string]interface{}{
		"patient_id":     "6f1c1e0e-8d9b-4a43-9a57-7d1c7c4f0b11",
		"name":           "X",
		"dosage":         "1",
		"frequency_type": "Monthly",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Message, "frequency_type")
}

func TestMemoryUpload(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "memories@example.com")

	_, env := api.do(t, http.MethodPost, "/api/v1/patients", token, map[string]interface{}{"name": "Ada", "age": 81})
	var p idVersion
	decode(t, env, &p)

	body, contentType := multipartBody(t,
		map[string]string{"patient_id": p.ID, "caption": "Beach"},
		map[string]string{"image": "beach.bmp"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/memories", body)
	req.Header.Set("Content-Type", contentType)
	w, _ := api.send(t, req, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	entries, err := os.ReadDir(api.mediaDir + "/images")
	require.NoError(t, err)
	assert.Empty(t, entries)

	body, contentType = multipartBody(t,
		map[string]string{"patient_id": p.ID, "caption": "Beach"},
		map[string]string{"image": "beach.png"},
	)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/memories", body)
	req.Header.Set("Content-Type", contentType)
	w, env = api.send(t, req, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var record idVersion
	decode(t, env, &record)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/memories/"+record.ID+"/image", nil)
	w, _ = api.send(t, req, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "bytes of beach.png", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/v1/memories/"+record.ID+"/audio", nil)
	w, _ = api.send(t, req, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOtherCaregiversDataIsForbidden(t *testing.T) {
	api := newTestAPI(t)
	owner := api.register(t, "owner@example.com")
	other := api.register(t, "other@example.com")

	_, env := api.do(t, http.MethodPost, "/api/v1/patients", owner, map[string]interface{}{"name": "Ada", "age": 81})
	var p idVersion
	decode(t, env, &p)

	w, _ := api.do(t, http.MethodGet, "/api/v1/patients/"+p.ID, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = api.do(t, http.MethodGet, "/api/v1/medications?patient_id="+p.ID, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = api.do(t, http.MethodPost, "/api/v1/routines", other, map[string]interface{}{
		"patient_id":    p.ID,
		"activity_name": "Walk",
		"scheduled_at":  testNow.Add(time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = api.do(t, http.MethodGet, "/api/v1/patients", other, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", string(env.Data))

	w, _ = api.do(t, http.MethodGet, "/api/v1/patients/6f1c1e0e-8d9b-4a43-9a57-7d1c7c4f0b11", owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "logout@example.com")

	w, _ := api.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = api.do(t, http.MethodGet, "/api/v1/patients", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

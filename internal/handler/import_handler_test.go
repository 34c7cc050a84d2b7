package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/atz-edu/enroll-api/internal/service"
	"github.com/atz-edu/enroll-api/pkg/config"
)

func buildImportRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	staging := service.NewStagingService(time.Hour, nil)
	imports := service.NewImportService(nil, nil, nil, nil, staging, nil, nil, config.ImportConfig{}, nil, nil)
	h := NewImportHandler(imports)

	router := gin.New()
	router.POST("/imports", h.Upload)
	router.GET("/imports/:id", h.Session)
	router.PATCH("/imports/:id/rows/:index", h.EditRow)
	return router
}

func TestImportUploadRequiresFile(t *testing.T) {
	router := buildImportRouter(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.Close())

	req, _ := http.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "missing file upload")
}

func TestImportSessionNotFound(t *testing.T) {
	router := buildImportRouter(t)

	req, _ := http.NewRequest(http.MethodGet, "/imports/no-such-session", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestImportEditRowRejectsNonIntegerIndex(t *testing.T) {
	router := buildImportRouter(t)

	req, _ := http.NewRequest(http.MethodPatch, "/imports/abc/rows/first", strings.NewReader(`{"field":"email","value":"x@y.com"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "row index must be an integer")
}

func TestImportEditRowRequiresField(t *testing.T) {
	router := buildImportRouter(t)

	req, _ := http.NewRequest(http.MethodPatch, "/imports/abc/rows/0", strings.NewReader(`{"value":"x@y.com"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

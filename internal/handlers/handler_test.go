package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/senyabanana/hospital-service/internal/middleware"
	"github.com/senyabanana/hospital-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.Response {
	t.Helper()
	var resp models.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWriteServiceError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	req := httptest.NewRequest(http.MethodGet, "/api/tenders", nil)

	rec := httptest.NewRecorder()
	writeServiceError(rec, req, logger, models.NewErrorResponse(http.StatusConflict, "tender is closed"), "failed")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "tender is closed", decodeResponse(t, rec).Message)

	rec = httptest.NewRecorder()
	writeServiceError(rec, req, logger, errors.New("connection refused"), "failed to get tenders")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "failed to get tenders", resp.Message)
	assert.NotContains(t, rec.Body.String(), "connection refused")

	errorLogs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errorLogs, 1)
	assert.Equal(t, "connection refused", errorLogs[0].ContextMap()["error"])
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Title string `json:"title"`
	}

	tests := []struct {
		name    string
		body    string
		strict  bool
		wantErr string
	}{
		{name: "valid", body: `{"title":"x"}`, strict: true},
		{name: "unknown field lenient", body: `{"title":"x","extra":1}`},
		{name: "unknown field strict", body: `{"title":"x","extra":1}`, strict: true, wantErr: "unknown field"},
		{name: "empty", body: ``, wantErr: "request body is empty"},
		{name: "broken", body: `{"title":`, wantErr: "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var v payload
			err := decodeJSON(httptest.NewRecorder(), req, &v, tt.strict)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "x", v.Title)
				return
			}
			var errorResponse *models.ErrorResponse
			require.ErrorAs(t, err, &errorResponse)
			assert.Equal(t, http.StatusBadRequest, errorResponse.StatusCode)
			assert.Contains(t, errorResponse.Message, tt.wantErr)
		})
	}
}

func TestCurrentUserAndPagination(t *testing.T) {
	rec := httptest.NewRecorder()
	_, ok := currentUser(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	user := models.User{ID: "u-1", Role: models.StaffRole}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	got, ok := currentUser(httptest.NewRecorder(), req)
	require.True(t, ok)
	assert.Equal(t, user, got)

	limit, offset, ok := pagination(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/?offset=10", nil))
	require.True(t, ok)
	assert.Equal(t, 5, limit)
	assert.Equal(t, 10, offset)

	rec = httptest.NewRecorder()
	_, _, ok = pagination(rec, httptest.NewRequest(http.MethodGet, "/?limit=0", nil))
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPingHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	PingHandler(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

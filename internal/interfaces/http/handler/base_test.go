package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/pharmaerp/receiving/internal/interfaces/http/dto"
	"github.com/pharmaerp/receiving/internal/interfaces/http/middleware"
	"github.com/pharmaerp/receiving/internal/interfaces/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		validate.Configure(v)
	}
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func newTestContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.RequestIDKey, "req-1")
	return c, w
}

func TestBaseHandler_HandleError(t *testing.T) {
	h := &BaseHandler{}

	tests := []struct {
		name     string
		err      error
		status   int
		code     string
		hasError bool
	}{
		{"validation", shared.NewValidationError("bad %s", "input"), http.StatusBadRequest, shared.CodeValidation, false},
		{"not found", shared.NewNotFoundError("goods receipt", "x"), http.StatusNotFound, shared.CodeNotFound, false},
		{"conflict", shared.NewConflictError("stale"), http.StatusConflict, shared.CodeConflict, false},
		{"business rule", shared.NewDomainError(shared.CodeBusinessRuleViolation, "over ordered"), http.StatusUnprocessableEntity, shared.CodeBusinessRuleViolation, false},
		{"upstream", shared.NewDomainError(shared.CodeUpstreamUnavailable, "po service down"), http.StatusServiceUnavailable, shared.CodeUpstreamUnavailable, true},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext(http.MethodGet, "/", "")
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
			assert.Equal(t, tt.code, c.GetString(middleware.ErrorCodeKey))
			assert.Equal(t, tt.hasError, len(c.Errors) > 0)
		})
	}
}

func TestBaseHandler_HandleError_HidesInternalMessage(t *testing.T) {
	c, w := newTestContext(http.MethodGet, "/", "")
	(&BaseHandler{}).HandleError(c, errors.New("pq: connection refused"))

	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestBaseHandler_HandleError_Details(t *testing.T) {
	c, w := newTestContext(http.MethodGet, "/", "")
	err := shared.NewConflictError("goods receipt was modified concurrently").
		WithDetail("reason", "CONCURRENT_MODIFICATION")
	(&BaseHandler{}).HandleError(c, err)

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONCURRENT_MODIFICATION", resp.Error.Details["reason"])
}

type bindTarget struct {
	Name  string `json:"name" binding:"required"`
	Count int    `json:"count" form:"count" binding:"omitempty,min=1"`
}

func TestBaseHandler_BindJSON(t *testing.T) {
	h := &BaseHandler{}

	t.Run("valid body", func(t *testing.T) {
		c, _ := newTestContext(http.MethodPost, "/", `{"name":"x","count":2}`)
		var dst bindTarget
		assert.True(t, h.BindJSON(c, &dst))
		assert.Equal(t, "x", dst.Name)
	})

	t.Run("missing field reports the json name", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, "/", `{"count":2}`)
		var dst bindTarget
		assert.False(t, h.BindJSON(c, &dst))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, shared.CodeValidation, resp.Error.Code)
		fields, ok := resp.Error.Details["fields"].([]any)
		require.True(t, ok)
		require.Len(t, fields, 1)
		assert.Equal(t, "name", fields[0].(map[string]any)["field"])
	})

	t.Run("malformed json", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, "/", `{"name":`)
		var dst bindTarget
		assert.False(t, h.BindJSON(c, &dst))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, shared.CodeValidation, decodeResponse(t, w).Error.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		c, w := newTestContext(http.MethodPost, "/", `{"name":"`+strings.Repeat("x", 64)+`"}`)
		c.Request.Body = http.MaxBytesReader(w, c.Request.Body, 8)
		var dst bindTarget
		assert.False(t, h.BindJSON(c, &dst))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestBaseHandler_BindQuery(t *testing.T) {
	h := &BaseHandler{}

	c, w := newTestContext(http.MethodGet, "/?count=abc", "")
	var dst struct {
		Count int `form:"count" binding:"omitempty,min=1"`
	}
	assert.False(t, h.BindQuery(c, &dst))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBaseHandler_ParseID(t *testing.T) {
	h := &BaseHandler{}

	c, w := newTestContext(http.MethodGet, "/", "")
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	_, ok := h.ParseID(c, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "id", decodeResponse(t, w).Error.Details["field"])

	c, _ = newTestContext(http.MethodGet, "/", "")
	c.Params = gin.Params{{Key: "id", Value: "6f9619ff-8b86-d011-b42d-00cf4fc964ff"}}
	id, ok := h.ParseID(c, "id")
	assert.True(t, ok)
	assert.Equal(t, "6f9619ff-8b86-d011-b42d-00cf4fc964ff", id.String())
}

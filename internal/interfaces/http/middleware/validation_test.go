package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/propbill/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type methodInput struct {
	Method string `json:"method" binding:"required,allocation_method"`
	Reason string `json:"reason" binding:"omitempty,max=5"`
}

func newValidationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		var req methodInput
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(req))
	})
	return router
}

func postJSON(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	assert.NoError(t, v.Var("gla_prorata", "allocation_method"))
	assert.Error(t, v.Var("evenly", "allocation_method"))
}

func TestAllocationMethodValidation(t *testing.T) {
	router := newValidationRouter()

	t.Run("accepts known methods", func(t *testing.T) {
		for _, m := range []string{"full_absorption", "gla_prorata", "fixed", "percentage"} {
			w := postJSON(router, `{"method":"`+m+`"}`)
			assert.Equal(t, http.StatusOK, w.Code, m)
		}
	})

	t.Run("rejects unknown method with JSON field names", func(t *testing.T) {
		w := postJSON(router, `{"method":"evenly","reason":"far too long"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 2)
		assert.Equal(t, "method", resp.Error.Details[0].Field)
		assert.Contains(t, resp.Error.Details[0].Message, "gla_prorata")
		assert.Equal(t, "reason", resp.Error.Details[1].Field)
		assert.Equal(t, "Must be at most 5 characters", resp.Error.Details[1].Message)
	})

	t.Run("malformed JSON is not a field error", func(t *testing.T) {
		w := postJSON(router, `{"method":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeInvalidJSON)
	})
}

func TestHandleValidationErrorCarriesRequestID(t *testing.T) {
	SetupValidator()
	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req methodInput
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
	})

	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"requestId":"req-42"`)
	assert.Contains(t, w.Body.String(), "This field is required")
}

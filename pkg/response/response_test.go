package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name    string
		write   func(c *gin.Context)
		status  int
		success bool
	}{
		{"ok", func(c *gin.Context) { OK(c, gin.H{"a": 1}) }, http.StatusOK, true},
		{"created", func(c *gin.Context) { Created(c, nil) }, http.StatusCreated, true},
		{"bad request", func(c *gin.Context) { BadRequest(c, "nope") }, http.StatusBadRequest, false},
		{"conflict", func(c *gin.Context) { Conflict(c, "nope") }, http.StatusConflict, false},
		{"abort", func(c *gin.Context) { Abort(c, http.StatusUnauthorized, "nope") }, http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.write(c)

			assert.Equal(t, tt.status, w.Code)
			var body Body
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.success, body.Success)
			if !tt.success {
				assert.Equal(t, "nope", body.Error)
			}
		})
	}
}

func TestAbortStopsChain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reached := false
	r := gin.New()
	r.GET("/", func(c *gin.Context) { Abort(c, http.StatusForbidden, "stop") }, func(c *gin.Context) { reached = true })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, reached)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"tunnelout/internal/api/constants"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func authTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	m := NewAuthMiddleware("secret-key", "admin")
	r.GET("/protected", m.RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, c.MustGet(constants.ContextKeyUserID).(string))
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	router := authTestRouter()

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "valid api key header",
			headers:    map[string]string{"X-Api-Key": "secret-key"},
			wantStatus: http.StatusOK,
			wantBody:   "admin",
		},
		{
			name:       "valid bearer token",
			headers:    map[string]string{"Authorization": "Bearer secret-key"},
			wantStatus: http.StatusOK,
			wantBody:   "admin",
		},
		{
			name:       "wrong key",
			headers:    map[string]string{"X-Api-Key": "wrong"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing credentials",
			headers:    nil,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed authorization header",
			headers:    map[string]string{"Authorization": "Basic secret-key"},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

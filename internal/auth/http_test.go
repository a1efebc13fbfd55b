package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"certificatePortal/internal/testutil"
	"certificatePortal/models"
)

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gw, _ := newTestGateway(t)
	r := gin.New()
	r.GET("/me", RequireAuth(gw), func(c *gin.Context) {
		claims, _ := FromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"username": claims.Username})
	})
	r.GET("/admin", RequireAuth(gw), RequireRole(gw, models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func doGet(r http.Handler, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r := newAuthRouter(t)

	w := doGet(r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"message":"Access denied. No token provided."}`, w.Body.String())

	w = doGet(r, "/me", "Bearer garbage")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"message":"Invalid token"}`, w.Body.String())

	tok := testutil.GenerateJWTHS256(t, testSecret, "u1", "alice", "participant", time.Hour)
	w = doGet(r, "/me", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"alice"}`, w.Body.String())
}

func TestRequireRole_Admin(t *testing.T) {
	r := newAuthRouter(t)

	participant := testutil.GenerateJWTHS256(t, testSecret, "u1", "alice", "participant", time.Hour)
	w := doGet(r, "/admin", "Bearer "+participant)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"message":"Access denied. Admin only."}`, w.Body.String())

	admin := testutil.GenerateJWTHS256(t, testSecret, "u2", "root", "admin", time.Hour)
	w = doGet(r, "/admin", "Bearer "+admin)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

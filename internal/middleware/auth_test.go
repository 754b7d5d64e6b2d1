package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type tokenValidatorStub struct {
	claims *models.JWTClaims
}

func (s tokenValidatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func newProtectedRouter(role models.UserRole, allowed ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	validator := tokenValidatorStub{claims: &models.JWTClaims{UserID: "u-1", Role: role}}
	r.POST("/accounts/:accountId/payments", JWT(validator), RequireRoles(allowed...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	r := newProtectedRouter(models.RoleBursar, models.RoleBursar)

	for _, header := range []string{"", "Token good", "Bearer bad"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/accounts/acc-1/payments", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
}

func TestRequireRoles(t *testing.T) {
	cases := []struct {
		role   models.UserRole
		status int
	}{
		{models.RoleBursar, http.StatusNoContent},
		{models.RoleSuperAdmin, http.StatusNoContent},
		{models.RoleSystem, http.StatusForbidden},
	}
	for _, tc := range cases {
		r := newProtectedRouter(tc.role, models.RoleAdmin, models.RoleBursar)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/accounts/acc-1/payments", nil)
		req.Header.Set("Authorization", "Bearer good")
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, string(tc.role))
	}
}

type observerStub struct {
	paths    []string
	statuses []int
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.paths = append(o.paths, path)
	o.statuses = append(o.statuses, status)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/accounts/:accountId/summary", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/accounts/acc-1/summary", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, []string{"/accounts/:accountId/summary", "unmatched"}, observer.paths)
	assert.Equal(t, []int{http.StatusOK, http.StatusNotFound}, observer.statuses)
}

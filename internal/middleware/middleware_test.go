package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/service"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/workflow"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/logger"
)

type authenticatorMock struct {
	principal *models.Principal
	err       error
	token     string
}

func (m *authenticatorMock) Authenticate(token string) (*models.Principal, error) {
	m.token = token
	return m.principal, m.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handlers...)
	router.GET("/reports/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": c.GetString(logger.ActorKey)})
	})
	return router
}

func TestJWTStoresPrincipal(t *testing.T) {
	auth := &authenticatorMock{principal: &models.Principal{Username: "diretor1", Role: models.RoleDirector, UnitScope: "200237"}}
	router := newRouter(JWT(auth))

	req := httptest.NewRequest(http.MethodGet, "/reports/1", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc.def.ghi", auth.token)
	assert.Contains(t, rec.Body.String(), "diretor1")
}

func TestJWTRejectsMissingOrInvalidToken(t *testing.T) {
	auth := &authenticatorMock{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}
	router := newRouter(JWT(auth))

	for _, header := range []string{"", "Basic xyz", "Bearer broken"} {
		req := httptest.NewRequest(http.MethodGet, "/reports/1", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func withPrincipal(p *models.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			c.Set(ContextPrincipalKey, p)
		}
		c.Next()
	}
}

func TestRequireTiers(t *testing.T) {
	matrix := workflow.NewAuthorizationMatrix(nil)

	tests := []struct {
		name      string
		principal *models.Principal
		want      int
	}{
		{name: "district allowed", principal: &models.Principal{Username: "dre", Role: models.RoleDistrictFocalPoint}, want: http.StatusOK},
		{name: "director denied", principal: &models.Principal{Username: "dir", Role: models.RoleDirector}, want: http.StatusForbidden},
		{name: "unknown role denied", principal: &models.Principal{Username: "x", Role: "professor"}, want: http.StatusForbidden},
		{name: "anonymous", want: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newRouter(withPrincipal(tc.principal), RequireTiers(matrix, models.TierDistrict))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/1", nil))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestPrincipalRateLimit(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2, time.Minute)
	router := newRouter(withPrincipal(&models.Principal{Username: "diretor1"}), PrincipalRateLimit(limiter))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/1", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	assert.True(t, limiter.Allow("user:other"))
}

func TestInternalToken(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		sent       string
		want       int
	}{
		{name: "valid", configured: "s3cret", sent: "s3cret", want: http.StatusOK},
		{name: "wrong token", configured: "s3cret", sent: "nope", want: http.StatusUnauthorized},
		{name: "missing token", configured: "s3cret", want: http.StatusUnauthorized},
		{name: "disabled", configured: "", sent: "anything", want: http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newRouter(InternalToken(tc.configured))
			req := httptest.NewRequest(http.MethodGet, "/reports/1", nil)
			if tc.sent != "" {
				req.Header.Set(InternalTokenHeader, tc.sent)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	metrics := service.NewMetricsService()
	router := newRouter(Metrics(metrics))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/reports/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `path="/reports/:id"`)
	assert.Contains(t, body, `path="unmatched"`)
	assert.NotContains(t, body, `path="/reports/abc"`)
}

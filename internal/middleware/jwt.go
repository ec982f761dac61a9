package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/service"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/logger"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the acting principal.
const ContextPrincipalKey = "principal"

type authenticator interface {
	Authenticate(token string) (*models.Principal, error)
}

// JWT protects routes by requiring a bearer token issued by the identity service.
func JWT(auth authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		principal, err := auth.Authenticate(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextPrincipalKey, principal)
		c.Set(logger.ActorKey, principal.Username)
		c.Request = c.Request.WithContext(service.WithClient(c.Request.Context(), service.ClientInfo{
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}))
		c.Next()
	}
}

// Principal returns the principal stored by JWT, nil when absent.
func Principal(c *gin.Context) *models.Principal {
	value, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return nil
	}
	p, _ := value.(*models.Principal)
	return p
}

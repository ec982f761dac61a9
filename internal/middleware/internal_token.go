package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/logger"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/response"
)

// InternalTokenHeader carries the shared secret of service-to-service calls.
const InternalTokenHeader = "X-Internal-Service-Token"

// InternalToken guards endpoints reserved to other microservices. An empty
// configured token closes them.
func InternalToken(token string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(token))
	return func(c *gin.Context) {
		if len(expected) == 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "internal endpoints are disabled"))
			c.Abort()
			return
		}
		got := []byte(strings.TrimSpace(c.GetHeader(InternalTokenHeader)))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid internal service token"))
			c.Abort()
			return
		}
		c.Set(logger.ActorKey, "internal-service")
		c.Next()
	}
}

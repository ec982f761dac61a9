package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	appErrors "github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/errors"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/response"
)

type tierResolver interface {
	TierOf(p *models.Principal) models.Tier
}

// RequireTiers lets through principals whose role belongs to one of tiers.
// Record-level checks stay with the workflow engine.
func RequireTiers(resolver tierResolver, tiers ...models.Tier) gin.HandlerFunc {
	allowed := make(map[models.Tier]struct{}, len(tiers))
	for _, t := range tiers {
		allowed[t] = struct{}{}
	}

	return func(c *gin.Context) {
		p := Principal(c)
		if p == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		tier := resolver.TierOf(p)
		if _, ok := allowed[tier]; ok && tier != models.TierNone {
			c.Next()
			return
		}

		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "profile not allowed for this operation"))
		c.Abort()
	}
}

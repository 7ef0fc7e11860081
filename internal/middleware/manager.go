package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-manager-reports/internal/models"
	"github.com/noah-isme/school-manager-reports/internal/service"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
)

// ContextManagerKey stores the resolved *models.ManagerContext.
const ContextManagerKey = "managerContext"

// SchoolManager admits only users who manage a school and records which one.
// Everything downstream is scoped to that tenant.
func SchoolManager(access *service.AccessService, landingPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !exists || !ok {
			deny(c, landingPath, appErrors.ErrUnauthorized)
			return
		}

		manager, err := access.ResolveManager(c.Request.Context(), claims.UserID)
		if err != nil {
			deny(c, landingPath, err)
			return
		}

		c.Set(ContextManagerKey, manager)
		c.Next()
	}
}

// Manager returns the manager context set by SchoolManager.
func Manager(c *gin.Context) *models.ManagerContext {
	value, exists := c.Get(ContextManagerKey)
	if !exists {
		return nil
	}
	manager, _ := value.(*models.ManagerContext)
	return manager
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/service"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/response"
)

type deactivationService interface {
	DeleteDraftsForDeactivatedUser(ctx context.Context, username string) (*service.DeactivationResult, error)
}

// DeactivationHandler is called by the accounts service when a user is deactivated.
type DeactivationHandler struct {
	service deactivationService
}

// NewDeactivationHandler builds a new handler.
func NewDeactivationHandler(svc deactivationService) *DeactivationHandler {
	return &DeactivationHandler{service: svc}
}

// DeleteDrafts godoc
// @Summary Delete the drafts of a deactivated user
// @Tags Internal
// @Produce json
// @Param X-Internal-Service-Token header string true "Service token"
// @Param username path string true "Username"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /internal/users/{username}/drafts [delete]
func (h *DeactivationHandler) DeleteDrafts(c *gin.Context) {
	ctx := service.WithClient(c.Request.Context(), service.ClientInfo{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()})
	result, err := h.service.DeleteDraftsForDeactivatedUser(ctx, c.Param("username"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

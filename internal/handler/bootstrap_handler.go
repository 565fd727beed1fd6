package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

type adminBootstrapper interface {
	BootstrapAdmin(ctx context.Context, req models.BootstrapAdminRequest) (*models.User, error)
}

// BootstrapHandler exposes the one-time admin bootstrap.
type BootstrapHandler struct {
	service adminBootstrapper
}

// NewBootstrapHandler creates a new handler.
func NewBootstrapHandler(svc adminBootstrapper) *BootstrapHandler {
	return &BootstrapHandler{service: svc}
}

// BootstrapAdmin godoc
// @Summary Create the first admin
// @Description Creates the initial administrator; refused once any admin exists
// @Tags Bootstrap
// @Accept json
// @Produce json
// @Param payload body models.BootstrapAdminRequest true "Admin credentials"
// @Success 200 {object} response.EdgeSuccess
// @Failure 400 {object} response.EdgeError
// @Failure 500 {object} response.EdgeError
// @Router /bootstrap-admin [post]
func (h *BootstrapHandler) BootstrapAdmin(c *gin.Context) {
	var req models.BootstrapAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.EdgeFail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "email and password are required"))
		return
	}

	if _, err := h.service.BootstrapAdmin(c.Request.Context(), req); err != nil {
		response.EdgeFail(c, err)
		return
	}

	response.EdgeOK(c, http.StatusOK, "admin user created successfully")
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"parkwise/internal/core/appctx"
	"parkwise/internal/core/apperror"
	"parkwise/internal/domain/auth"
	"parkwise/internal/infrastructure/http/v1/dto"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	token, expiresAt, err := h.service.Login(ctx, req.OperatorID, req.Password)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		TokenType:   "Bearer",
	})
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	op := appctx.GetOperator(c.Request.Context())
	if op == nil {
		h.Error(c, apperror.NewUnauthorized("not authenticated"))
		return
	}

	h.OK(c, dto.MeResponse{
		OperatorID: op.OperatorID,
		Name:       op.Name,
		Roles:      op.Roles,
		IsAdmin:    op.IsAdmin,
	})
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/login", h.Login)
	protected.GET("/me", h.Me)
}

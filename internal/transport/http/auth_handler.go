package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"streamshare/backend/internal/auth"
)

// AuthHandler 管理员认证接口。
type AuthHandler struct {
	auth *auth.Service
}

// NewAuthHandler 创建认证处理器。
func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// loginRequest 登录请求体。
type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// login 管理员登录
// POST /v1/auth/login
func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrAdminInactive) {
			Unauthorized(c, GetErrorMessage(err))
			return
		}
		InternalError(c, MsgInternalError)
		return
	}
	SuccessWithMsg(c, "登录成功", result)
}

// refreshRequest 刷新令牌请求体。
type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// refresh 刷新访问令牌
// POST /v1/auth/refresh
func (h *AuthHandler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	accessToken, err := h.auth.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		Unauthorized(c, MsgTokenInvalid)
		return
	}
	Success(c, gin.H{"accessToken": accessToken, "tokenType": "Bearer"})
}

// me 当前管理员信息
// GET /v1/auth/me
func (h *AuthHandler) me(c *gin.Context) {
	adminID, _ := c.Get("adminID")
	username, _ := c.Get("adminUsername")
	Success(c, gin.H{"id": adminID, "username": username})
}

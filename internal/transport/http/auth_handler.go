package httptransport

import (
	"github.com/gin-gonic/gin"

	jwtpkg "lettervault/internal/auth/jwt"
	"lettervault/internal/domain"
	"lettervault/internal/storage"
)

// AuthHandler 令牌签发与会话查询。
//
// 账号体系由外部身份服务维护；这里只做收件令牌换取 JWT 与刷新。
type AuthHandler struct {
	store      storage.Store
	jwtManager *jwtpkg.Manager
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(store storage.Store, jwtManager *jwtpkg.Manager) *AuthHandler {
	return &AuthHandler{store: store, jwtManager: jwtManager}
}

type exchangeTokenRequest struct {
	IntakeToken string `json:"intakeToken" binding:"required"`
}

// ExchangeToken 用收件令牌换取访问令牌对。
func (h *AuthHandler) ExchangeToken(c *gin.Context) {
	var req exchangeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.store.GetUserByIntakeToken(req.IntakeToken)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			// 不区分"令牌不存在"与"令牌错误"
			RespondError(c, domain.ErrUnauthorized("invalid intake token"))
			return
		}
		RespondError(c, err)
		return
	}

	pair, err := h.jwtManager.GenerateTokenPair(user.ID, user.Email, string(user.Plan))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh 用刷新令牌换取新的访问令牌。
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	accessToken, err := h.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		RespondError(c, domain.ErrUnauthorized("invalid refresh token"))
		return
	}
	Success(c, gin.H{"accessToken": accessToken})
}

// Me 返回当前会话的用户信息。
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.store.GetUserByID(currentUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{
		"id":    user.ID,
		"email": user.Email,
		"plan":  user.Plan,
	})
}

package middleware

import (
	"strings"

	"mesa/internal/models"
	"mesa/internal/services"
	"mesa/pkg/jwt"
	"mesa/pkg/response"

	"github.com/gin-gonic/gin"
)

// 上下文键
const (
	ContextUser         = "user"
	ContextUserID       = "user_id"
	ContextRestaurantID = "restaurant_id"
	ContextUsername     = "username"
	ContextClaims       = "claims"
)

// AuthMiddleware 登录与权限中间件
type AuthMiddleware struct {
	users      *services.UserService
	resolver   *services.PermissionResolver
	jwtManager *jwt.JWTManager
}

func NewAuthMiddleware(users *services.UserService, resolver *services.PermissionResolver, jwtManager *jwt.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		users:      users,
		resolver:   resolver,
		jwtManager: jwtManager,
	}
}

// RequireLogin 校验Bearer令牌并加载当前用户
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}

		claims, err := m.jwtManager.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		user, err := m.users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Unauthorized(c, "用户不存在")
			c.Abort()
			return
		}
		// 令牌签发后用户被移到其他餐厅的情况一律拒绝
		if user.RestaurantID != claims.RestaurantID {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}
		if !user.IsActive {
			response.Unauthorized(c, "用户已被禁用")
			c.Abort()
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextUserID, user.ID)
		c.Set(ContextRestaurantID, user.RestaurantID)
		c.Set(ContextUsername, user.Username)
		c.Set(ContextClaims, claims)

		c.Next()
	}
}

// RequirePermission 要求当前用户拥有指定权限，不满足时返回统一的权限不足
func (m *AuthMiddleware) RequirePermission(slug string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint(ContextUserID)
		if userID == 0 {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if !m.resolver.HasPermission(c.Request.Context(), userID, slug) {
			response.Forbidden(c, "权限不足")
			c.Abort()
			return
		}

		c.Next()
	}
}

// CombineMiddleware 组合中间件（登录 + 权限）
func (m *AuthMiddleware) CombineMiddleware(slug string) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.RequireLogin(),
		m.RequirePermission(slug),
	}
}

// GetActor 当前登录用户
func GetActor(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:       c.GetUint(ContextUserID),
		RestaurantID: c.GetUint(ContextRestaurantID),
	}
}

// GetUser 当前登录用户完整信息
func GetUser(c *gin.Context) *models.User {
	if v, ok := c.Get(ContextUser); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

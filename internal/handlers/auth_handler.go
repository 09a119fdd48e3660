package handlers

import (
	"strings"
	"time"

	"mesa/internal/middleware"
	"mesa/internal/services"
	"mesa/pkg/jwt"
	"mesa/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	users       *services.UserService
	restaurants *services.RestaurantService
	resolver    *services.PermissionResolver
	jwtManager  *jwt.JWTManager
}

func NewAuthHandler(users *services.UserService, restaurants *services.RestaurantService, resolver *services.PermissionResolver, jwtManager *jwt.JWTManager) *AuthHandler {
	return &AuthHandler{
		users:       users,
		restaurants: restaurants,
		resolver:    resolver,
		jwtManager:  jwtManager,
	}
}

type SignupRequest struct {
	RestaurantName string `json:"restaurant_name" binding:"required"`
	RestaurantCode string `json:"restaurant_code" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	OwnerName      string `json:"owner_name" binding:"required"`
	Username       string `json:"username" binding:"required"`
	Password       string `json:"password" binding:"required"`
	Plan           string `json:"plan"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type LoginResponse struct {
	Token     string   `json:"token"`
	ExpiresAt int64    `json:"expires_at"`
	User      UserInfo `json:"user"`
}

type UserInfo struct {
	ID           uint     `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	RestaurantID uint     `json:"restaurant_id"`
	Permissions  []string `json:"permissions"`
}

// Signup 注册餐厅并创建所有者账号，返回登录令牌
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.restaurants.Signup(c.Request.Context(), services.SignupInput{
		RestaurantName:  req.RestaurantName,
		RestaurantCode:  req.RestaurantCode,
		RestaurantEmail: req.Email,
		OwnerName:       req.OwnerName,
		Username:        req.Username,
		Password:        req.Password,
		PlanSlug:        req.Plan,
	})
	if err != nil {
		response.FromError(c, err, "注册失败")
		return
	}

	token, err := h.jwtManager.GenerateToken(result.Owner.ID, result.Restaurant.ID, result.Owner.Username)
	if err != nil {
		response.ServerError(c, "生成Token失败")
		return
	}

	response.SuccessWithMessage(c, "注册成功", gin.H{
		"token":        token,
		"expires_at":   time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
		"restaurant":   result.Restaurant,
		"owner":        result.Owner,
		"subscription": result.Subscription,
	})
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.FromError(c, err, "登录失败")
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.RestaurantID, user.Username)
	if err != nil {
		response.ServerError(c, "生成Token失败")
		return
	}

	response.Success(c, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
		User: UserInfo{
			ID:           user.ID,
			Username:     user.Username,
			Email:        user.Email,
			Name:         user.Name,
			RestaurantID: user.RestaurantID,
			Permissions:  h.resolver.Resolve(c.Request.Context(), user.ID).Slice(),
		},
	})
}

// RefreshToken 刷新令牌
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		response.Unauthorized(c, "认证头格式错误")
		return
	}

	token, err := h.jwtManager.RefreshToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		response.Unauthorized(c, "Token无法刷新，请重新登录")
		return
	}

	response.Success(c, gin.H{
		"token":      token,
		"expires_at": time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
	})
}

// Me 当前用户信息及有效权限
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	response.Success(c, UserInfo{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Name:         user.Name,
		RestaurantID: user.RestaurantID,
		Permissions:  h.resolver.Resolve(c.Request.Context(), user.ID).Slice(),
	})
}

// ChangePassword 修改自己的密码
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	actor := middleware.GetActor(c)
	if err := h.users.ChangePassword(c.Request.Context(), actor.UserID, req.OldPassword, req.NewPassword); err != nil {
		response.FromError(c, err, "修改密码失败")
		return
	}
	response.SuccessWithMessage(c, "密码修改成功", nil)
}

package handlers

import (
	"time"

	"mesa/internal/middleware"
	"mesa/internal/services"
	"mesa/pkg/pagination"
	"mesa/pkg/response"

	"github.com/gin-gonic/gin"
)

type CreateUserRequest struct {
	Username    string   `json:"username" binding:"required"`
	Email       string   `json:"email" binding:"required"`
	Password    string   `json:"password" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	Permissions []string `json:"permissions"`
	RoleIDs     []uint   `json:"role_ids"`
}

type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

type SetPermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"required"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

type AssignRoleRequest struct {
	RoleID    uint       `json:"role_id" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type SyncRolesRequest struct {
	RoleIDs []uint `json:"role_ids" binding:"required"`
}

type UserHandler struct {
	users       *services.UserService
	assignments *services.AssignmentService
}

func NewUserHandler(users *services.UserService, assignments *services.AssignmentService) *UserHandler {
	return &UserHandler{users: users, assignments: assignments}
}

// ========== 基础CRUD方法 ==========

// Create 创建用户，可同时分配角色
func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	actor := middleware.GetActor(c)
	user, err := h.users.Create(c.Request.Context(), actor, services.CreateUserInput{
		Username:          req.Username,
		Email:             req.Email,
		Password:          req.Password,
		Name:              req.Name,
		CustomPermissions: req.Permissions,
	})
	if err != nil {
		response.FromError(c, err, "创建用户失败")
		return
	}

	if len(req.RoleIDs) > 0 {
		if err := h.assignments.Sync(c.Request.Context(), actor, user.ID, req.RoleIDs); err != nil {
			response.FromError(c, err, "用户已创建，但分配角色失败")
			return
		}
	}

	response.Success(c, user)
}

// GetByID 获取用户
func (h *UserHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	user, err := h.users.Get(c.Request.Context(), middleware.GetActor(c).RestaurantID, id)
	if err != nil {
		response.FromError(c, err, "查询失败")
		return
	}
	response.Success(c, user)
}

// List 本餐厅用户列表，支持关键字搜索
func (h *UserHandler) List(c *gin.Context) {
	params := pagination.ParsePageParams(c)
	users, total, err := h.users.List(c.Request.Context(), middleware.GetActor(c).RestaurantID, c.Query("keyword"), params)
	if err != nil {
		response.FromError(c, err, "查询失败")
		return
	}
	response.SuccessWithPage(c, users, pagination.NewPageInfo(params, total))
}

func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.Update(c.Request.Context(), middleware.GetActor(c), id, services.UpdateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		IsActive: req.IsActive,
	})
	if err != nil {
		response.FromError(c, err, "更新失败")
		return
	}
	response.Success(c, user)
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), middleware.GetActor(c), id); err != nil {
		response.FromError(c, err, "删除失败")
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

// ========== 权限与密码 ==========

// SetPermissions 设置自定义权限
func (h *UserHandler) SetPermissions(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req SetPermissionsRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.SetCustomPermissions(c.Request.Context(), middleware.GetActor(c), id, req.Permissions)
	if err != nil {
		response.FromError(c, err, "设置权限失败")
		return
	}
	response.Success(c, user)
}

// GetPermissions 用户的有效权限
func (h *UserHandler) GetPermissions(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	perms, err := h.users.Permissions(c.Request.Context(), middleware.GetActor(c).RestaurantID, id)
	if err != nil {
		response.FromError(c, err, "查询失败")
		return
	}
	response.Success(c, perms)
}

func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), middleware.GetActor(c), id, req.Password); err != nil {
		response.FromError(c, err, "重置密码失败")
		return
	}
	response.SuccessWithMessage(c, "密码已重置", nil)
}

// ========== 角色分配 ==========

func (h *UserHandler) GetRoles(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	assignments, err := h.assignments.ListForUser(c.Request.Context(), middleware.GetActor(c).RestaurantID, id)
	if err != nil {
		response.FromError(c, err, "查询失败")
		return
	}
	response.Success(c, assignments)
}

func (h *UserHandler) AssignRole(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req AssignRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	assignment, err := h.assignments.Assign(c.Request.Context(), middleware.GetActor(c), id, req.RoleID, req.ExpiresAt)
	if err != nil {
		response.FromError(c, err, "分配角色失败")
		return
	}
	response.Success(c, assignment)
}

func (h *UserHandler) RevokeRole(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	roleID, ok := parseID(c, "role_id")
	if !ok {
		return
	}
	if err := h.assignments.Revoke(c.Request.Context(), middleware.GetActor(c), id, roleID); err != nil {
		response.FromError(c, err, "撤销角色失败")
		return
	}
	response.SuccessWithMessage(c, "角色已撤销", nil)
}

// SyncRoles 将用户角色调整为指定列表
func (h *UserHandler) SyncRoles(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req SyncRolesRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.assignments.Sync(c.Request.Context(), middleware.GetActor(c), id, req.RoleIDs); err != nil {
		response.FromError(c, err, "同步角色失败")
		return
	}
	response.SuccessWithMessage(c, "角色已更新", nil)
}

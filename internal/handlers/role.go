package handlers

import (
	"mesa/internal/middleware"
	"mesa/internal/services"
	"mesa/pkg/pagination"
	"mesa/pkg/response"

	"github.com/gin-gonic/gin"
)

type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description" binding:"max=255"`
	Level       int      `json:"level" binding:"required,min=1,max=100"`
	Permissions []string `json:"permissions"`
}

type UpdateRoleRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Level       *int     `json:"level" binding:"omitempty,min=1,max=100"`
	Permissions []string `json:"permissions"`
	IsActive    *bool    `json:"is_active"`
}

type RoleHandler struct {
	service *services.RoleService
}

func NewRoleHandler(service *services.RoleService) *RoleHandler {
	return &RoleHandler{service: service}
}

// Create 创建餐厅自定义角色
func (h *RoleHandler) Create(c *gin.Context) {
	var req CreateRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	role, err := h.service.Create(c.Request.Context(), middleware.GetActor(c).RestaurantID, services.CreateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		Level:       req.Level,
		Permissions: req.Permissions,
	})
	if err != nil {
		response.FromError(c, err, "创建失败")
		return
	}
	response.Success(c, role)
}

// GetByID 获取角色
func (h *RoleHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	role, err := h.service.Get(c.Request.Context(), middleware.GetActor(c).RestaurantID, id)
	if err != nil {
		response.FromError(c, err, "查询失败")
		return
	}
	response.Success(c, role)
}

// List 系统角色与本餐厅角色，active=true 时只返回启用的
func (h *RoleHandler) List(c *gin.Context) {
	params := pagination.ParsePageParams(c)
	activeOnly := c.Query("active") == "true"

	roles, total, err := h.service.List(c.Request.Context(), middleware.GetActor(c).RestaurantID, activeOnly, params)
	if err != nil {
		response.FromError(c, err, "查询失败")
		return
	}
	response.SuccessWithPage(c, roles, pagination.NewPageInfo(params, total))
}

func (h *RoleHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	role, err := h.service.Update(c.Request.Context(), middleware.GetActor(c).RestaurantID, id, services.UpdateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		Level:       req.Level,
		Permissions: req.Permissions,
		IsActive:    req.IsActive,
	})
	if err != nil {
		response.FromError(c, err, "更新失败")
		return
	}
	response.Success(c, role)
}

func (h *RoleHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), middleware.GetActor(c).RestaurantID, id); err != nil {
		response.FromError(c, err, "删除失败")
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

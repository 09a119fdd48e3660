package handlers

import (
	"mesa/internal/middleware"
	"mesa/internal/services"
	"mesa/pkg/pagination"
	"mesa/pkg/response"

	"github.com/gin-gonic/gin"
)

type CreatePermissionRequest struct {
	Module      string `json:"module" binding:"required"`
	Action      string `json:"action" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"max=255"`
}

type UpdatePermissionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

type PermissionHandler struct {
	service *services.PermissionService
}

func NewPermissionHandler(service *services.PermissionService) *PermissionHandler {
	return &PermissionHandler{service: service}
}

// List 可见权限列表，可按模块筛选
func (h *PermissionHandler) List(c *gin.Context) {
	params := pagination.ParsePageParams(c)
	perms, total, err := h.service.List(c.Request.Context(), middleware.GetActor(c).RestaurantID, c.Query("module"), params)
	if err != nil {
		response.FromError(c, err, "查询失败")
		return
	}
	response.SuccessWithPage(c, perms, pagination.NewPageInfo(params, total))
}

// Modules 权限模块列表
func (h *PermissionHandler) Modules(c *gin.Context) {
	modules, err := h.service.Modules(c.Request.Context(), middleware.GetActor(c).RestaurantID)
	if err != nil {
		response.FromError(c, err, "查询失败")
		return
	}
	response.Success(c, modules)
}

func (h *PermissionHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	perm, err := h.service.Get(c.Request.Context(), middleware.GetActor(c).RestaurantID, id)
	if err != nil {
		response.FromError(c, err, "查询失败")
		return
	}
	response.Success(c, perm)
}

func (h *PermissionHandler) Create(c *gin.Context) {
	var req CreatePermissionRequest
	if !bindJSON(c, &req) {
		return
	}
	perm, err := h.service.Create(c.Request.Context(), middleware.GetActor(c).RestaurantID, services.CreatePermissionInput{
		Module:      req.Module,
		Action:      req.Action,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		response.FromError(c, err, "创建失败")
		return
	}
	response.Success(c, perm)
}

func (h *PermissionHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdatePermissionRequest
	if !bindJSON(c, &req) {
		return
	}
	perm, err := h.service.Update(c.Request.Context(), middleware.GetActor(c).RestaurantID, id, services.UpdatePermissionInput{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		response.FromError(c, err, "更新失败")
		return
	}
	response.Success(c, perm)
}

func (h *PermissionHandler) Delete(c *gin.Context) {
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

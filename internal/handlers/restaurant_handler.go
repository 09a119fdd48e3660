package handlers

import (
	"mesa/internal/middleware"
	"mesa/internal/services"
	"mesa/pkg/response"

	"github.com/gin-gonic/gin"
)

type UpdateRestaurantRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email" binding:"omitempty,email"`
}

type RestaurantHandler struct {
	service *services.RestaurantService
}

func NewRestaurantHandler(service *services.RestaurantService) *RestaurantHandler {
	return &RestaurantHandler{service: service}
}

// Get 当前餐厅资料
func (h *RestaurantHandler) Get(c *gin.Context) {
	restaurant, err := h.service.Get(c.Request.Context(), middleware.GetActor(c).RestaurantID)
	if err != nil {
		response.FromError(c, err, "查询失败")
		return
	}
	response.Success(c, restaurant)
}

func (h *RestaurantHandler) Update(c *gin.Context) {
	var req UpdateRestaurantRequest
	if !bindJSON(c, &req) {
		return
	}
	restaurant, err := h.service.Update(c.Request.Context(), middleware.GetActor(c).RestaurantID, req.Name, req.Email)
	if err != nil {
		response.FromError(c, err, "更新失败")
		return
	}
	response.Success(c, restaurant)
}

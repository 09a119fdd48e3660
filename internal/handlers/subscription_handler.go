package handlers

import (
	"mesa/internal/middleware"
	"mesa/internal/services"
	"mesa/pkg/response"

	"github.com/gin-gonic/gin"
)

type ChangePlanRequest struct {
	Plan string `json:"plan" binding:"required"`
}

type RecordPaymentRequest struct {
	Reference string `json:"reference" binding:"max=64"`
}

type SubscriptionHandler struct {
	service *services.SubscriptionService
}

func NewSubscriptionHandler(service *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// Plans 可订阅的套餐
func (h *SubscriptionHandler) Plans(c *gin.Context) {
	plans, err := h.service.ListPlans(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "查询失败")
		return
	}
	response.Success(c, plans)
}

// Current 本餐厅当前订阅
func (h *SubscriptionHandler) Current(c *gin.Context) {
	sub, err := h.service.GetCurrent(c.Request.Context(), middleware.GetActor(c).RestaurantID)
	if err != nil {
		response.FromError(c, err, "查询失败")
		return
	}
	response.Success(c, sub)
}

func (h *SubscriptionHandler) ChangePlan(c *gin.Context) {
	var req ChangePlanRequest
	if !bindJSON(c, &req) {
		return
	}
	sub, err := h.service.ChangePlan(c.Request.Context(), middleware.GetActor(c).RestaurantID, req.Plan)
	if err != nil {
		response.FromError(c, err, "切换套餐失败")
		return
	}
	response.Success(c, sub)
}

func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	sub, err := h.service.Cancel(c.Request.Context(), middleware.GetActor(c).RestaurantID)
	if err != nil {
		response.FromError(c, err, "取消订阅失败")
		return
	}
	response.SuccessWithMessage(c, "订阅已取消", sub)
}

// RecordPayment 登记人工收款
func (h *SubscriptionHandler) RecordPayment(c *gin.Context) {
	var req RecordPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	sub, payment, err := h.service.RecordPayment(c.Request.Context(), middleware.GetActor(c).RestaurantID, req.Reference)
	if err != nil {
		response.FromError(c, err, "登记付款失败")
		return
	}
	response.Success(c, gin.H{
		"subscription": sub,
		"payment":      payment,
	})
}

func (h *SubscriptionHandler) Payments(c *gin.Context) {
	payments, err := h.service.Payments(c.Request.Context(), middleware.GetActor(c).RestaurantID)
	if err != nil {
		response.FromError(c, err, "查询失败")
		return
	}
	response.Success(c, payments)
}

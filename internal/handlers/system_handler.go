package handlers

import (
	"context"
	"net/http"
	"time"

	"mesa/internal/services"
	"mesa/pkg/response"

	"github.com/gin-gonic/gin"
)

// HealthCheck 依赖健康检查
type HealthCheck func(ctx context.Context) error

// SystemHandler 健康检查与调度器状态
type SystemHandler struct {
	checks    map[string]HealthCheck
	scheduler *services.BillingScheduler
}

// NewSystemHandler scheduler 为空表示本进程未启动定时批处理
func NewSystemHandler(checks map[string]HealthCheck, scheduler *services.BillingScheduler) *SystemHandler {
	return &SystemHandler{checks: checks, scheduler: scheduler}
}

// Health 逐项检查依赖，任一失败时业务码为503
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusOK, response.Response{
			Code:    503,
			Success: false,
			Message: "服务依赖异常",
			Data:    status,
		})
		return
	}
	response.Success(c, status)
}

// SchedulerStatus 订阅批处理调度器状态
func (h *SystemHandler) SchedulerStatus(c *gin.Context) {
	if h.scheduler == nil {
		response.Success(c, gin.H{"enabled": false})
		return
	}
	response.Success(c, gin.H{
		"enabled":  true,
		"next_run": h.scheduler.NextRun(),
	})
}

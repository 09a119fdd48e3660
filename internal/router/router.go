package router

import (
	"mesa/internal/handlers"
	"mesa/internal/middleware"
	"mesa/internal/services"
	"mesa/pkg/config"
	"mesa/pkg/jwt"
	"mesa/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Dependencies 路由所需的服务与组件
type Dependencies struct {
	Services     *services.Container
	JWTManager   *jwt.JWTManager
	CORS         config.CORSConfig
	HealthChecks map[string]handlers.HealthCheck
	Scheduler    *services.BillingScheduler // 可为空
}

// SetupRouter 设置路由
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Metrics())
	router.Use(middleware.SetupCORS(deps.CORS))

	metrics.Register()
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	registerRoutes(router, deps)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, deps Dependencies) {
	svc := deps.Services
	auth := middleware.NewAuthMiddleware(svc.Users, svc.Resolver, deps.JWTManager)

	systemHandler := handlers.NewSystemHandler(deps.HealthChecks, deps.Scheduler)
	router.GET("/health", systemHandler.Health)

	api := router.Group("/api/v1")
	{
		api.GET("/health", systemHandler.Health)

		// 认证（注册和登录无需令牌）
		authHandler := handlers.NewAuthHandler(svc.Users, svc.Restaurants, svc.Resolver, deps.JWTManager)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", authHandler.Signup)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.RefreshToken)
			authGroup.GET("/me", auth.RequireLogin(), authHandler.Me)
			authGroup.POST("/change-password", auth.RequireLogin(), authHandler.ChangePassword)
		}

		// 以下接口都需要登录
		protected := api.Group("", auth.RequireLogin())

		restaurantHandler := handlers.NewRestaurantHandler(svc.Restaurants)
		restaurant := protected.Group("/restaurant")
		{
			restaurant.GET("", auth.RequirePermission("restaurant.view"), restaurantHandler.Get)
			restaurant.PUT("", auth.RequirePermission("restaurant.edit"), restaurantHandler.Update)
		}

		userHandler := handlers.NewUserHandler(svc.Users, svc.Assignments)
		users := protected.Group("/users")
		{
			users.GET("", auth.RequirePermission("users.view"), userHandler.List)
			users.POST("", auth.RequirePermission("users.create"), userHandler.Create)
			users.GET("/:id", auth.RequirePermission("users.view"), userHandler.GetByID)
			users.PUT("/:id", auth.RequirePermission("users.edit"), userHandler.Update)
			users.DELETE("/:id", auth.RequirePermission("users.delete"), userHandler.Delete)
			users.POST("/:id/reset-password", auth.RequirePermission("users.edit"), userHandler.ResetPassword)

			users.GET("/:id/permissions", auth.RequirePermission("users.view"), userHandler.GetPermissions)
			users.PUT("/:id/permissions", auth.RequirePermission("permissions.edit"), userHandler.SetPermissions)

			users.GET("/:id/roles", auth.RequirePermission("users.view"), userHandler.GetRoles)
			users.POST("/:id/roles", auth.RequirePermission("roles.assign"), userHandler.AssignRole)
			users.PUT("/:id/roles", auth.RequirePermission("roles.assign"), userHandler.SyncRoles)
			users.DELETE("/:id/roles/:role_id", auth.RequirePermission("roles.assign"), userHandler.RevokeRole)
		}

		roleHandler := handlers.NewRoleHandler(svc.Roles)
		roles := protected.Group("/roles")
		{
			roles.GET("", auth.RequirePermission("roles.view"), roleHandler.List)
			roles.POST("", auth.RequirePermission("roles.create"), roleHandler.Create)
			roles.GET("/:id", auth.RequirePermission("roles.view"), roleHandler.GetByID)
			roles.PUT("/:id", auth.RequirePermission("roles.edit"), roleHandler.Update)
			roles.DELETE("/:id", auth.RequirePermission("roles.delete"), roleHandler.Delete)
		}

		permissionHandler := handlers.NewPermissionHandler(svc.Permissions)
		permissions := protected.Group("/permissions")
		{
			permissions.GET("", auth.RequirePermission("permissions.view"), permissionHandler.List)
			permissions.GET("/modules", auth.RequirePermission("permissions.view"), permissionHandler.Modules)
			permissions.POST("", auth.RequirePermission("permissions.create"), permissionHandler.Create)
			permissions.GET("/:id", auth.RequirePermission("permissions.view"), permissionHandler.GetByID)
			permissions.PUT("/:id", auth.RequirePermission("permissions.edit"), permissionHandler.Update)
			permissions.DELETE("/:id", auth.RequirePermission("permissions.delete"), permissionHandler.Delete)
		}

		subscriptionHandler := handlers.NewSubscriptionHandler(svc.Subscriptions)
		api.GET("/plans", subscriptionHandler.Plans)
		subscription := protected.Group("/subscription")
		{
			subscription.GET("", auth.RequirePermission("subscriptions.view"), subscriptionHandler.Current)
			subscription.GET("/payments", auth.RequirePermission("subscriptions.view"), subscriptionHandler.Payments)
			subscription.PUT("/plan", auth.RequirePermission("subscriptions.manage"), subscriptionHandler.ChangePlan)
			subscription.POST("/cancel", auth.RequirePermission("subscriptions.manage"), subscriptionHandler.Cancel)
			subscription.POST("/payments", auth.RequirePermission("subscriptions.manage"), subscriptionHandler.RecordPayment)
		}

		protected.GET("/system/scheduler", auth.RequirePermission("subscriptions.manage"), systemHandler.SchedulerStatus)
	}
}

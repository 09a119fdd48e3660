package services

import (
	"strings"

	"mesa/internal/models"
)

// ========== 系统权限目录 ==========

var moduleLabels = map[string]string{
	models.ModuleUsers:         "用户",
	models.ModuleRoles:         "角色",
	models.ModulePermissions:   "权限",
	models.ModuleSubscriptions: "订阅",
	models.ModuleRestaurant:    "餐厅信息",
	models.ModuleMenu:          "菜单",
	models.ModuleOrders:        "订单",
	models.ModuleTables:        "餐桌",
	models.ModuleReservations:  "预订",
	models.ModuleReports:       "报表",
	models.ModuleAnalytics:     "数据分析",
	models.ModulePrivacy:       "隐私数据",
	models.ModuleNotifications: "通知",
}

var actionLabels = map[string]string{
	models.ActionView:   "查看",
	models.ActionCreate: "创建",
	models.ActionEdit:   "编辑",
	models.ActionDelete: "删除",
	models.ActionAssign: "分配",
	models.ActionManage: "管理",
	models.ActionExport: "导出",
	models.ActionCancel: "取消",
}

var crud = []string{models.ActionView, models.ActionCreate, models.ActionEdit, models.ActionDelete}

// 模块顺序决定初始化顺序
var systemPermissionCatalog = []struct {
	module  string
	actions []string
}{
	{models.ModuleUsers, crud},
	{models.ModuleRoles, append(append([]string{}, crud...), models.ActionAssign)},
	{models.ModulePermissions, crud},
	{models.ModuleSubscriptions, []string{models.ActionView, models.ActionManage}},
	{models.ModuleRestaurant, []string{models.ActionView, models.ActionEdit}},
	{models.ModuleMenu, crud},
	{models.ModuleOrders, append(append([]string{}, crud...), models.ActionCancel)},
	{models.ModuleTables, crud},
	{models.ModuleReservations, crud},
	{models.ModuleReports, []string{models.ActionView, models.ActionExport}},
	{models.ModuleAnalytics, []string{models.ActionView}},
	{models.ModulePrivacy, []string{models.ActionView, models.ActionExport, models.ActionDelete}},
	{models.ModuleNotifications, []string{models.ActionView, models.ActionManage}},
}

// SystemPermissions 系统预置权限
func SystemPermissions() []models.Permission {
	var result []models.Permission
	for _, entry := range systemPermissionCatalog {
		for _, action := range entry.actions {
			result = append(result, models.Permission{
				Slug:               models.PermissionSlug(entry.module, action),
				Name:               actionLabels[action] + moduleLabels[entry.module],
				Module:             entry.module,
				Action:             action,
				IsSystemPermission: true,
				IsActive:           true,
			})
		}
	}
	return result
}

// ========== 系统角色目录 ==========

// RoleDefinition 系统角色定义
type RoleDefinition struct {
	Slug        string
	Name        string
	Description string
	Level       int
	grants      func(slug string) bool
}

// Grants 从全部系统权限中挑出角色应有的权限
func (d RoleDefinition) Grants(all []string) models.PermissionSet {
	set := models.NewPermissionSet()
	for _, slug := range all {
		if d.grants(slug) {
			set.Add(slug)
		}
	}
	return set
}

func inModules(modules ...string) func(string) bool {
	return func(slug string) bool {
		for _, m := range modules {
			if strings.HasPrefix(slug, m+".") {
				return true
			}
		}
		return false
	}
}

func oneOf(slugs ...string) func(string) bool {
	set := models.NewPermissionSet(slugs...)
	return set.Has
}

func anyOf(preds ...func(string) bool) func(string) bool {
	return func(slug string) bool {
		for _, p := range preds {
			if p(slug) {
				return true
			}
		}
		return false
	}
}

func isViewAction(slug string) bool {
	return strings.HasSuffix(slug, "."+models.ActionView)
}

var systemRoleCatalog = []RoleDefinition{
	{
		Slug: models.RoleOwner, Name: "餐厅所有者", Level: 1,
		Description: "拥有餐厅的全部权限",
		grants:      func(string) bool { return true },
	},
	{
		Slug: models.RoleAdmin, Name: "管理员", Level: 10,
		Description: "除订阅管理外的全部权限",
		grants: func(slug string) bool {
			return slug != models.PermissionSlug(models.ModuleSubscriptions, models.ActionManage)
		},
	},
	{
		Slug: models.RoleManager, Name: "店长", Level: 20,
		Description: "负责门店日常运营",
		grants: anyOf(
			inModules(models.ModuleMenu, models.ModuleOrders, models.ModuleTables,
				models.ModuleReservations, models.ModuleReports, models.ModuleAnalytics),
			oneOf("users.view", "roles.view", "notifications.view", "restaurant.view"),
		),
	},
	{
		Slug: models.RoleCashier, Name: "收银员", Level: 40,
		Description: "处理订单结账",
		grants: oneOf("orders.view", "orders.create", "orders.edit", "orders.cancel",
			"tables.view", "menu.view", "reports.view"),
	},
	{
		Slug: models.RoleWaiter, Name: "服务员", Level: 50,
		Description: "点餐与桌台服务",
		grants: oneOf("orders.view", "orders.create", "orders.edit",
			"tables.view", "tables.edit", "reservations.view", "reservations.create", "menu.view"),
	},
	{
		Slug: models.RoleKitchen, Name: "后厨", Level: 60,
		Description: "查看并更新出餐状态",
		grants:      oneOf("orders.view", "orders.edit", "menu.view"),
	},
	{
		Slug: models.RoleViewer, Name: "只读用户", Level: 90,
		Description: "只能查看业务数据",
		grants: func(slug string) bool {
			return isViewAction(slug) && !strings.HasPrefix(slug, models.ModulePrivacy+".")
		},
	},
}

// SystemRoles 系统预置角色定义
func SystemRoles() []RoleDefinition {
	return systemRoleCatalog
}

// ========== 套餐目录 ==========

// DefaultPlans 预置套餐
func DefaultPlans() []models.Plan {
	return []models.Plan{
		{Slug: "basic", Name: "基础版", Price: 79.90, BillingCycleMonths: 1, TrialDays: 14, MaxUsers: 5, IsActive: true},
		{Slug: "pro", Name: "专业版", Price: 149.90, BillingCycleMonths: 1, TrialDays: 14, MaxUsers: 20, IsActive: true},
		{Slug: "enterprise", Name: "企业版", Price: 1499.00, BillingCycleMonths: 12, TrialDays: 30, MaxUsers: 0, IsActive: true},
	}
}

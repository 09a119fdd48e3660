package models

// Permission 权限模型，标识格式为 "模块.操作"，如 "users.create"
type Permission struct {
	BaseModel
	RestaurantID       *uint  `gorm:"uniqueIndex:idx_permission_scope_slug" json:"restaurant_id"` // 为空表示全局权限
	// restaurant_id 为空时联合唯一索引不生效，全局标识另建部分唯一索引
	Slug               string `gorm:"size:100;not null;uniqueIndex:idx_permission_scope_slug;uniqueIndex:idx_permission_global_slug,where:restaurant_id IS NULL" json:"slug"`
	Name               string `gorm:"size:100;not null" json:"name"`
	Description        string `gorm:"size:255" json:"description"`
	Module             string `gorm:"size:50;not null;index" json:"module"`
	Action             string `gorm:"size:50;not null" json:"action"`
	IsSystemPermission bool   `gorm:"not null" json:"is_system_permission"` // 系统权限不可修改和删除
	IsActive           bool   `gorm:"not null" json:"is_active"`
}

// TableName 表名
func (p *Permission) TableName() string {
	return "permissions"
}

// VisibleTo 权限对指定餐厅是否可见（全局或本餐厅）
func (p *Permission) VisibleTo(restaurantID uint) bool {
	return p.RestaurantID == nil || *p.RestaurantID == restaurantID
}

// 权限模块常量
const (
	ModuleUsers         = "users"
	ModuleRoles         = "roles"
	ModulePermissions   = "permissions"
	ModuleSubscriptions = "subscriptions"
	ModuleRestaurant    = "restaurant"
	ModuleMenu          = "menu"
	ModuleOrders        = "orders"
	ModuleTables        = "tables"
	ModuleReservations  = "reservations"
	ModuleReports       = "reports"
	ModuleAnalytics     = "analytics"
	ModulePrivacy       = "privacy"
	ModuleNotifications = "notifications"
)

// 权限操作常量
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionAssign = "assign"
	ActionManage = "manage"
	ActionExport = "export"
	ActionCancel = "cancel"
)

// PermissionSlug 拼接权限标识
func PermissionSlug(module, action string) string {
	return module + "." + action
}

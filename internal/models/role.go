package models

import (
	"gorm.io/datatypes"
)

// Role 角色模型
type Role struct {
	BaseModel
	RestaurantID *uint                       `gorm:"uniqueIndex:idx_role_scope_slug" json:"restaurant_id"` // 为空表示系统级角色
	Slug         string                      `gorm:"size:100;not null;uniqueIndex:idx_role_scope_slug;uniqueIndex:idx_role_global_slug,where:restaurant_id IS NULL" json:"slug"`
	Name         string                      `gorm:"size:100;not null" json:"name"`
	Description  string                      `gorm:"size:255" json:"description"`
	Level        int                         `gorm:"not null" json:"level"` // 1-100，数值越小权限越高
	Permissions  datatypes.JSONSlice[string] `gorm:"not null" json:"permissions"`
	IsSystemRole bool                        `gorm:"not null" json:"is_system_role"` // 系统角色不可修改和删除
	IsActive     bool                        `gorm:"not null" json:"is_active"`
}

// TableName 表名
func (r *Role) TableName() string {
	return "roles"
}

// PermissionSet 角色的权限集合
func (r *Role) PermissionSet() PermissionSet {
	return NewPermissionSet(r.Permissions...)
}

// SetPermissions 写入权限集合，持久化为有序JSON数组
func (r *Role) SetPermissions(set PermissionSet) {
	r.Permissions = datatypes.JSONSlice[string](set.Slice())
}

// VisibleTo 角色对指定餐厅是否可见（系统级或本餐厅）
func (r *Role) VisibleTo(restaurantID uint) bool {
	return r.RestaurantID == nil || *r.RestaurantID == restaurantID
}

// 角色级别范围
const (
	RoleLevelMin = 1
	RoleLevelMax = 100
)

// 系统预定义角色
const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
	RoleWaiter  = "waiter"
	RoleKitchen = "kitchen"
	RoleViewer  = "viewer"
)

package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

// User 用户模型
type User struct {
	BaseModel
	RestaurantID      uint                        `json:"restaurant_id" gorm:"not null;uniqueIndex:idx_user_restaurant_email"`
	Username          string                      `json:"username" gorm:"uniqueIndex;not null;size:50"`
	Email             string                      `json:"email" gorm:"not null;size:100;uniqueIndex:idx_user_restaurant_email"`
	PasswordHash      string                      `json:"-" gorm:"not null;size:255"`
	Name              string                      `json:"name" gorm:"not null;size:100"`
	IsActive          bool                        `json:"is_active" gorm:"not null"`
	CustomPermissions datatypes.JSONSlice[string] `json:"custom_permissions" gorm:"not null"` // 额外授予的权限（仅追加）
	LastLoginAt       *time.Time                  `json:"last_login_at"`

	Restaurant *Restaurant `gorm:"foreignKey:RestaurantID" json:"restaurant,omitempty"`
}

// UserRole 用户-角色分配
type UserRole struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;uniqueIndex:idx_user_role" json:"user_id"`
	RoleID     uint       `gorm:"not null;uniqueIndex:idx_user_role;index" json:"role_id"`
	AssignedBy uint       `gorm:"not null" json:"assigned_by"` // 谁分配的角色
	AssignedAt time.Time  `gorm:"not null" json:"assigned_at"`
	ExpiresAt  *time.Time `json:"expires_at"` // 为空表示永久
	IsActive   bool       `gorm:"not null" json:"is_active"`
	RevokedBy  *uint      `json:"revoked_by"`
	RevokedAt  *time.Time `json:"revoked_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Role *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

// TableName 表名
func (u *User) TableName() string {
	return "users"
}

// TableName 表名
func (UserRole) TableName() string {
	return "user_roles"
}

// EffectiveAt 分配在指定时间是否生效
func (ur *UserRole) EffectiveAt(now time.Time) bool {
	if !ur.IsActive {
		return false
	}
	return ur.ExpiresAt == nil || ur.ExpiresAt.After(now)
}

// CustomPermissionSet 用户的自定义权限集合
func (u *User) CustomPermissionSet() PermissionSet {
	return NewPermissionSet(u.CustomPermissions...)
}

// SetCustomPermissions 写入自定义权限集合
func (u *User) SetCustomPermissions(set PermissionSet) {
	u.CustomPermissions = datatypes.JSONSlice[string](set.Slice())
}

// SetPassword 设置密码
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

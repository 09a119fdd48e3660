package models

// Restaurant 餐厅（租户）模型，所有业务数据按 restaurant_id 隔离
type Restaurant struct {
	BaseModel
	Name     string `json:"name" gorm:"not null;size:100"`
	Code     string `json:"code" gorm:"uniqueIndex;not null;size:50"`
	Email    string `json:"email" gorm:"not null;size:100"` // 账单与提醒的收件邮箱
	IsActive bool   `json:"is_active" gorm:"not null"`
}

// TableName 表名
func (r *Restaurant) TableName() string {
	return "restaurants"
}

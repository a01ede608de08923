package model

import "time"

// 角色取值，与数据库中 profiles.role 的 CHECK 约束保持一致。
const (
	RolePatient = "patient"
	RoleAdmin   = "admin"
)

// Profile 对应于 'profiles' 表，与 users 一对一。
// 注册时由数据库触发器自动创建，默认角色为 patient。
type Profile struct {
	UserID      string    `gorm:"type:uuid;primaryKey" json:"userId"`
	Role        string    `gorm:"type:varchar(16);not null;default:patient" json:"role"`
	DisplayName string    `gorm:"type:varchar(255)" json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName 指定了 Profile 结构体对应的数据库表名。
func (Profile) TableName() string {
	return "profiles"
}

// ValidRole 判断角色取值是否合法。
func ValidRole(role string) bool {
	return role == RolePatient || role == RoleAdmin
}

package model

// Viewer 描述当前请求的身份，用于行级访问控制。
type Viewer struct {
	UserID string
	Role   string
}

// IsAdmin 判断当前身份是否为管理员。
func (v Viewer) IsAdmin() bool {
	return v.Role == RoleAdmin
}

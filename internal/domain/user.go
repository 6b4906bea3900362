package domain

import "time"

// UserPlan 用户套餐，决定导入配额。
type UserPlan string

const (
	PlanFree UserPlan = "free"
	PlanPro  UserPlan = "pro"
)

// User 系统用户的最小表示。
//
// 认证会话的签发在系统边界之外，这里只保留身份、套餐与专属收件地址令牌。
type User struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email       string    `json:"email" gorm:"type:varchar(255);uniqueIndex"`
	Plan        UserPlan  `json:"plan" gorm:"type:varchar(20);default:free"`
	IntakeToken string    `json:"intakeToken" gorm:"type:varchar(64);uniqueIndex"` // {token}@{收件域名}
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

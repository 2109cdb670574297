package model

import (
	"time"
)

const (
	RoleCommonUser = 1
	RoleAdminUser  = 10
	RoleRootUser   = 100
)

const (
	UserStatusEnabled  = 1
	UserStatusDisabled = 2
)

type User struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	Username      string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	DisplayName   string    `gorm:"size:50" json:"display_name"`
	Email         string    `gorm:"size:100;index" json:"email,omitempty"`
	Role          int       `gorm:"default:1" json:"role"`
	Status        int       `gorm:"default:1" json:"status"`
	Group         string    `gorm:"column:group;size:64;default:default" json:"group"`
	Quota         int64     `gorm:"default:0" json:"quota"`
	UsedQuota     int64     `gorm:"default:0" json:"used_quota"`
	DiscountRatio float64   `gorm:"type:decimal(6,4);default:1" json:"discount_ratio"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsAdmin 管理员及以上角色
func (u *User) IsAdmin() bool {
	return u.Role >= RoleAdminUser
}

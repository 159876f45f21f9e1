package domain

import (
	"strings"
	"time"
)

// SharePage 表示一个对外分享页。
//
// 分享页是取码接口的访问凭证：客户端凭分享码（加可选访问密码）
// 请求对应账号的验证码，自身不需要任何邮箱权限。
type SharePage struct {
	ID              string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code            string     `json:"code" gorm:"type:varchar(64);uniqueIndex;not null"` // 分享码
	AccountID       string     `json:"accountId" gorm:"type:varchar(36);index;not null"`
	ProfilePosition int        `json:"profilePosition" gorm:"default:1"`
	AccessPassword  string     `json:"-" gorm:"type:varchar(255)"` // 空串表示无需密码
	Activated       bool       `json:"activated" gorm:"default:false"`
	ActivatedAt     *time.Time `json:"activatedAt,omitempty"`
	StartTime       *time.Time `json:"startTime,omitempty"`
	EndTime         *time.Time `json:"endTime,omitempty"` // 激活时按 DurationDays 计算
	DurationDays    int        `json:"durationDays" gorm:"default:30"`
	Status          int        `json:"status" gorm:"default:1;index"` // 1-启用，0-停用
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// RequiresPassword 判断分享页是否设置了访问密码。
func (p *SharePage) RequiresPassword() bool {
	return strings.TrimSpace(p.AccessPassword) != ""
}

// CheckPassword 校验访问密码。未设置密码时恒为真。
func (p *SharePage) CheckPassword(password string) bool {
	if !p.RequiresPassword() {
		return true
	}
	return p.AccessPassword == password
}

// WithinWindow 判断当前时刻是否落在分享页有效期内。
func (p *SharePage) WithinWindow(now time.Time) bool {
	if p.StartTime != nil && now.Before(*p.StartTime) {
		return false
	}
	if p.EndTime != nil && now.After(*p.EndTime) {
		return false
	}
	return true
}

package domain

import (
	"strings"
	"time"
)

// TransportKind 邮箱取件通道类型
type TransportKind string

const (
	TransportCustomHTTP TransportKind = "custom"  // 自定义 HTTP 邮件接口
	TransportVendorHTTP TransportKind = "vendor"  // 厂商邮件接口（Gmail/Outlook 风格）
	TransportIMAP       TransportKind = "imap"    // 直连 IMAP 协议
	TransportWebhook    TransportKind = "webhook" // Webhook 中转接口（按 HTTP 拉取）
)

// ResponseShape 描述邮件接口响应的解析规则。
//
// ListPath 是指向邮件数组的点号路径（如 "data.emails"）；
// 其余字段是单封邮件内各属性的字段名。
// 解析失败时全部退化为默认值，不抛错。
type ResponseShape struct {
	ListPath     string `json:"listPath"`
	SubjectField string `json:"subjectField"`
	BodyField    string `json:"bodyField"`
	SenderField  string `json:"senderField"`
	DateField    string `json:"dateField"`
}

// DefaultResponseShape 返回与主流邮件中转接口兼容的默认解析规则。
func DefaultResponseShape() ResponseShape {
	return ResponseShape{
		ListPath:     "data.emails",
		SubjectField: "subject",
		BodyField:    "content",
		SenderField:  "from",
		DateField:    "date",
	}
}

// withDefaults 补齐未配置的字段。
func (s ResponseShape) WithDefaults() ResponseShape {
	def := DefaultResponseShape()
	if s.ListPath == "" {
		s.ListPath = def.ListPath
	}
	if s.SubjectField == "" {
		s.SubjectField = def.SubjectField
	}
	if s.BodyField == "" {
		s.BodyField = def.BodyField
	}
	if s.SenderField == "" {
		s.SenderField = def.SenderField
	}
	if s.DateField == "" {
		s.DateField = def.DateField
	}
	return s
}

// MailboxConfig 账号关联邮箱的取件配置。
//
// 由账号管理方维护，取码核心只读。每次取码前都重新读取快照，
// 管理员在两次取码之间修改配置立即生效。
type MailboxConfig struct {
	Kind         TransportKind     `json:"kind"`
	Endpoint     string            `json:"endpoint"`             // HTTP 接口地址或 IMAP host:port
	Method       string            `json:"method"`               // HTTP 请求方法，默认 GET
	Headers      map[string]string `json:"headers,omitempty"`    // 额外请求头
	Params       map[string]string `json:"params,omitempty"`     // 请求参数（GET 拼 query，其他放 body）
	AuthToken    string            `json:"authToken,omitempty"`  // Bearer 令牌，不落日志
	APIKey       string            `json:"apiKey,omitempty"`     // X-API-Key，不落日志
	Username     string            `json:"username,omitempty"`   // IMAP 登录用户名
	Password     string            `json:"password,omitempty"`   // IMAP 登录密码，不落日志
	EmailAddress string            `json:"emailAddress"`         // 目标邮箱地址
	AutoFetch    bool              `json:"autoFetch"`            // 是否启用自动取码
	CodeValidity time.Duration     `json:"codeValidity"`         // 验证码有效期
	Shape        ResponseShape     `json:"shape"`                // 响应解析规则
	LastFetchAt  *time.Time        `json:"lastFetchAt,omitempty"`
}

// FetchReady 判断配置是否满足自动取码的最低要求。
// 未启用或缺少接口地址时不允许发起任何取件。
func (c MailboxConfig) FetchReady() bool {
	return c.AutoFetch && strings.TrimSpace(c.Endpoint) != ""
}

// Profile 共享账号内的一个车位。
type Profile struct {
	Position int    `json:"position"`
	Status   int    `json:"status"` // 1-启用，0-停用
	PIN      string `json:"pin,omitempty"`
}

// Account 表示一个被共享的流媒体账号。
type Account struct {
	ID        string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username  string        `json:"username" gorm:"type:varchar(255);not null"`
	Password  string        `json:"password" gorm:"type:varchar(255);not null"`
	Profiles  []Profile     `json:"profiles" gorm:"serializer:json"`
	Mailbox   MailboxConfig `json:"mailbox" gorm:"serializer:json"`
	Notes     string        `json:"notes,omitempty" gorm:"type:varchar(500)"`
	Status    int           `json:"status" gorm:"default:1;index"` // 1-启用，0-停用
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ActiveProfile 返回指定车位，车位停用或不存在时返回 nil。
func (a *Account) ActiveProfile(position int) *Profile {
	for i := range a.Profiles {
		if a.Profiles[i].Position == position && a.Profiles[i].Status == 1 {
			return &a.Profiles[i]
		}
	}
	return nil
}

// DefaultProfiles 返回新账号的默认车位列表。
func DefaultProfiles(count int) []Profile {
	profiles := make([]Profile, 0, count)
	for i := 1; i <= count; i++ {
		profiles = append(profiles, Profile{Position: i, Status: 1})
	}
	return profiles
}

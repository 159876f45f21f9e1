package domain

import "time"

// CodePurpose 验证码用途
type CodePurpose string

const (
	PurposeLogin          CodePurpose = "login"           // 登录验证
	PurposeDeviceTransfer CodePurpose = "device-transfer" // 同户设备验证
	PurposeGeneric        CodePurpose = "generic"         // 其他用途
)

// NormalizePurpose 将外部传入的用途归一化，未知值按登录处理。
func NormalizePurpose(raw CodePurpose) CodePurpose {
	switch raw {
	case PurposeDeviceTransfer:
		return PurposeDeviceTransfer
	case PurposeGeneric:
		return PurposeGeneric
	default:
		return PurposeLogin
	}
}

// CodeSource 验证码来源
type CodeSource string

const (
	SourceMailbox  CodeSource = "mailbox"         // 从邮箱自动取得
	SourceFallback CodeSource = "manual-fallback" // 取件失败后生成的兜底码
)

// VerificationCode 表示一条已取得的验证码记录。
//
// 不变量：同一 (AccountID, Purpose) 下至多存在一条未使用且未过期的记录；
// ExpiresAt 在创建时确定，之后不再修改；记录只会被翻转 Consumed 标记，
// 过期后由后台清扫或查询时的被动过滤回收。
type VerificationCode struct {
	ID         string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AccountID  string      `json:"accountId" gorm:"type:varchar(36);index:idx_code_lookup;not null"`
	Purpose    CodePurpose `json:"purpose" gorm:"type:varchar(20);index:idx_code_lookup;not null"`
	Code       string      `json:"code" gorm:"type:varchar(16);not null"`
	Source     CodeSource  `json:"source" gorm:"type:varchar(20);default:'mailbox'"`
	SourceMail string      `json:"sourceMail,omitempty" gorm:"type:varchar(255)"` // 来源邮箱地址
	Consumed   bool        `json:"consumed" gorm:"default:false"`
	ConsumedAt *time.Time  `json:"consumedAt,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	ExpiresAt  time.Time   `json:"expiresAt" gorm:"index;not null"` // 过期清扫依赖该索引
	ClientIP   string      `json:"-" gorm:"type:varchar(64)"`
	UserAgent  string      `json:"-" gorm:"type:varchar(255)"`
}

// Usable 判断记录当前是否可用（未使用且未过期）。
func (c *VerificationCode) Usable(now time.Time) bool {
	return !c.Consumed && c.ExpiresAt.After(now)
}

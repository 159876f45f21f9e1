package storage

import (
	"errors"
	"time"

	"streamshare/backend/internal/domain"
)

var (
	// ErrAccountNotFound 账号不存在
	ErrAccountNotFound = errors.New("account not found")
	// ErrSharePageNotFound 分享页不存在
	ErrSharePageNotFound = errors.New("share page not found")
	// ErrCodeNotFound 无可用验证码
	ErrCodeNotFound = errors.New("verification code not found")
	// ErrAdminNotFound 管理员不存在
	ErrAdminNotFound = errors.New("admin not found")
	// ErrAdminExists 管理员用户名已存在
	ErrAdminExists = errors.New("admin already exists")
)

// AccountRepository 定义共享账号数据存取操作。
type AccountRepository interface {
	SaveAccount(account *domain.Account) error
	GetAccount(id string) (*domain.Account, error)
	ListAccounts() ([]domain.Account, error)
	DeleteAccount(id string) error
}

// SharePageRepository 定义分享页数据存取操作。
type SharePageRepository interface {
	SaveSharePage(page *domain.SharePage) error
	GetSharePage(id string) (*domain.SharePage, error)
	GetSharePageByCode(code string) (*domain.SharePage, error)
	ListSharePages() ([]domain.SharePage, error)
	DeleteSharePage(id string) error
}

// CodeRepository 定义验证码数据存取操作。
//
// GetValidCode 只返回未使用且未过期的记录（被动过滤）；
// DeleteExpiredCodes 是主动清扫，两者共同保证过期记录最终被回收。
type CodeRepository interface {
	SaveCode(code *domain.VerificationCode) error
	UpdateCode(code *domain.VerificationCode) error
	GetValidCode(accountID string, purpose domain.CodePurpose) (*domain.VerificationCode, error)
	DeleteExpiredCodes(before time.Time) (int, error)
}

// AdminRepository 定义管理员数据存取操作。
type AdminRepository interface {
	CreateAdmin(admin *domain.Admin) error
	GetAdminByUsername(username string) (*domain.Admin, error)
	UpdateAdminLastLogin(id string) error
}

// Store 定义完整的存储接口。
type Store interface {
	AccountRepository
	SharePageRepository
	CodeRepository
	AdminRepository

	// 工具方法
	Close() error
	Health() error
}

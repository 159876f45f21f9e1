package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"streamshare/backend/internal/cache"
	"streamshare/backend/internal/domain"
	"streamshare/backend/internal/storage"
)

var (
	// ErrPasswordRequired 分享页需要访问密码
	ErrPasswordRequired = errors.New("access password required")
	// ErrPasswordMismatch 访问密码错误
	ErrPasswordMismatch = errors.New("access password mismatch")
	// ErrPageNotActive 分享页未激活或已停用
	ErrPageNotActive = errors.New("share page not active")
	// ErrPageExpired 分享页已过有效期
	ErrPageExpired = errors.New("share page expired")
	// ErrAlreadyActivated 分享页已激活过
	ErrAlreadyActivated = errors.New("share page already activated")
)

// SharePageService 分享页管理与访问服务。
//
// 按码查询带一层短 TTL 本地缓存，公网高频轮询不会每次都落库；
// 任何写操作都会使对应缓存条目失效。
type SharePageService struct {
	pages    storage.SharePageRepository
	accounts storage.AccountRepository
	byCode   *cache.LocalCache
	logger   *zap.Logger
}

// NewSharePageService 创建分享页服务。
func NewSharePageService(pages storage.SharePageRepository, accounts storage.AccountRepository, logger *zap.Logger) *SharePageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SharePageService{
		pages:    pages,
		accounts: accounts,
		byCode:   cache.NewLocalCache(30 * time.Second),
		logger:   logger,
	}
}

// lookupByCode 按分享码查询，优先走本地缓存。
func (s *SharePageService) lookupByCode(code string) (*domain.SharePage, error) {
	if val, ok := s.byCode.Get(code); ok {
		page := val.(domain.SharePage)
		return &page, nil
	}

	page, err := s.pages.GetSharePageByCode(code)
	if err != nil {
		return nil, err
	}
	s.byCode.Set(code, *page, 0)
	return page, nil
}

// SharePageInput 创建分享页的输入。
type SharePageInput struct {
	AccountID       string `json:"accountId"`
	ProfilePosition int    `json:"profilePosition"`
	AccessPassword  string `json:"accessPassword"`
	DurationDays    int    `json:"durationDays"`
}

// Create 为账号的某个席位创建分享页。
// 有效期从首次激活起算，创建时只记录天数。
func (s *SharePageService) Create(input SharePageInput) (*domain.SharePage, error) {
	if _, err := s.accounts.GetAccount(input.AccountID); err != nil {
		return nil, err
	}
	if input.DurationDays <= 0 {
		input.DurationDays = 30
	}

	now := time.Now().UTC()
	page := &domain.SharePage{
		ID:              uuid.New().String(),
		Code:            newShareCode(),
		AccountID:       input.AccountID,
		ProfilePosition: input.ProfilePosition,
		AccessPassword:  input.AccessPassword,
		DurationDays:    input.DurationDays,
		Status:          1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.pages.SaveSharePage(page); err != nil {
		return nil, err
	}

	s.logger.Info("share page created",
		zap.String("page_id", page.ID),
		zap.String("account_id", page.AccountID),
		zap.Int("profile_position", page.ProfilePosition),
	)
	return page, nil
}

// GetByCode 按分享码查询分享页（不校验密码，用于展示入口页）。
func (s *SharePageService) GetByCode(code string) (*domain.SharePage, error) {
	return s.lookupByCode(strings.TrimSpace(code))
}

// SharePageDetail 通过密码校验后的完整分享内容。
type SharePageDetail struct {
	Page    *domain.SharePage `json:"page"`
	Account *domain.Account   `json:"account"`
	Profile *domain.Profile   `json:"profile,omitempty"`
}

// Access 校验访问密码并返回账号凭证与席位信息。
//
// 页面停用、已过有效期、密码不符都会拒绝访问。
func (s *SharePageService) Access(code, password string) (*SharePageDetail, error) {
	page, err := s.lookupByCode(strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if page.Status != 1 {
		return nil, ErrPageNotActive
	}
	if page.Activated && !page.WithinWindow(time.Now().UTC()) {
		return nil, ErrPageExpired
	}
	if page.RequiresPassword() {
		if password == "" {
			return nil, ErrPasswordRequired
		}
		if !page.CheckPassword(password) {
			return nil, ErrPasswordMismatch
		}
	}

	account, err := s.accounts.GetAccount(page.AccountID)
	if err != nil {
		return nil, err
	}
	return &SharePageDetail{
		Page:    page,
		Account: account,
		Profile: account.ActiveProfile(page.ProfilePosition),
	}, nil
}

// Activate 首次激活分享页，固定有效期窗口。
// 重复激活返回 ErrAlreadyActivated，窗口不会被顺延。
func (s *SharePageService) Activate(code string) (*domain.SharePage, error) {
	page, err := s.pages.GetSharePageByCode(strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if page.Status != 1 {
		return nil, ErrPageNotActive
	}
	if page.Activated {
		return nil, ErrAlreadyActivated
	}

	now := time.Now().UTC()
	page.Activated = true
	page.ActivatedAt = &now
	page.StartTime = &now
	end := now.Add(time.Duration(page.DurationDays) * 24 * time.Hour)
	page.EndTime = &end
	page.UpdatedAt = now

	if err := s.pages.SaveSharePage(page); err != nil {
		return nil, err
	}
	s.byCode.Delete(page.Code)

	s.logger.Info("share page activated",
		zap.String("page_id", page.ID),
		zap.Time("end_time", end),
	)
	return page, nil
}

// List 返回全部分享页。
func (s *SharePageService) List() ([]domain.SharePage, error) {
	return s.pages.ListSharePages()
}

// Get 按 ID 查询分享页。
func (s *SharePageService) Get(id string) (*domain.SharePage, error) {
	return s.pages.GetSharePage(id)
}

// Delete 删除分享页。
func (s *SharePageService) Delete(id string) error {
	if page, err := s.pages.GetSharePage(id); err == nil {
		s.byCode.Delete(page.Code)
	}
	return s.pages.DeleteSharePage(id)
}

// shareCodeAlphabet 分享码字符集，去掉易混淆的 0/O/1/l。
const shareCodeAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// shareCodeLength 分享码长度。
const shareCodeLength = 10

// newShareCode 生成分享码。
// 字符集长度不是 256 的约数，超出整倍数范围的随机字节拒绝重采，
// 保证各字符等概率出现。
func newShareCode() string {
	limit := byte(256 - 256%len(shareCodeAlphabet))
	out := make([]byte, 0, shareCodeLength)
	buf := make([]byte, 2*shareCodeLength)
	for len(out) < shareCodeLength {
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("share code entropy source failed: %v", err))
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, shareCodeAlphabet[int(b)%len(shareCodeAlphabet)])
			if len(out) == shareCodeLength {
				break
			}
		}
	}
	return string(out)
}

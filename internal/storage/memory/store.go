package memory

import (
	"sync"
	"time"

	"streamshare/backend/internal/domain"
	"streamshare/backend/internal/storage"
)

// Store 进程内存储实现，用于开发环境与测试。
type Store struct {
	mu sync.RWMutex

	accounts   map[string]*domain.Account
	sharePages map[string]*domain.SharePage // 按 ID
	pageCodes  map[string]string            // 分享码 -> ID
	codes      map[string]*domain.VerificationCode
	admins     map[string]*domain.Admin // 按用户名
}

// NewStore 创建内存存储。
func NewStore() *Store {
	return &Store{
		accounts:   make(map[string]*domain.Account),
		sharePages: make(map[string]*domain.SharePage),
		pageCodes:  make(map[string]string),
		codes:      make(map[string]*domain.VerificationCode),
		admins:     make(map[string]*domain.Admin),
	}
}

// ========== 账号 ==========

// SaveAccount 保存或更新账号。
func (s *Store) SaveAccount(account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

// GetAccount 按 ID 获取账号。
func (s *Store) GetAccount(id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

// ListAccounts 列出全部账号。
func (s *Store) ListAccounts() ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	return out, nil
}

// DeleteAccount 删除账号。
func (s *Store) DeleteAccount(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return storage.ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

// ========== 分享页 ==========

// SaveSharePage 保存或更新分享页。
func (s *Store) SaveSharePage(page *domain.SharePage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *page
	s.sharePages[page.ID] = &cp
	s.pageCodes[page.Code] = page.ID
	return nil
}

// GetSharePage 按 ID 获取分享页。
func (s *Store) GetSharePage(id string) (*domain.SharePage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.sharePages[id]
	if !ok {
		return nil, storage.ErrSharePageNotFound
	}
	cp := *page
	return &cp, nil
}

// GetSharePageByCode 按分享码获取分享页。
func (s *Store) GetSharePageByCode(code string) (*domain.SharePage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.pageCodes[code]
	if !ok {
		return nil, storage.ErrSharePageNotFound
	}
	page, ok := s.sharePages[id]
	if !ok {
		return nil, storage.ErrSharePageNotFound
	}
	cp := *page
	return &cp, nil
}

// ListSharePages 列出全部分享页。
func (s *Store) ListSharePages() ([]domain.SharePage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SharePage, 0, len(s.sharePages))
	for _, p := range s.sharePages {
		out = append(out, *p)
	}
	return out, nil
}

// DeleteSharePage 删除分享页。
func (s *Store) DeleteSharePage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.sharePages[id]
	if !ok {
		return storage.ErrSharePageNotFound
	}
	delete(s.pageCodes, page.Code)
	delete(s.sharePages, id)
	return nil
}

// ========== 验证码 ==========

// SaveCode 保存验证码记录。
func (s *Store) SaveCode(code *domain.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *code
	s.codes[code.ID] = &cp
	return nil
}

// UpdateCode 覆盖更新验证码记录。
func (s *Store) UpdateCode(code *domain.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[code.ID]; !ok {
		return storage.ErrCodeNotFound
	}
	cp := *code
	s.codes[code.ID] = &cp
	return nil
}

// GetValidCode 返回指定账号+用途下最新的可用验证码。
// 过期或已使用的记录被动过滤，永远不会返回。
func (s *Store) GetValidCode(accountID string, purpose domain.CodePurpose) (*domain.VerificationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now().UTC()
	var latest *domain.VerificationCode
	for _, c := range s.codes {
		if c.AccountID != accountID || c.Purpose != purpose {
			continue
		}
		if !c.Usable(now) {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, storage.ErrCodeNotFound
	}
	cp := *latest
	return &cp, nil
}

// DeleteExpiredCodes 清扫过期验证码，返回删除数量。
func (s *Store) DeleteExpiredCodes(before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, c := range s.codes {
		if c.ExpiresAt.Before(before) {
			delete(s.codes, id)
			count++
		}
	}
	return count, nil
}

// ========== 管理员 ==========

// CreateAdmin 创建管理员，用户名重复时报错。
func (s *Store) CreateAdmin(admin *domain.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.admins[admin.Username]; ok {
		return storage.ErrAdminExists
	}
	cp := *admin
	s.admins[admin.Username] = &cp
	return nil
}

// GetAdminByUsername 按用户名获取管理员。
func (s *Store) GetAdminByUsername(username string) (*domain.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	admin, ok := s.admins[username]
	if !ok {
		return nil, storage.ErrAdminNotFound
	}
	cp := *admin
	return &cp, nil
}

// UpdateAdminLastLogin 记录管理员最近登录时间。
func (s *Store) UpdateAdminLastLogin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, admin := range s.admins {
		if admin.ID == id {
			admin.LastLoginAt = &now
			return nil
		}
	}
	return storage.ErrAdminNotFound
}

// Close 实现 Store 接口，内存存储无需释放资源。
func (s *Store) Close() error { return nil }

// Health 实现 Store 接口。
func (s *Store) Health() error { return nil }

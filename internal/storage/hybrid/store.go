package hybrid

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"streamshare/backend/internal/domain"
	"streamshare/backend/internal/storage"
	"streamshare/backend/internal/storage/redis"
)

// Store 在持久化存储之上加一层 Redis 验证码缓存。
// 账号、分享页、管理员直接透传；验证码读写走缓存旁路。
type Store struct {
	storage.Store
	cache  *redis.Cache
	logger *zap.Logger
}

// New 创建混合存储。logger 为 nil 时静默。
func New(backend storage.Store, cache *redis.Cache, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{Store: backend, cache: cache, logger: logger}
}

// SaveCode 落库后写穿缓存。缓存失败只记日志不影响主流程。
func (s *Store) SaveCode(code *domain.VerificationCode) error {
	if err := s.Store.SaveCode(code); err != nil {
		return err
	}
	if err := s.cache.CacheCode(code); err != nil {
		s.logger.Warn("failed to cache verification code",
			zap.String("account_id", code.AccountID),
			zap.Error(err))
	}
	return nil
}

// UpdateCode 更新记录并使缓存失效（通常是消费标记）。
func (s *Store) UpdateCode(code *domain.VerificationCode) error {
	if err := s.Store.UpdateCode(code); err != nil {
		return err
	}
	if err := s.cache.InvalidateCode(code.AccountID, code.Purpose); err != nil {
		s.logger.Warn("failed to invalidate cached code",
			zap.String("account_id", code.AccountID),
			zap.Error(err))
	}
	return nil
}

// GetValidCode 先查缓存，未命中回源数据库并回填。
func (s *Store) GetValidCode(accountID string, purpose domain.CodePurpose) (*domain.VerificationCode, error) {
	cached, err := s.cache.GetCachedCode(accountID, purpose)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, storage.ErrCodeNotFound) {
		s.logger.Warn("code cache lookup failed",
			zap.String("account_id", accountID),
			zap.Error(err))
	}

	code, err := s.Store.GetValidCode(accountID, purpose)
	if err != nil {
		return nil, err
	}
	if err := s.cache.CacheCode(code); err != nil {
		s.logger.Warn("failed to backfill code cache",
			zap.String("account_id", accountID),
			zap.Error(err))
	}
	return code, nil
}

// DeleteExpiredCodes 透传到持久层；缓存条目靠 TTL 自然过期。
func (s *Store) DeleteExpiredCodes(before time.Time) (int, error) {
	return s.Store.DeleteExpiredCodes(before)
}

// Close 同时关闭持久层与缓存连接。
func (s *Store) Close() error {
	cacheErr := s.cache.Close()
	if err := s.Store.Close(); err != nil {
		return err
	}
	return cacheErr
}

package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"streamshare/backend/internal/domain"
	"streamshare/backend/internal/storage"
)

// CodeNotifier 验证码就绪的推送出口，由 WebSocket 模块实现。
type CodeNotifier interface {
	NotifyCodeReady(accountID string, purpose domain.CodePurpose, record *domain.VerificationCode)
}

// CodeStore 验证码存取服务。
//
// 写入侧作为取件编排器的落点（实现 mailfetch.CodeSink），
// 读取侧只暴露未使用且未过期的记录。
type CodeStore struct {
	repo     storage.CodeRepository
	notifier CodeNotifier
	logger   *zap.Logger
}

// NewCodeStore 创建验证码存取服务。notifier 可以为 nil。
func NewCodeStore(repo storage.CodeRepository, notifier CodeNotifier, logger *zap.Logger) *CodeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeStore{repo: repo, notifier: notifier, logger: logger}
}

// Put 落库一条新取得的验证码记录并推送就绪通知。
func (s *CodeStore) Put(ctx context.Context, record *domain.VerificationCode) error {
	if err := s.repo.SaveCode(record); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.NotifyCodeReady(record.AccountID, record.Purpose, record)
	}
	return nil
}

// GetValid 返回指定账号+用途最新的可用验证码。
// 没有可用记录时返回 storage.ErrCodeNotFound。
func (s *CodeStore) GetValid(accountID string, purpose domain.CodePurpose) (*domain.VerificationCode, error) {
	return s.repo.GetValidCode(accountID, purpose)
}

// Consume 将当前可用验证码标记为已使用。
// 标记后该记录立即对 GetValid 不可见，即使尚未过期。
func (s *CodeStore) Consume(accountID string, purpose domain.CodePurpose) (*domain.VerificationCode, error) {
	record, err := s.repo.GetValidCode(accountID, purpose)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record.Consumed = true
	record.ConsumedAt = &now
	if err := s.repo.UpdateCode(record); err != nil {
		return nil, err
	}
	return record, nil
}

// CleanupExpired 删除已过期的验证码记录，返回删除条数。
func (s *CodeStore) CleanupExpired() (int, error) {
	n, err := s.repo.DeleteExpiredCodes(time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired verification codes removed", zap.Int("count", n))
	}
	return n, nil
}

// RunCleanupLoop 周期清扫过期记录，直到 ctx 取消。
func (s *CodeStore) RunCleanupLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CleanupExpired(); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("code cleanup failed", zap.Error(err))
			}
		}
	}
}

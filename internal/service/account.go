package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"streamshare/backend/internal/domain"
	"streamshare/backend/internal/mailfetch"
	"streamshare/backend/internal/storage"
)

// ErrUsernameRequired 账号用户名不能为空。
var ErrUsernameRequired = errors.New("account username required")

// AccountService 共享账号管理服务。
type AccountService struct {
	repo       storage.AccountRepository
	transports map[domain.TransportKind]mailfetch.Transport
	classifier *mailfetch.Classifier
	logger     *zap.Logger
}

// NewAccountService 创建账号管理服务。
func NewAccountService(
	repo storage.AccountRepository,
	transports map[domain.TransportKind]mailfetch.Transport,
	classifier *mailfetch.Classifier,
	logger *zap.Logger,
) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		repo:       repo,
		transports: transports,
		classifier: classifier,
		logger:     logger,
	}
}

// AccountInput 创建/更新账号的输入。
type AccountInput struct {
	Username     string               `json:"username"`
	Password     string               `json:"password"`
	ProfileCount int                  `json:"profileCount"`
	Profiles     []domain.Profile     `json:"profiles"`
	Mailbox      domain.MailboxConfig `json:"mailbox"`
	Notes        string               `json:"notes"`
	Status       *int                 `json:"status,omitempty"` // 1-启用，0-停用
}

// normalizeMailbox 补齐邮箱配置里未设置的解析规则。
func normalizeMailbox(cfg domain.MailboxConfig) domain.MailboxConfig {
	cfg.Shape = cfg.Shape.WithDefaults()
	return cfg
}

// Create 创建共享账号。
func (s *AccountService) Create(input AccountInput) (*domain.Account, error) {
	if strings.TrimSpace(input.Username) == "" {
		return nil, ErrUsernameRequired
	}

	profiles := input.Profiles
	if len(profiles) == 0 {
		count := input.ProfileCount
		if count <= 0 {
			count = 5
		}
		profiles = domain.DefaultProfiles(count)
	}

	status := 1
	if input.Status != nil {
		status = *input.Status
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:        uuid.New().String(),
		Username:  input.Username,
		Password:  input.Password,
		Profiles:  profiles,
		Mailbox:   normalizeMailbox(input.Mailbox),
		Notes:     input.Notes,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.SaveAccount(account); err != nil {
		return nil, err
	}

	s.logger.Info("account created",
		zap.String("account_id", account.ID),
		zap.String("username", account.Username),
	)
	return account, nil
}

// Update 更新共享账号。零值字段保持原样，Mailbox 整体替换。
func (s *AccountService) Update(id string, input AccountInput) (*domain.Account, error) {
	account, err := s.repo.GetAccount(id)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.Username) != "" {
		account.Username = input.Username
	}
	if input.Password != "" {
		account.Password = input.Password
	}
	if len(input.Profiles) > 0 {
		account.Profiles = input.Profiles
	}
	if input.Notes != "" {
		account.Notes = input.Notes
	}
	if input.Status != nil {
		account.Status = *input.Status
	}
	account.Mailbox = normalizeMailbox(input.Mailbox)
	account.UpdatedAt = time.Now().UTC()

	if err := s.repo.SaveAccount(account); err != nil {
		return nil, err
	}
	return account, nil
}

// Get 按 ID 查询账号。
func (s *AccountService) Get(id string) (*domain.Account, error) {
	return s.repo.GetAccount(id)
}

// List 返回全部账号。
func (s *AccountService) List() ([]domain.Account, error) {
	return s.repo.ListAccounts()
}

// Delete 删除账号。
func (s *AccountService) Delete(id string) error {
	if err := s.repo.DeleteAccount(id); err != nil {
		return err
	}
	s.logger.Info("account deleted", zap.String("account_id", id))
	return nil
}

// MailboxTestResult 邮箱连通性诊断结果。
type MailboxTestResult struct {
	Success       bool                      `json:"success"`
	Message       string                    `json:"message"`
	TotalMessages int                       `json:"totalMessages"`
	RelevantCount int                       `json:"relevantCount"`
	Samples       []domain.CandidateMessage `json:"samples,omitempty"`
}

// TestMailbox 对账号邮箱做一次取件，返回连通性与识别统计。
//
// 只做单次请求，不轮询不落码，是管理端配置后的即时体检。
func (s *AccountService) TestMailbox(ctx context.Context, id string) (*MailboxTestResult, error) {
	account, err := s.repo.GetAccount(id)
	if err != nil {
		return nil, err
	}

	cfg := account.Mailbox
	if !cfg.FetchReady() {
		return &MailboxTestResult{
			Success: false,
			Message: "邮箱配置不完整，缺少取件地址或未开启自动取件",
		}, nil
	}

	transport, ok := s.transports[cfg.Kind]
	if !ok {
		transport = s.transports[domain.TransportCustomHTTP]
	}
	if transport == nil {
		return nil, fmt.Errorf("no transport for kind %q", cfg.Kind)
	}

	messages, err := transport.Fetch(ctx, cfg)
	if err != nil {
		return &MailboxTestResult{
			Success: false,
			Message: fmt.Sprintf("取件失败: %v", err),
		}, nil
	}

	relevant := 0
	for _, msg := range messages {
		if s.classifier.IsRelevant(msg) {
			relevant++
		}
	}

	samples := messages
	if len(samples) > 2 {
		samples = samples[:2]
	}
	return &MailboxTestResult{
		Success:       true,
		Message:       fmt.Sprintf("取件成功，共 %d 封邮件，其中 %d 封可识别", len(messages), relevant),
		TotalMessages: len(messages),
		RelevantCount: relevant,
		Samples:       samples,
	}, nil
}

package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"streamshare/backend/internal/domain"
	"streamshare/backend/internal/mailfetch"
	"streamshare/backend/internal/pool"
	"streamshare/backend/internal/storage"
)

// 取码请求的对外状态。
const (
	StatusReady    = "ready"    // 已有可用验证码
	StatusFetching = "fetching" // 取件在途，请稍后轮询
	StatusNone     = "none"     // 既无可用码也无在途取件
)

// ErrTooBusy 取码队列已满。
var ErrTooBusy = errors.New("fetch queue is full")

// RequestResult 取码请求与状态查询的统一返回。
type RequestResult struct {
	Status        string                   `json:"status"`
	Code          *domain.VerificationCode `json:"code,omitempty"`
	EstimatedWait int                      `json:"estimatedWait,omitempty"` // 秒
}

// VerifyService 取码协议服务。
//
// 幂等语义：已有可用码直接返回，取件在途返回 fetching，
// 两者都不会触发新的取件。
type VerifyService struct {
	accounts      storage.AccountRepository
	codes         *CodeStore
	orchestrator  *mailfetch.Orchestrator
	pool          *pool.WorkerPool
	estimatedWait int
	logger        *zap.Logger
}

// NewVerifyService 创建取码协议服务。
func NewVerifyService(
	accounts storage.AccountRepository,
	codes *CodeStore,
	orchestrator *mailfetch.Orchestrator,
	workers *pool.WorkerPool,
	estimatedWait int,
	logger *zap.Logger,
) *VerifyService {
	if estimatedWait <= 0 {
		estimatedWait = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerifyService{
		accounts:      accounts,
		codes:         codes,
		orchestrator:  orchestrator,
		pool:          workers,
		estimatedWait: estimatedWait,
		logger:        logger,
	}
}

// RequestCode 请求指定账号+用途的验证码。
//
// 依次检查：可用码（直接返回 ready）、在途取件（返回 fetching）、
// 邮箱配置完整性（不完整快速失败），最后把取件任务放入协程池并
// 返回 fetching。取件在后台完成，客户端通过 PollStatus 拿结果。
func (s *VerifyService) RequestCode(ctx context.Context, accountID string, purpose domain.CodePurpose, clientIP, userAgent string) (*RequestResult, error) {
	purpose = domain.NormalizePurpose(purpose)

	account, err := s.accounts.GetAccount(accountID)
	if err != nil {
		return nil, err
	}

	if record, err := s.codes.GetValid(accountID, purpose); err == nil {
		return &RequestResult{Status: StatusReady, Code: record}, nil
	} else if !errors.Is(err, storage.ErrCodeNotFound) {
		return nil, err
	}

	if s.orchestrator.InFlight(accountID, purpose) {
		return &RequestResult{Status: StatusFetching, EstimatedWait: s.estimatedWait}, nil
	}

	if !account.Mailbox.FetchReady() {
		return nil, mailfetch.ErrConfigIncomplete
	}

	req := mailfetch.AcquireRequest{
		AccountID: accountID,
		Purpose:   purpose,
		Config:    account.Mailbox,
		ClientIP:  clientIP,
		UserAgent: userAgent,
	}
	submitted := s.pool.TrySubmit(func() {
		// 排队期间可能已有别的取件完成落码
		if _, err := s.codes.GetValid(accountID, purpose); err == nil {
			return
		}
		// 请求上下文随响应结束，后台取件用独立上下文
		if err := s.orchestrator.Acquire(context.Background(), req); err != nil {
			if errors.Is(err, mailfetch.ErrAlreadyInProgress) {
				return
			}
			s.logger.Warn("code acquisition could not start",
				zap.String("account_id", accountID),
				zap.String("purpose", string(purpose)),
				zap.Error(err),
			)
		}
	})
	if !submitted {
		return nil, ErrTooBusy
	}

	s.logger.Info("code acquisition scheduled",
		zap.String("account_id", accountID),
		zap.String("purpose", string(purpose)),
		zap.String("client_ip", clientIP),
	)
	return &RequestResult{Status: StatusFetching, EstimatedWait: s.estimatedWait}, nil
}

// PollStatus 查询取码进度。
//
// 可用码存在返回 ready，取件在途返回 fetching，否则返回 none。
// 查询本身不触发取件，可以任意频率轮询。
func (s *VerifyService) PollStatus(accountID string, purpose domain.CodePurpose) (*RequestResult, error) {
	purpose = domain.NormalizePurpose(purpose)

	if record, err := s.codes.GetValid(accountID, purpose); err == nil {
		return &RequestResult{Status: StatusReady, Code: record}, nil
	} else if !errors.Is(err, storage.ErrCodeNotFound) {
		return nil, err
	}

	if s.orchestrator.InFlight(accountID, purpose) {
		return &RequestResult{Status: StatusFetching, EstimatedWait: s.estimatedWait}, nil
	}
	return &RequestResult{Status: StatusNone}, nil
}

// ConsumeCode 标记验证码已使用。
func (s *VerifyService) ConsumeCode(accountID string, purpose domain.CodePurpose) (*domain.VerificationCode, error) {
	return s.codes.Consume(accountID, domain.NormalizePurpose(purpose))
}

// WaitHint 返回预估等待秒数。
func (s *VerifyService) WaitHint() time.Duration {
	return time.Duration(s.estimatedWait) * time.Second
}

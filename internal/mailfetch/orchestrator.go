package mailfetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"streamshare/backend/internal/domain"
)

// CodeSink 取件结果的落点，由验证码存储实现。
type CodeSink interface {
	Put(ctx context.Context, code *domain.VerificationCode) error
}

// FetchObserver 取件指标观察者，由监控模块实现。
type FetchObserver interface {
	ObserveFetchAttempt(kind string)
	ObserveFetchResult(source string, duration time.Duration)
}

// AcquireRequest 一次取码请求的完整输入。
//
// 配置是每次请求传入的只读快照：管理员在两次取码之间修改
// 邮箱配置时，下一次取码自动使用新配置。
type AcquireRequest struct {
	AccountID string
	Purpose   domain.CodePurpose
	Config    domain.MailboxConfig
	ClientIP  string
	UserAgent string
}

// key 返回互斥登记用的规范键：账号ID + 用途。
func (r AcquireRequest) key() string {
	return r.AccountID + ":" + string(r.Purpose)
}

// Options 编排器的轮询参数。
type Options struct {
	PollInterval     time.Duration // 两次取件之间的间隔，默认 10s
	MaxAttempts      int           // 最大取件次数，默认 30
	Timeout          time.Duration // 整次取码的超时，默认 5 分钟
	FallbackValidity time.Duration // 兜底码有效期，默认 10 分钟
	DefaultValidity  time.Duration // 邮箱码默认有效期，默认 10 分钟
}

// withDefaults 补齐未设置的参数。
func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 10 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 30
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Minute
	}
	if o.FallbackValidity <= 0 {
		o.FallbackValidity = 10 * time.Minute
	}
	if o.DefaultValidity <= 0 {
		o.DefaultValidity = 10 * time.Minute
	}
	return o
}

// Orchestrator 验证码取件编排器。
//
// 持有轮询/超时/互斥逻辑：同一账号同一用途至多一次取件在途，
// 单次取件失败按错误类型决定重试或终止，最终结果（真实码或
// 兜底码）一定会写入验证码存储——客户端永远不会面对空记录。
type Orchestrator struct {
	transports map[domain.TransportKind]Transport
	classifier *Classifier
	registry   AttemptRegistry
	sink       CodeSink
	observer   FetchObserver
	opts       Options
	logger     *zap.Logger

	randMu sync.Mutex
	random *rand.Rand
}

// NewOrchestrator 创建取件编排器。
//
// registry 与 sink 由调用方注入并持有；observer 可以为 nil。
func NewOrchestrator(
	transports map[domain.TransportKind]Transport,
	classifier *Classifier,
	registry AttemptRegistry,
	sink CodeSink,
	observer FetchObserver,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		transports: transports,
		classifier: classifier,
		registry:   registry,
		sink:       sink,
		observer:   observer,
		opts:       opts.withDefaults(),
		logger:     logger,
		random:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// InFlight 查询指定账号+用途是否有取件在途。
func (o *Orchestrator) InFlight(accountID string, purpose domain.CodePurpose) bool {
	return o.registry.InFlight(accountID + ":" + string(purpose))
}

// Acquire 执行一次完整的取码流程（同步，调用方自行放入协程池）。
//
// 返回值只反映流程是否启动：ErrConfigIncomplete、ErrAlreadyInProgress
// 属于快速失败；流程一旦启动，无论取件成败都会落一条记录并返回 nil。
func (o *Orchestrator) Acquire(ctx context.Context, req AcquireRequest) error {
	if !req.Config.FetchReady() {
		return ErrConfigIncomplete
	}

	transport, ok := o.transports[req.Config.Kind]
	if !ok {
		transport, ok = o.transports[domain.TransportCustomHTTP]
		if !ok {
			return fmt.Errorf("no transport for kind %q", req.Config.Kind)
		}
	}

	key := req.key()
	if !o.registry.TryAcquire(key) {
		return ErrAlreadyInProgress
	}
	defer o.registry.Release(key)

	start := time.Now()
	timeout := o.opts.Timeout
	// 账号配置的有效期窗口更短时，取码没必要超过它
	if req.Config.CodeValidity > 0 && req.Config.CodeValidity < timeout {
		timeout = req.Config.CodeValidity
	}
	loopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	code, sourceMail, err := o.pollLoop(loopCtx, transport, req)
	if err == nil && code != "" {
		validity := req.Config.CodeValidity
		if validity <= 0 {
			validity = o.opts.DefaultValidity
		}
		record := o.buildRecord(req, code, domain.SourceMailbox, sourceMail, validity)
		if putErr := o.sink.Put(ctx, record); putErr != nil {
			o.logger.Error("failed to store fetched code",
				zap.String("account_id", req.AccountID),
				zap.String("purpose", string(req.Purpose)),
				zap.Error(putErr),
			)
			return nil
		}
		if o.observer != nil {
			o.observer.ObserveFetchResult(string(domain.SourceMailbox), time.Since(start))
		}
		o.logger.Info("verification code acquired from mailbox",
			zap.String("account_id", req.AccountID),
			zap.String("purpose", string(req.Purpose)),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	}

	// 超时或致命传输失败：写兜底码，保证客户端总能拿到记录
	o.logger.Warn("acquisition fell back to generated code",
		zap.String("account_id", req.AccountID),
		zap.String("purpose", string(req.Purpose)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	fallback := o.buildRecord(req, o.randomCode(), domain.SourceFallback, "", o.opts.FallbackValidity)
	if putErr := o.sink.Put(ctx, fallback); putErr != nil {
		o.logger.Error("failed to store fallback code",
			zap.String("account_id", req.AccountID),
			zap.Error(putErr),
		)
	}
	if o.observer != nil {
		o.observer.ObserveFetchResult(string(domain.SourceFallback), time.Since(start))
	}
	return nil
}

// pollLoop 固定间隔轮询邮箱直到取到码、超时或遇到致命错误。
func (o *Orchestrator) pollLoop(ctx context.Context, transport Transport, req AcquireRequest) (string, string, error) {
	var lastErr error

	for attempt := 1; attempt <= o.opts.MaxAttempts; attempt++ {
		if o.observer != nil {
			o.observer.ObserveFetchAttempt(string(req.Config.Kind))
		}

		messages, err := transport.Fetch(ctx, req.Config)
		switch {
		case err == nil:
			if code, sourceMail, found := o.pickCode(messages, req.Config.EmailAddress); found {
				return code, sourceMail, nil
			}
			// 未提取到码不是错误，留给下一轮
		case errors.Is(err, ErrTransportRefused):
			// 对端不可达，继续轮询只会白耗超时预算
			o.logger.Warn("transport refused, aborting poll loop",
				zap.String("account_id", req.AccountID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return "", "", err
		default:
			// 超时/状态码错误可恢复，记录后重试
			lastErr = err
			o.logger.Debug("fetch attempt failed",
				zap.String("account_id", req.AccountID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return "", "", fmt.Errorf("acquisition timeout: %w", lastErr)
			}
			return "", "", fmt.Errorf("acquisition timeout: %w", ctx.Err())
		case <-time.After(o.opts.PollInterval):
		}
	}

	if lastErr != nil {
		return "", "", fmt.Errorf("max attempts exhausted: %w", lastErr)
	}
	return "", "", errors.New("max attempts exhausted without a matching message")
}

// pickCode 过滤相关邮件并按时间倒序提取验证码。
//
// 最新的匹配邮件最可能携带当前有效的码，所以先到先得的
// 顺序是消息时间戳降序，而不是接口返回顺序。
func (o *Orchestrator) pickCode(messages []domain.CandidateMessage, mailbox string) (string, string, bool) {
	relevant := make([]domain.CandidateMessage, 0, len(messages))
	for _, msg := range messages {
		if o.classifier.IsRelevant(msg) {
			relevant = append(relevant, msg)
		}
	}
	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].Date.After(relevant[j].Date)
	})

	for _, msg := range relevant {
		if code, ok := ExtractCode(msg.Subject, msg.Body); ok {
			return code, mailbox, true
		}
	}
	return "", "", false
}

// buildRecord 组装一条验证码记录，过期时间在创建时一次性确定。
func (o *Orchestrator) buildRecord(req AcquireRequest, code string, source domain.CodeSource, sourceMail string, validity time.Duration) *domain.VerificationCode {
	now := time.Now().UTC()
	return &domain.VerificationCode{
		ID:         uuid.New().String(),
		AccountID:  req.AccountID,
		Purpose:    req.Purpose,
		Code:       code,
		Source:     source,
		SourceMail: sourceMail,
		CreatedAt:  now,
		ExpiresAt:  now.Add(validity),
		ClientIP:   req.ClientIP,
		UserAgent:  req.UserAgent,
	}
}

// randomCode 生成 6 位兜底验证码。
func (o *Orchestrator) randomCode() string {
	o.randMu.Lock()
	defer o.randMu.Unlock()
	return fmt.Sprintf("%06d", 100000+o.random.Intn(900000))
}

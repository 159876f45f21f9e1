package mailfetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamshare/backend/internal/domain"
)

// stubTransport 可编程的取件通道。
type stubTransport struct {
	mu       sync.Mutex
	calls    int
	fetch    func(call int) ([]domain.CandidateMessage, error)
	blockFor time.Duration
}

func (s *stubTransport) Fetch(ctx context.Context, cfg domain.MailboxConfig) ([]domain.CandidateMessage, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	if s.blockFor > 0 {
		select {
		case <-time.After(s.blockFor):
		case <-ctx.Done():
			return nil, classifyDialError(ctx.Err())
		}
	}
	return s.fetch(call)
}

func (s *stubTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// memorySink 收集写入的验证码记录。
type memorySink struct {
	mu    sync.Mutex
	codes []*domain.VerificationCode
}

func (s *memorySink) Put(ctx context.Context, code *domain.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, code)
	return nil
}

func (s *memorySink) all() []*domain.VerificationCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.VerificationCode, len(s.codes))
	copy(out, s.codes)
	return out
}

func fastOptions() Options {
	return Options{
		PollInterval:     5 * time.Millisecond,
		MaxAttempts:      3,
		Timeout:          200 * time.Millisecond,
		FallbackValidity: 10 * time.Minute,
		DefaultValidity:  10 * time.Minute,
	}
}

func newTestOrchestrator(transport Transport, sink CodeSink, opts Options) *Orchestrator {
	return NewOrchestrator(
		map[domain.TransportKind]Transport{domain.TransportCustomHTTP: transport},
		NewClassifier(nil, nil),
		NewMemoryRegistry(),
		sink,
		nil,
		opts,
		nil,
	)
}

func acquireReq() AcquireRequest {
	return AcquireRequest{
		AccountID: "acct-1",
		Purpose:   domain.PurposeLogin,
		Config: domain.MailboxConfig{
			Kind:         domain.TransportCustomHTTP,
			Endpoint:     "http://mail.example.com/api",
			AutoFetch:    true,
			EmailAddress: "shared@example.com",
			CodeValidity: 10 * time.Minute,
		},
	}
}

func TestOrchestratorAcquire(t *testing.T) {
	t.Run("成功取码写入邮箱来源记录", func(t *testing.T) {
		transport := &stubTransport{fetch: func(call int) ([]domain.CandidateMessage, error) {
			return []domain.CandidateMessage{{
				Sender:  "noreply@netflix.com",
				Subject: "Your Netflix verification code",
				Body:    "Use 482913 to sign in",
				Date:    time.Now(),
			}}, nil
		}}
		sink := &memorySink{}
		orch := newTestOrchestrator(transport, sink, fastOptions())

		err := orch.Acquire(context.Background(), acquireReq())

		require.NoError(t, err)
		codes := sink.all()
		require.Len(t, codes, 1)
		assert.Equal(t, "482913", codes[0].Code)
		assert.Equal(t, domain.SourceMailbox, codes[0].Source)
		assert.Equal(t, "shared@example.com", codes[0].SourceMail)
		assert.False(t, codes[0].Consumed)
		// 有效期自记录创建时刻起算
		assert.Equal(t, 10*time.Minute, codes[0].ExpiresAt.Sub(codes[0].CreatedAt))
	})

	t.Run("多封邮件按时间倒序取最新", func(t *testing.T) {
		now := time.Now()
		transport := &stubTransport{fetch: func(call int) ([]domain.CandidateMessage, error) {
			return []domain.CandidateMessage{
				{Sender: "noreply@netflix.com", Body: "old code 111111", Date: now.Add(-time.Hour)},
				{Sender: "noreply@netflix.com", Body: "new code 222222", Date: now},
			}, nil
		}}
		sink := &memorySink{}
		orch := newTestOrchestrator(transport, sink, fastOptions())

		require.NoError(t, orch.Acquire(context.Background(), acquireReq()))

		codes := sink.all()
		require.Len(t, codes, 1)
		assert.Equal(t, "222222", codes[0].Code)
	})

	t.Run("配置未启用时快速失败且不触发取件", func(t *testing.T) {
		transport := &stubTransport{fetch: func(call int) ([]domain.CandidateMessage, error) {
			return nil, nil
		}}
		sink := &memorySink{}
		orch := newTestOrchestrator(transport, sink, fastOptions())

		req := acquireReq()
		req.Config.AutoFetch = false
		err := orch.Acquire(context.Background(), req)
		assert.ErrorIs(t, err, ErrConfigIncomplete)

		req = acquireReq()
		req.Config.Endpoint = "  "
		err = orch.Acquire(context.Background(), req)
		assert.ErrorIs(t, err, ErrConfigIncomplete)

		assert.Equal(t, 0, transport.callCount())
		assert.Empty(t, sink.all())
	})

	t.Run("同键并发取件只允许一次在途", func(t *testing.T) {
		transport := &stubTransport{
			blockFor: 50 * time.Millisecond,
			fetch: func(call int) ([]domain.CandidateMessage, error) {
				return []domain.CandidateMessage{{
					Sender: "noreply@netflix.com",
					Body:   "Use 482913 to sign in",
					Date:   time.Now(),
				}}, nil
			},
		}
		sink := &memorySink{}
		orch := newTestOrchestrator(transport, sink, fastOptions())

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- orch.Acquire(context.Background(), acquireReq())
			}()
		}
		wg.Wait()
		close(errs)

		var inProgress, succeeded int
		for err := range errs {
			if errors.Is(err, ErrAlreadyInProgress) {
				inProgress++
			} else if err == nil {
				succeeded++
			}
		}
		assert.Equal(t, 1, inProgress)
		assert.Equal(t, 1, succeeded)
		// 只启动过一条取件调用链
		assert.Equal(t, 1, transport.callCount())
	})

	t.Run("持续超时写入兜底码", func(t *testing.T) {
		transport := &stubTransport{fetch: func(call int) ([]domain.CandidateMessage, error) {
			return nil, ErrTransportTimeout
		}}
		sink := &memorySink{}
		orch := newTestOrchestrator(transport, sink, fastOptions())

		require.NoError(t, orch.Acquire(context.Background(), acquireReq()))

		codes := sink.all()
		require.Len(t, codes, 1)
		assert.Equal(t, domain.SourceFallback, codes[0].Source)
		assert.Len(t, codes[0].Code, 6)
		// 兜底码固定 10 分钟有效期
		assert.Equal(t, 10*time.Minute, codes[0].ExpiresAt.Sub(codes[0].CreatedAt))
	})

	t.Run("连接拒绝立即终止轮询并写兜底码", func(t *testing.T) {
		transport := &stubTransport{fetch: func(call int) ([]domain.CandidateMessage, error) {
			return nil, ErrTransportRefused
		}}
		sink := &memorySink{}
		orch := newTestOrchestrator(transport, sink, fastOptions())

		require.NoError(t, orch.Acquire(context.Background(), acquireReq()))

		// 不会对不可达的接口继续轮询
		assert.Equal(t, 1, transport.callCount())
		codes := sink.all()
		require.Len(t, codes, 1)
		assert.Equal(t, domain.SourceFallback, codes[0].Source)
	})

	t.Run("提取未命中时继续轮询直到成功", func(t *testing.T) {
		transport := &stubTransport{fetch: func(call int) ([]domain.CandidateMessage, error) {
			if call < 3 {
				return nil, nil // 前两轮没有新邮件
			}
			return []domain.CandidateMessage{{
				Sender: "noreply@netflix.com",
				Body:   "Use 482913 to sign in",
				Date:   time.Now(),
			}}, nil
		}}
		sink := &memorySink{}
		orch := newTestOrchestrator(transport, sink, fastOptions())

		require.NoError(t, orch.Acquire(context.Background(), acquireReq()))

		assert.Equal(t, 3, transport.callCount())
		codes := sink.all()
		require.Len(t, codes, 1)
		assert.Equal(t, domain.SourceMailbox, codes[0].Source)
	})

	t.Run("取件完成后互斥键可复用", func(t *testing.T) {
		transport := &stubTransport{fetch: func(call int) ([]domain.CandidateMessage, error) {
			return []domain.CandidateMessage{{
				Sender: "noreply@netflix.com",
				Body:   "Use 482913 to sign in",
				Date:   time.Now(),
			}}, nil
		}}
		sink := &memorySink{}
		orch := newTestOrchestrator(transport, sink, fastOptions())

		require.NoError(t, orch.Acquire(context.Background(), acquireReq()))
		assert.False(t, orch.InFlight("acct-1", domain.PurposeLogin))
		require.NoError(t, orch.Acquire(context.Background(), acquireReq()))
		assert.Len(t, sink.all(), 2)
	})
}

func TestMemoryRegistry(t *testing.T) {
	t.Run("重复登记被拒绝", func(t *testing.T) {
		registry := NewMemoryRegistry()
		assert.True(t, registry.TryAcquire("k"))
		assert.False(t, registry.TryAcquire("k"))
		assert.True(t, registry.InFlight("k"))
		registry.Release("k")
		assert.False(t, registry.InFlight("k"))
		assert.True(t, registry.TryAcquire("k"))
	})

	t.Run("不同键互不影响", func(t *testing.T) {
		registry := NewMemoryRegistry()
		assert.True(t, registry.TryAcquire("acct-1:login"))
		assert.True(t, registry.TryAcquire("acct-1:device-transfer"))
		assert.True(t, registry.TryAcquire("acct-2:login"))
	})
}

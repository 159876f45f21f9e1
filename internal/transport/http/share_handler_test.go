package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamshare/backend/internal/domain"
	"streamshare/backend/internal/mailfetch"
	"streamshare/backend/internal/pool"
	"streamshare/backend/internal/service"
	"streamshare/backend/internal/storage/memory"
)

// stubTransport 返回固定邮件的取件通道。
type stubTransport struct {
	messages []domain.CandidateMessage
}

func (s *stubTransport) Fetch(ctx context.Context, cfg domain.MailboxConfig) ([]domain.CandidateMessage, error) {
	return s.messages, nil
}

type shareFixture struct {
	router *gin.Engine
	store  *memory.Store
	pages  *service.SharePageService
	codes  *service.CodeStore
}

func newShareFixture(t *testing.T) *shareFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	codes := service.NewCodeStore(store, nil, nil)
	transport := &stubTransport{messages: []domain.CandidateMessage{{
		Sender: "noreply@netflix.com",
		Body:   "Use 482913 to sign in",
		Date:   time.Now(),
	}}}
	orch := mailfetch.NewOrchestrator(
		map[domain.TransportKind]mailfetch.Transport{domain.TransportCustomHTTP: transport},
		mailfetch.NewClassifier(nil, nil),
		mailfetch.NewMemoryRegistry(),
		codes,
		nil,
		mailfetch.Options{PollInterval: 5 * time.Millisecond, MaxAttempts: 3, Timeout: 200 * time.Millisecond},
		nil,
	)
	workers := pool.NewWorkerPool(2, 8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	workers.Start(ctx)
	t.Cleanup(cancel)

	verify := service.NewVerifyService(store, codes, orch, workers, 30, nil)
	pages := service.NewSharePageService(store, store, nil)
	handler := NewShareHandler(pages, verify, nil, nil)

	router := gin.New()
	group := router.Group("/share")
	group.GET("/:code", handler.getPage)
	group.POST("/:code/access", handler.access)
	group.POST("/:code/activate", handler.activate)
	group.POST("/:code/verify-code", handler.requestCode)
	group.GET("/:code/verify-code-status", handler.codeStatus)

	return &shareFixture{router: router, store: store, pages: pages, codes: codes}
}

func (f *shareFixture) createPage(t *testing.T, password string, autoFetch bool) *domain.SharePage {
	t.Helper()
	account := &domain.Account{
		ID:       "acct-1",
		Username: "shared@example.com",
		Password: "stream-password",
		Profiles: domain.DefaultProfiles(5),
		Mailbox: domain.MailboxConfig{
			Kind:         domain.TransportCustomHTTP,
			Endpoint:     "http://mail.example.com/api",
			EmailAddress: "shared@example.com",
			AuthToken:    "mailbox-secret-token",
			AutoFetch:    autoFetch,
			CodeValidity: 10 * time.Minute,
		},
		Status: 1,
	}
	require.NoError(t, f.store.SaveAccount(account))

	page, err := f.pages.Create(service.SharePageInput{
		AccountID:       "acct-1",
		ProfilePosition: 1,
		AccessPassword:  password,
	})
	require.NoError(t, err)
	return page
}

func (f *shareFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) (int, map[string]any) {
	t.Helper()
	var envelope struct {
		Code int             `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data := map[string]any{}
	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		require.NoError(t, json.Unmarshal(envelope.Data, &data))
	}
	return envelope.Code, data
}

func TestGetPage(t *testing.T) {
	t.Run("公开视图不含凭证与邮箱配置", func(t *testing.T) {
		f := newShareFixture(t)
		page := f.createPage(t, "open-sesame", true)

		w := f.do(http.MethodGet, "/share/"+page.Code, "")
		require.Equal(t, http.StatusOK, w.Code)

		body := w.Body.String()
		assert.NotContains(t, body, "stream-password")
		assert.NotContains(t, body, "mailbox-secret-token")
		assert.NotContains(t, body, "mail.example.com")

		_, data := decodeEnvelope(t, w)
		assert.Equal(t, true, data["requiresPassword"])
		assert.Equal(t, false, data["activated"])
	})

	t.Run("分享码不存在返回404", func(t *testing.T) {
		f := newShareFixture(t)
		w := f.do(http.MethodGet, "/share/nope", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAccessEndpoint(t *testing.T) {
	t.Run("密码正确返回凭证", func(t *testing.T) {
		f := newShareFixture(t)
		page := f.createPage(t, "open-sesame", true)

		w := f.do(http.MethodPost, "/share/"+page.Code+"/access", `{"password":"open-sesame"}`)
		require.Equal(t, http.StatusOK, w.Code)

		_, data := decodeEnvelope(t, w)
		assert.Equal(t, "shared@example.com", data["username"])
		assert.Equal(t, "stream-password", data["password"])
		// 凭证视图也不暴露邮箱取件配置
		assert.NotContains(t, w.Body.String(), "mailbox-secret-token")
	})

	t.Run("密码错误返回403", func(t *testing.T) {
		f := newShareFixture(t)
		page := f.createPage(t, "open-sesame", true)

		w := f.do(http.MethodPost, "/share/"+page.Code+"/access", `{"password":"wrong"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = f.do(http.MethodPost, "/share/"+page.Code+"/access", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestActivateEndpoint(t *testing.T) {
	f := newShareFixture(t)
	page := f.createPage(t, "", true)

	w := f.do(http.MethodPost, "/share/"+page.Code+"/activate", "")
	require.Equal(t, http.StatusOK, w.Code)

	_, data := decodeEnvelope(t, w)
	assert.Equal(t, true, data["activated"])
	assert.NotEmpty(t, data["endTime"])

	// 重复激活是业务错误
	w = f.do(http.MethodPost, "/share/"+page.Code+"/activate", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyCodeEndpoint(t *testing.T) {
	t.Run("取码链路走通并可轮询到结果", func(t *testing.T) {
		f := newShareFixture(t)
		page := f.createPage(t, "", true)

		w := f.do(http.MethodPost, "/share/"+page.Code+"/verify-code", `{"purpose":"login"}`)
		require.Equal(t, http.StatusOK, w.Code)

		_, data := decodeEnvelope(t, w)
		assert.Equal(t, "fetching", data["status"])

		require.Eventually(t, func() bool {
			w := f.do(http.MethodGet, "/share/"+page.Code+"/verify-code-status?purpose=login", "")
			if w.Code != http.StatusOK {
				return false
			}
			_, data := decodeEnvelope(t, w)
			return data["status"] == "ready"
		}, 2*time.Second, 10*time.Millisecond)

		w = f.do(http.MethodGet, "/share/"+page.Code+"/verify-code-status?purpose=login", "")
		_, data = decodeEnvelope(t, w)
		code := data["code"].(map[string]any)
		assert.Equal(t, "482913", code["code"])
	})

	t.Run("邮箱配置不完整返回400", func(t *testing.T) {
		f := newShareFixture(t)
		page := f.createPage(t, "", false)

		w := f.do(http.MethodPost, "/share/"+page.Code+"/verify-code", `{"purpose":"login"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("取码同样要求访问密码", func(t *testing.T) {
		f := newShareFixture(t)
		page := f.createPage(t, "open-sesame", true)

		w := f.do(http.MethodPost, "/share/"+page.Code+"/verify-code", `{"purpose":"login"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = f.do(http.MethodGet, "/share/"+page.Code+"/verify-code-status?purpose=login", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

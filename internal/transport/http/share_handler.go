package httptransport

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streamshare/backend/internal/domain"
	"streamshare/backend/internal/mailfetch"
	"streamshare/backend/internal/service"
	"streamshare/backend/internal/storage"
	"streamshare/backend/internal/websocket"
)

// ShareHandler 分享页公开接口。
//
// 所有端点凭分享码访问，设置了访问密码的分享页每次请求都要带密码。
// 响应里永远不包含邮箱取件配置，凭证只在密码校验通过后返回。
type ShareHandler struct {
	pages  *service.SharePageService
	verify *service.VerifyService
	hub    *websocket.Hub
	logger *zap.Logger
}

// NewShareHandler 创建分享页处理器。hub 可以为 nil。
func NewShareHandler(pages *service.SharePageService, verify *service.VerifyService, hub *websocket.Hub, logger *zap.Logger) *ShareHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShareHandler{pages: pages, verify: verify, hub: hub, logger: logger}
}

// sharePageView 分享页的公开视图，不含凭证与邮箱配置。
type sharePageView struct {
	Code             string     `json:"code"`
	RequiresPassword bool       `json:"requiresPassword"`
	Activated        bool       `json:"activated"`
	ActivatedAt      *time.Time `json:"activatedAt,omitempty"`
	StartTime        *time.Time `json:"startTime,omitempty"`
	EndTime          *time.Time `json:"endTime,omitempty"`
	DurationDays     int        `json:"durationDays"`
	Status           int        `json:"status"`
}

func newSharePageView(page *domain.SharePage) sharePageView {
	return sharePageView{
		Code:             page.Code,
		RequiresPassword: page.RequiresPassword(),
		Activated:        page.Activated,
		ActivatedAt:      page.ActivatedAt,
		StartTime:        page.StartTime,
		EndTime:          page.EndTime,
		DurationDays:     page.DurationDays,
		Status:           page.Status,
	}
}

// shareDetailView 密码校验通过后的完整视图。
type shareDetailView struct {
	Page     sharePageView   `json:"page"`
	Username string          `json:"username"`
	Password string          `json:"password"`
	Profile  *domain.Profile `json:"profile,omitempty"`
}

// getPage 获取分享页公开信息
// GET /share/:code
func (h *ShareHandler) getPage(c *gin.Context) {
	page, err := h.pages.GetByCode(c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, newSharePageView(page))
}

// accessRequest 携带访问密码的请求体。
type accessRequest struct {
	Password string `json:"password"`
}

// access 密码校验并返回账号凭证
// POST /share/:code/access
func (h *ShareHandler) access(c *gin.Context) {
	var req accessRequest
	_ = c.ShouldBindJSON(&req)

	detail, err := h.pages.Access(c.Param("code"), req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	Success(c, shareDetailView{
		Page:     newSharePageView(detail.Page),
		Username: detail.Account.Username,
		Password: detail.Account.Password,
		Profile:  detail.Profile,
	})
}

// activate 激活分享页，开始计算有效期
// POST /share/:code/activate
func (h *ShareHandler) activate(c *gin.Context) {
	var req accessRequest
	_ = c.ShouldBindJSON(&req)

	code := c.Param("code")
	if _, err := h.pages.Access(code, req.Password); err != nil {
		h.fail(c, err)
		return
	}

	page, err := h.pages.Activate(code)
	if err != nil {
		h.fail(c, err)
		return
	}
	SuccessWithMsg(c, "激活成功", newSharePageView(page))
}

// verifyCodeRequest 取码请求体。
type verifyCodeRequest struct {
	Password string `json:"password"`
	Purpose  string `json:"purpose"` // login / device-transfer / generic
}

// requestCode 请求验证码
// POST /share/:code/verify-code
func (h *ShareHandler) requestCode(c *gin.Context) {
	var req verifyCodeRequest
	_ = c.ShouldBindJSON(&req)

	detail, err := h.pages.Access(c.Param("code"), req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.verify.RequestCode(
		c.Request.Context(),
		detail.Page.AccountID,
		domain.CodePurpose(req.Purpose),
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, result)
}

// codeStatus 查询取码进度
// GET /share/:code/verify-code-status?purpose=login&password=
func (h *ShareHandler) codeStatus(c *gin.Context) {
	detail, err := h.pages.Access(c.Param("code"), c.Query("password"))
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.verify.PollStatus(detail.Page.AccountID, domain.CodePurpose(c.Query("purpose")))
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, result)
}

// serveWS 建立验证码就绪推送连接
// GET /share/:code/ws?purpose=login&password=
func (h *ShareHandler) serveWS(c *gin.Context) {
	if h.hub == nil {
		NotFound(c, MsgWebSocketFailed)
		return
	}

	detail, err := h.pages.Access(c.Param("code"), c.Query("password"))
	if err != nil {
		h.fail(c, err)
		return
	}

	purpose := domain.NormalizePurpose(domain.CodePurpose(c.Query("purpose")))
	topic := detail.Page.AccountID + ":" + string(purpose)
	if err := h.hub.ServeWS(c.Writer, c.Request, []string{topic}); err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("share_code", c.Param("code")),
			zap.Error(err),
		)
	}
}

// fail 将业务错误映射为响应。
func (h *ShareHandler) fail(c *gin.Context, err error) {
	msg := GetErrorMessage(err)
	switch {
	case errors.Is(err, storage.ErrSharePageNotFound),
		errors.Is(err, storage.ErrAccountNotFound):
		NotFound(c, msg)
	case errors.Is(err, service.ErrPasswordRequired),
		errors.Is(err, service.ErrPasswordMismatch):
		Forbidden(c, msg)
	case errors.Is(err, service.ErrPageNotActive),
		errors.Is(err, service.ErrPageExpired),
		errors.Is(err, service.ErrAlreadyActivated),
		errors.Is(err, mailfetch.ErrConfigIncomplete):
		BadRequest(c, msg)
	case errors.Is(err, service.ErrTooBusy):
		TooManyRequests(c, msg)
	default:
		h.logger.Error("share endpoint failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		InternalError(c, MsgInternalError)
	}
}

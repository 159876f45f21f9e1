package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streamshare/backend/internal/domain"
	"streamshare/backend/internal/mailfetch"
	"streamshare/backend/internal/service"
	"streamshare/backend/internal/storage"
)

// AdminHandler 管理端接口，全部需要 JWT 认证。
type AdminHandler struct {
	accounts *service.AccountService
	pages    *service.SharePageService
	verify   *service.VerifyService
	logger   *zap.Logger
}

// NewAdminHandler 创建管理端处理器。
func NewAdminHandler(accounts *service.AccountService, pages *service.SharePageService, verify *service.VerifyService, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{accounts: accounts, pages: pages, verify: verify, logger: logger}
}

// ========== 账号管理 ==========

// createAccount 创建共享账号
// POST /v1/admin/accounts
func (h *AdminHandler) createAccount(c *gin.Context) {
	var input service.AccountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	account, err := h.accounts.Create(input)
	if err != nil {
		h.fail(c, err, MsgAccountCreateFailed)
		return
	}
	Created(c, account)
}

// listAccounts 账号列表
// GET /v1/admin/accounts
func (h *AdminHandler) listAccounts(c *gin.Context) {
	accounts, err := h.accounts.List()
	if err != nil {
		h.fail(c, err, MsgAccountListFailed)
		return
	}
	Success(c, accounts)
}

// getAccount 账号详情
// GET /v1/admin/accounts/:id
func (h *AdminHandler) getAccount(c *gin.Context) {
	account, err := h.accounts.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err, MsgAccountListFailed)
		return
	}
	Success(c, account)
}

// updateAccount 更新账号
// PUT /v1/admin/accounts/:id
func (h *AdminHandler) updateAccount(c *gin.Context) {
	var input service.AccountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	account, err := h.accounts.Update(c.Param("id"), input)
	if err != nil {
		h.fail(c, err, MsgAccountUpdateFailed)
		return
	}
	Success(c, account)
}

// deleteAccount 删除账号
// DELETE /v1/admin/accounts/:id
func (h *AdminHandler) deleteAccount(c *gin.Context) {
	if err := h.accounts.Delete(c.Param("id")); err != nil {
		h.fail(c, err, MsgAccountDeleteFailed)
		return
	}
	NoContent(c)
}

// testMailbox 邮箱连通性测试
// POST /v1/admin/accounts/:id/mailbox/test
func (h *AdminHandler) testMailbox(c *gin.Context) {
	result, err := h.accounts.TestMailbox(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, MsgMailboxTestFailed)
		return
	}
	Success(c, result)
}

// adminVerifyRequest 管理端主动取码的请求体。
type adminVerifyRequest struct {
	Purpose string `json:"purpose"`
}

// requestCode 管理端主动触发取码（排查邮箱问题用）
// POST /v1/admin/accounts/:id/verify-code
func (h *AdminHandler) requestCode(c *gin.Context) {
	var req adminVerifyRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.verify.RequestCode(
		c.Request.Context(),
		c.Param("id"),
		domain.CodePurpose(req.Purpose),
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		h.fail(c, err, MsgCodeRequestFailed)
		return
	}
	Success(c, result)
}

// codeStatus 管理端查询取码进度
// GET /v1/admin/accounts/:id/verify-code-status?purpose=login
func (h *AdminHandler) codeStatus(c *gin.Context) {
	result, err := h.verify.PollStatus(c.Param("id"), domain.CodePurpose(c.Query("purpose")))
	if err != nil {
		h.fail(c, err, MsgCodeStatusFailed)
		return
	}
	Success(c, result)
}

// ========== 分享页管理 ==========

// createSharePage 创建分享页
// POST /v1/admin/share-pages
func (h *AdminHandler) createSharePage(c *gin.Context) {
	var input service.SharePageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	page, err := h.pages.Create(input)
	if err != nil {
		h.fail(c, err, MsgSharePageCreateFailed)
		return
	}
	Created(c, page)
}

// listSharePages 分享页列表
// GET /v1/admin/share-pages
func (h *AdminHandler) listSharePages(c *gin.Context) {
	pages, err := h.pages.List()
	if err != nil {
		h.fail(c, err, MsgSharePageListFailed)
		return
	}
	Success(c, pages)
}

// getSharePage 分享页详情
// GET /v1/admin/share-pages/:id
func (h *AdminHandler) getSharePage(c *gin.Context) {
	page, err := h.pages.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err, MsgSharePageListFailed)
		return
	}
	Success(c, page)
}

// deleteSharePage 删除分享页
// DELETE /v1/admin/share-pages/:id
func (h *AdminHandler) deleteSharePage(c *gin.Context) {
	if err := h.pages.Delete(c.Param("id")); err != nil {
		h.fail(c, err, MsgSharePageListFailed)
		return
	}
	NoContent(c)
}

// fail 将业务错误映射为响应。
func (h *AdminHandler) fail(c *gin.Context, err error, fallback string) {
	msg := GetErrorMessage(err)
	switch {
	case errors.Is(err, storage.ErrAccountNotFound),
		errors.Is(err, storage.ErrSharePageNotFound):
		NotFound(c, msg)
	case errors.Is(err, service.ErrUsernameRequired),
		errors.Is(err, mailfetch.ErrConfigIncomplete):
		BadRequest(c, msg)
	case errors.Is(err, service.ErrTooBusy):
		TooManyRequests(c, msg)
	default:
		h.logger.Error("admin endpoint failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		InternalError(c, fallback)
	}
}

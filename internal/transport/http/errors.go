package httptransport

import (
	"streamshare/backend/internal/auth"
	"streamshare/backend/internal/mailfetch"
	"streamshare/backend/internal/service"
	"streamshare/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 存储错误
	storage.ErrAccountNotFound:   "账号不存在",
	storage.ErrSharePageNotFound: "分享页不存在",
	storage.ErrCodeNotFound:      "暂无可用验证码",
	storage.ErrAdminNotFound:     "管理员不存在",
	storage.ErrAdminExists:       "管理员用户名已存在",

	// 取码错误
	mailfetch.ErrConfigIncomplete:  "邮箱配置不完整，无法自动获取验证码",
	mailfetch.ErrAlreadyInProgress: "验证码获取中，请稍后查询",

	// 分享页错误
	service.ErrPasswordRequired: "该分享页需要访问密码",
	service.ErrPasswordMismatch: "访问密码错误",
	service.ErrPageNotActive:    "分享页已停用",
	service.ErrPageExpired:      "分享页已过期",
	service.ErrAlreadyActivated: "分享页已激活，有效期不会顺延",
	service.ErrTooBusy:          "系统繁忙，请稍后重试",

	// 账号错误
	service.ErrUsernameRequired: "账号用户名不能为空",

	// 认证错误
	auth.ErrInvalidCredentials: "用户名或密码错误",
	auth.ErrAdminInactive:      "管理员账号已被禁用",
	auth.ErrWeakPassword:       "密码长度至少 8 位",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgRequestBodyEmpty = "请求体不能为空"

	// 认证相关
	MsgAuthRequired = "需要登录认证"
	MsgTokenInvalid = "无效的访问令牌"

	// 业务相关
	MsgAccountCreateFailed   = "创建账号失败"
	MsgAccountUpdateFailed   = "更新账号失败"
	MsgAccountDeleteFailed   = "删除账号失败"
	MsgAccountListFailed     = "获取账号列表失败"
	MsgSharePageCreateFailed = "创建分享页失败"
	MsgSharePageListFailed   = "获取分享页列表失败"
	MsgMailboxTestFailed     = "邮箱连通性测试失败"
	MsgCodeRequestFailed     = "验证码请求失败"
	MsgCodeStatusFailed      = "查询验证码状态失败"
	MsgWebSocketFailed       = "建立实时推送连接失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)

package mailfetch

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigIncomplete 邮箱配置未启用或缺少接口地址，直接拒绝取件
	ErrConfigIncomplete = errors.New("mailbox config incomplete or auto fetch disabled")
	// ErrAlreadyInProgress 同一账号同一用途的取件已在进行中
	ErrAlreadyInProgress = errors.New("acquisition already in progress")
	// ErrTransportTimeout 单次取件调用超时
	ErrTransportTimeout = errors.New("transport timeout")
	// ErrTransportRefused 连接层失败（对端不可达），轮询应立即终止
	ErrTransportRefused = errors.New("transport refused")
	// ErrTransportBadStatus 接口返回非成功状态码
	ErrTransportBadStatus = errors.New("transport bad status")
)

// BadStatusError 携带具体状态码的接口错误。
type BadStatusError struct {
	StatusCode int
}

func (e *BadStatusError) Error() string {
	return fmt.Sprintf("transport bad status: %d", e.StatusCode)
}

// Unwrap 使 errors.Is(err, ErrTransportBadStatus) 成立。
func (e *BadStatusError) Unwrap() error { return ErrTransportBadStatus }

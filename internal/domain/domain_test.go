package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePurpose(t *testing.T) {
	assert.Equal(t, PurposeLogin, NormalizePurpose("login"))
	assert.Equal(t, PurposeDeviceTransfer, NormalizePurpose("device-transfer"))
	assert.Equal(t, PurposeGeneric, NormalizePurpose("generic"))
	// 未知值按登录处理
	assert.Equal(t, PurposeLogin, NormalizePurpose(""))
	assert.Equal(t, PurposeLogin, NormalizePurpose("signup"))

	// 外部传入的用途在边界处就是 CodePurpose 类型
	raw := CodePurpose("device-transfer")
	assert.Equal(t, PurposeDeviceTransfer, NormalizePurpose(raw))
}

func TestVerificationCodeUsable(t *testing.T) {
	now := time.Now().UTC()

	t.Run("未使用且未过期", func(t *testing.T) {
		code := VerificationCode{ExpiresAt: now.Add(time.Minute)}
		assert.True(t, code.Usable(now))
	})

	t.Run("已使用不可用", func(t *testing.T) {
		code := VerificationCode{Consumed: true, ExpiresAt: now.Add(time.Minute)}
		assert.False(t, code.Usable(now))
	})

	t.Run("已过期不可用", func(t *testing.T) {
		code := VerificationCode{ExpiresAt: now.Add(-time.Second)}
		assert.False(t, code.Usable(now))
	})
}

func TestMailboxConfigFetchReady(t *testing.T) {
	assert.True(t, MailboxConfig{AutoFetch: true, Endpoint: "http://mail.example.com"}.FetchReady())
	assert.False(t, MailboxConfig{AutoFetch: false, Endpoint: "http://mail.example.com"}.FetchReady())
	assert.False(t, MailboxConfig{AutoFetch: true, Endpoint: "   "}.FetchReady())
}

func TestResponseShapeWithDefaults(t *testing.T) {
	t.Run("空配置补齐全部默认值", func(t *testing.T) {
		shape := ResponseShape{}.WithDefaults()
		assert.Equal(t, DefaultResponseShape(), shape)
	})

	t.Run("已配置字段保持原样", func(t *testing.T) {
		shape := ResponseShape{ListPath: "messages", BodyField: "text"}.WithDefaults()
		assert.Equal(t, "messages", shape.ListPath)
		assert.Equal(t, "text", shape.BodyField)
		assert.Equal(t, "subject", shape.SubjectField)
		assert.Equal(t, "from", shape.SenderField)
	})
}

func TestAccountActiveProfile(t *testing.T) {
	account := Account{Profiles: []Profile{
		{Position: 1, Status: 1},
		{Position: 2, Status: 0},
	}}

	assert.NotNil(t, account.ActiveProfile(1))
	// 停用的车位视同不存在
	assert.Nil(t, account.ActiveProfile(2))
	assert.Nil(t, account.ActiveProfile(3))
}

func TestDefaultProfiles(t *testing.T) {
	profiles := DefaultProfiles(3)
	assert.Len(t, profiles, 3)
	for i, p := range profiles {
		assert.Equal(t, i+1, p.Position)
		assert.Equal(t, 1, p.Status)
	}
}

func TestSharePagePassword(t *testing.T) {
	t.Run("未设置密码恒通过", func(t *testing.T) {
		page := SharePage{}
		assert.False(t, page.RequiresPassword())
		assert.True(t, page.CheckPassword(""))
		assert.True(t, page.CheckPassword("anything"))
	})

	t.Run("设置了密码要求精确匹配", func(t *testing.T) {
		page := SharePage{AccessPassword: "open-sesame"}
		assert.True(t, page.RequiresPassword())
		assert.True(t, page.CheckPassword("open-sesame"))
		assert.False(t, page.CheckPassword("wrong"))
	})
}

func TestSharePageWithinWindow(t *testing.T) {
	now := time.Now().UTC()
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)

	t.Run("窗口内", func(t *testing.T) {
		page := SharePage{StartTime: &start, EndTime: &end}
		assert.True(t, page.WithinWindow(now))
	})

	t.Run("早于开始时间", func(t *testing.T) {
		page := SharePage{StartTime: &end}
		assert.False(t, page.WithinWindow(now))
	})

	t.Run("晚于结束时间", func(t *testing.T) {
		page := SharePage{EndTime: &start}
		assert.False(t, page.WithinWindow(now))
	})

	t.Run("未激活时无窗口限制", func(t *testing.T) {
		page := SharePage{}
		assert.True(t, page.WithinWindow(now))
	})
}

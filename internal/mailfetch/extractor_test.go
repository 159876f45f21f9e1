package mailfetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCode(t *testing.T) {
	t.Run("独立6位数字优先", func(t *testing.T) {
		code, ok := ExtractCode("Your Netflix verification code", "Use 482913 to sign in")
		assert.True(t, ok)
		assert.Equal(t, "482913", code)
	})

	t.Run("多个6位数字取首个出现", func(t *testing.T) {
		code, ok := ExtractCode("", "first 111111 then 222222")
		assert.True(t, ok)
		assert.Equal(t, "111111", code)
	})

	t.Run("规则一先于规则二", func(t *testing.T) {
		// 同时存在独立 6 位数字和短语模式时，独立 6 位数字获胜
		code, ok := ExtractCode("", "123456 somewhere and code: 7890")
		assert.True(t, ok)
		assert.Equal(t, "123456", code)
	})

	t.Run("短语模式提取4到8位数字", func(t *testing.T) {
		code, ok := ExtractCode("", "your verification code: 7890")
		assert.True(t, ok)
		assert.Equal(t, "7890", code)
	})

	t.Run("同一短语多次命中时优先6位", func(t *testing.T) {
		code, ok := ExtractCode("", "code: 54321 or maybe code: 778899")
		assert.True(t, ok)
		assert.Equal(t, "778899", code)
	})

	t.Run("中文短语模式", func(t *testing.T) {
		code, ok := ExtractCode("", "您的验证码：4721，请勿泄露")
		assert.True(t, ok)
		assert.Equal(t, "4721", code)
	})

	t.Run("主题与正文拼接后匹配", func(t *testing.T) {
		code, ok := ExtractCode("code: 9876", "nothing here")
		assert.True(t, ok)
		assert.Equal(t, "9876", code)
	})

	t.Run("无数字时未命中", func(t *testing.T) {
		code, ok := ExtractCode("Welcome to Netflix", "enjoy your shows")
		assert.False(t, ok)
		assert.Empty(t, code)
	})

	t.Run("长数字串不算独立6位", func(t *testing.T) {
		// 12345678 不满足 \b\d{6}\b，也没有短语前缀
		code, ok := ExtractCode("", "order number 123456789012")
		assert.False(t, ok)
		assert.Empty(t, code)
	})
}

package mailfetch

import (
	"regexp"
	"strings"
)

// 提取优先级固定：独立 6 位数字 > 短语模式后跟 4-8 位数字。
// 6 位数字是验证码的统计主流格式，首个出现者即为答案；
// 短语模式按下面的顺序逐个尝试，同一模式命中多处时优先取 6 位。
var (
	reSixDigit = regexp.MustCompile(`\b\d{6}\b`)

	// 短语顺序是刻意的平局规则，调整顺序会改变歧义文本的提取结果
	phrasePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)verification code[:：\s]*(\d{4,8})`),
		regexp.MustCompile(`(?i)security code[:：\s]*(\d{4,8})`),
		regexp.MustCompile(`(?i)\bcode[:：\s]*(\d{4,8})`),
		regexp.MustCompile(`(?i)your code is[:：\s]*(\d{4,8})`),
		regexp.MustCompile(`(?i)enter this code[:：\s]*(\d{4,8})`),
		regexp.MustCompile(`(?i)use this code[:：\s]*(\d{4,8})`),
		regexp.MustCompile(`验证码[：:\s]*(\d{4,8})`),
		regexp.MustCompile(`安全代码[：:\s]*(\d{4,8})`),
		regexp.MustCompile(`代码[：:\s]*(\d{4,8})`),
	}
)

// ExtractCode 从邮件主题与正文的拼接文本中提取最可能的验证码。
//
// 返回提取结果与是否命中。未命中不是错误，编排器会继续轮询。
func ExtractCode(subject, body string) (string, bool) {
	text := subject + " " + body

	// 规则一：首个独立 6 位数字
	if m := reSixDigit.FindString(text); m != "" {
		return m, true
	}

	// 规则二：短语模式后跟 4-8 位数字，同一模式内优先 6 位
	for _, pattern := range phrasePatterns {
		matches := pattern.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		codes := make([]string, 0, len(matches))
		for _, m := range matches {
			if len(m) > 1 && m[1] != "" {
				codes = append(codes, m[1])
			}
		}
		if len(codes) == 0 {
			continue
		}
		for _, code := range codes {
			if len(code) == 6 {
				return code, true
			}
		}
		return codes[0], true
	}

	return "", false
}

// containsFold 大小写不敏感的子串判断。
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

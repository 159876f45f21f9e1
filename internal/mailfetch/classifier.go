package mailfetch

import (
	"strings"

	"streamshare/backend/internal/domain"
)

// defaultServiceDomains 目标服务的已知发件人域名/地址。
var defaultServiceDomains = []string{
	"netflix.com",
	"noreply@netflix.com",
	"info@netflix.com",
	"help@netflix.com",
	"@account.netflix.com",
}

// defaultKeywords 主题/正文中的主题关键词（含中文本地化）。
var defaultKeywords = []string{
	"netflix",
	"verification",
	"verify",
	"code",
	"security",
	"account",
	"验证",
	"验证码",
	"安全",
	"账户",
}

// Classifier 判断一封候选邮件是否来自目标服务。
type Classifier struct {
	domains  []string
	keywords []string
}

// NewClassifier 创建分类器。传入空列表时使用内置默认值。
func NewClassifier(domains, keywords []string) *Classifier {
	if len(domains) == 0 {
		domains = defaultServiceDomains
	}
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}
	return &Classifier{domains: domains, keywords: keywords}
}

// IsRelevant 判定邮件是否与目标服务相关。
//
// 发件人命中已知域名直接通过；否则要求主题/正文含关键词
// 且能够提取出验证码。单靠关键词过于宽松（大量无关事务邮件
// 同样包含这些词），所以非域名命中的邮件以提取成功为准入门槛。
func (c *Classifier) IsRelevant(msg domain.CandidateMessage) bool {
	sender := strings.ToLower(msg.Sender)
	for _, d := range c.domains {
		if strings.Contains(sender, d) {
			return true
		}
	}

	hasKeyword := false
	for _, kw := range c.keywords {
		if containsFold(msg.Subject, kw) || containsFold(msg.Body, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return false
	}

	_, ok := ExtractCode(msg.Subject, msg.Body)
	return ok
}

package domain

import (
	"encoding/json"
	"time"
)

// CandidateMessage 表示一次取件中拿到的一封候选邮件。
//
// 仅存在于单次取件流程内，不落库；Raw 保留原始载荷供诊断接口回显。
type CandidateMessage struct {
	Subject string          `json:"subject"`
	Body    string          `json:"body"`
	Sender  string          `json:"sender"`
	Date    time.Time       `json:"date"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

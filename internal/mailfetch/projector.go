package mailfetch

import (
	"encoding/json"
	"strings"
	"time"

	"streamshare/backend/internal/domain"
)

// ProjectMessages 按响应解析规则把接口返回体投影为候选邮件列表。
//
// 纯数据驱动：点号路径不命中时退化为把响应体整体当作数组或单元素，
// 字段缺失时退化为空串/当前时间，任何形态的残缺配置都不会抛错。
func ProjectMessages(body []byte, shape domain.ResponseShape) []domain.CandidateMessage {
	shape = shape.WithDefaults()

	var root interface{}
	if err := json.Unmarshal(body, &root); err != nil {
		return nil
	}

	list := resolveList(root, shape.ListPath)
	messages := make([]domain.CandidateMessage, 0, len(list))
	for _, item := range list {
		messages = append(messages, projectOne(item, shape))
	}
	return messages
}

// resolveList 沿点号路径定位邮件数组。
// 路径不命中时：根本身是数组则直接用，否则包装为单元素数组。
func resolveList(root interface{}, path string) []interface{} {
	if v, ok := lookupPath(root, path); ok {
		if arr, ok := v.([]interface{}); ok {
			return arr
		}
	}
	if arr, ok := root.([]interface{}); ok {
		return arr
	}
	return []interface{}{root}
}

// lookupPath 逐段下钻嵌套对象，任一段缺失即失败。
func lookupPath(v interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	current := v
	for _, key := range strings.Split(path, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// projectOne 把单个元素投影为候选邮件，保留原始载荷供诊断。
func projectOne(item interface{}, shape domain.ResponseShape) domain.CandidateMessage {
	msg := domain.CandidateMessage{
		Subject: stringAt(item, shape.SubjectField),
		Body:    stringAt(item, shape.BodyField),
		Sender:  stringAt(item, shape.SenderField),
		Date:    dateAt(item, shape.DateField),
	}
	if raw, err := json.Marshal(item); err == nil {
		msg.Raw = raw
	}
	return msg
}

// stringAt 取字段的字符串值，支持字段名本身也是点号路径。
func stringAt(item interface{}, field string) string {
	v, ok := lookupPath(item, field)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// dateLayouts 常见邮件接口的时间格式，按出现频率排序。
var dateLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// dateAt 取字段的时间值，解析失败时退化为当前时间。
func dateAt(item interface{}, field string) time.Time {
	v, ok := lookupPath(item, field)
	if !ok {
		return time.Now().UTC()
	}
	switch val := v.(type) {
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return t
			}
		}
	case float64:
		// Unix 秒级时间戳
		if val > 0 {
			return time.Unix(int64(val), 0).UTC()
		}
	}
	return time.Now().UTC()
}

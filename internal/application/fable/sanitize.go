package fable

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFieldRunes 自由文本字段进入 prompt 前的长度上限
const MaxFieldRunes = 200

var (
	urlPattern   = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)
	emailPattern = regexp.MustCompile(`[\w.-]+@[\w.-]+\.[A-Za-z]{2,}`)
	// 截断后残留在末尾的 URL 前缀，如 "www." 或 "https:/"
	danglingURLPattern = regexp.MustCompile(`(?i)(https?:/{0,2}|www\.)$`)
)

// Sanitize 清理用户输入：截断到 MaxFieldRunes，去掉 URL 与邮箱
//
// 删除后可能拼出新的匹配（例如 "htthttp://xtp://..."），循环到不再变化为止。
func Sanitize(input string) string {
	s := TruncateByRunes(strings.TrimSpace(input), MaxFieldRunes)
	for {
		next := emailPattern.ReplaceAllString(urlPattern.ReplaceAllString(s, ""), "")
		next = danglingURLPattern.ReplaceAllString(strings.TrimRightFunc(next, unicode.IsSpace), "")
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}

// TruncateByRunes 按字符截断
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

package sender

import (
	"strings"
)

// NormalizePhone 规范化电话号码为纯数字形式
// "010-1234-5678" 和 "01012345678" 视为同一号码，格式差异不能绕过限流
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

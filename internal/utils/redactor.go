package utils

import (
	"net/http"
	"strings"
)

// 整体脱敏的头部
var sensitiveHeaders = map[string]bool{
	"Authorization":       true,
	"Proxy-Authorization": true,
	"Cookie":              true,
}

// 名称含以下片段的自定义头部同样视为敏感
var sensitiveFragments = []string{"token", "key", "secret", "password", "credential", "session"}

// HeaderRedactor 日志输出前对抓取请求头脱敏
type HeaderRedactor struct{}

// NewHeaderRedactor 创建头部脱敏器
func NewHeaderRedactor() *HeaderRedactor {
	return &HeaderRedactor{}
}

// IsSensitiveHeader 判断头部是否需要脱敏
func (hr *HeaderRedactor) IsSensitiveHeader(name string) bool {
	canonical := http.CanonicalHeaderKey(name)
	if sensitiveHeaders[canonical] {
		return true
	}
	lower := strings.ToLower(canonical)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// RedactHeaderValue 脱敏单个头部值
//   - Authorization类: 保留认证方案, 如 "Bearer ***"
//   - Cookie: 保留cookie名称, 如 "sid=***; theme=***"
//   - 其他敏感头部: 长值保留首尾4个字符
func (hr *HeaderRedactor) RedactHeaderValue(name, value string) string {
	if !hr.IsSensitiveHeader(name) {
		return value
	}

	switch http.CanonicalHeaderKey(name) {
	case "Authorization", "Proxy-Authorization":
		if scheme, _, ok := strings.Cut(value, " "); ok {
			return scheme + " ***"
		}
		return "***"
	case "Cookie":
		return redactCookies(value)
	}

	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}

// redactCookies 逐个cookie隐藏值
func redactCookies(value string) string {
	parts := strings.Split(value, ";")
	for i, part := range parts {
		name, _, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			parts[i] = "***"
			continue
		}
		parts[i] = name + "=***"
	}
	return strings.Join(parts, "; ")
}

// Redact 返回脱敏后的头部 (每个头部只取第一个值)
func (hr *HeaderRedactor) Redact(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		result[name] = hr.RedactHeaderValue(name, values[0])
	}
	return result
}

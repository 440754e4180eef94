package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// Directive CSP指令名称
type Directive string

const (
	DirectiveScript  Directive = "script-src"
	DirectiveStyle   Directive = "style-src"
	DirectiveFont    Directive = "font-src"
	DirectiveImg     Directive = "img-src"
	DirectiveConnect Directive = "connect-src"
	DirectiveDefault Directive = "default-src"
)

// KnownDirectives 分类器可产生的全部指令
var KnownDirectives = []Directive{
	DirectiveScript,
	DirectiveStyle,
	DirectiveFont,
	DirectiveImg,
	DirectiveConnect,
	DirectiveDefault,
}

// Valid 是否为已知指令
func (d Directive) Valid() bool {
	for _, known := range KnownDirectives {
		if d == known {
			return true
		}
	}
	return false
}

// SelfSource 每个出现的指令都必须包含的自引用来源
const SelfSource = "'self'"

// CSPPolicy CSP策略: 指令名 -> 已排序的来源列表
//
// 不变量:
//   - 出现的每个指令都包含 'self'
//   - 来源列表按字典序排序
//   - 没有匹配URL的指令不会出现
type CSPPolicy map[string][]string

// Directives 返回按字典序排序的指令名
func (p CSPPolicy) Directives() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HeaderValue 渲染为 Content-Security-Policy 头部值
// 格式: "script-src 'self' cdn.x.com; img-src 'self' img.x.com;"
func (p CSPPolicy) HeaderValue() string {
	segments := make([]string, 0, len(p))
	for _, directive := range p.Directives() {
		parts := append([]string{directive}, p[directive]...)
		segments = append(segments, strings.Join(parts, " ")+";")
	}
	return strings.Join(segments, " ")
}

// ToJSON 序列化为JSON (2空格缩进,键有序)
func (p CSPPolicy) ToJSON() ([]byte, error) {
	if p == nil {
		p = CSPPolicy{}
	}
	return json.MarshalIndent(p, "", "  ")
}

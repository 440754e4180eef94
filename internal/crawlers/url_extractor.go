package crawlers

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/CSPcrawl/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// 原始内容中绝对URL的匹配模式, 遇到任意Unicode空白(含NBSP、全角空格)或引号、尖括号即结束
var absoluteURLPattern = regexp.MustCompile(`https?://[^\s\p{Z}\x{0085}"'<>]+`)

// 站内链接所在的标签及属性
var linkAttributes = map[string]string{
	"a":      "href",
	"link":   "href",
	"script": "src",
	"img":    "src",
	"iframe": "src",
}

// LinkExtractor 链接提取器
// 职责: 从页面内容中提取站内链接(用于继续爬取)和外部资源URL(用于生成策略)
type LinkExtractor struct {
	// 外部主机匹配模式 (contains|exact)
	externalMatch string
}

// NewLinkExtractor 创建链接提取器实例, 空模式按 contains 处理
func NewLinkExtractor(externalMatch string) *LinkExtractor {
	if externalMatch == "" {
		externalMatch = models.ExternalMatchContains
	}
	return &LinkExtractor{externalMatch: externalMatch}
}

// Extract 同时提取站内链接和外部URL
func (e *LinkExtractor) Extract(content, pageURL, originDomain string) (internal, external URLSet) {
	return ExtractInternalLinks(content, pageURL, originDomain),
		e.ExtractExternalURLs(content, originDomain)
}

// ExtractInternalLinks 从HTML中提取站内链接
// 扫描 a/link 的href 与 script/img/iframe 的src,相对于pageURL解析后
// 仅保留主机(含端口)与originDomain完全一致的链接,并去掉查询串和片段
// 无法解析的内容返回空集合
func ExtractInternalLinks(content, pageURL, originDomain string) URLSet {
	links := NewURLSet()

	base, err := url.Parse(pageURL)
	if err != nil {
		log.Debug().Err(err).Str("url", pageURL).Msg("解析页面URL失败")
		return links
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		log.Debug().Err(err).Str("url", pageURL).Msg("解析HTML失败")
		return links
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attrName, ok := linkAttributes[n.Data]; ok {
				for _, attr := range n.Attr {
					if attr.Key != attrName {
						continue
					}
					if link, ok := resolveInternal(base, attr.Val, originDomain); ok {
						links.Add(link)
					}
					break
				}
			}
		}

		// 递归处理子节点
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links
}

// resolveInternal 解析并规范化站内链接
func resolveInternal(base *url.URL, ref, originDomain string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}

	linkURL, err := url.Parse(ref)
	if err != nil {
		return "", false
	}

	resolved := base.ResolveReference(linkURL)
	if resolved.Host != originDomain {
		return "", false
	}

	return canonicalPageURL(resolved), true
}

// canonicalPageURL 规范化为 scheme://host/path, 去掉查询串和片段, 空路径记为 "/"
func canonicalPageURL(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return u.Scheme + "://" + u.Host + path
}

// ExtractExternalURLs 从原始内容中提取外部URL
// 对整段内容做正则扫描(不限于HTML属性),命中的URL原样保留
// 只丢弃主机为空的匹配, 路径中的非法转义(如 100%.png)不影响收集
func (e *LinkExtractor) ExtractExternalURLs(content, originDomain string) URLSet {
	urls := NewURLSet()
	for _, match := range absoluteURLPattern.FindAllString(content, -1) {
		if urls.Has(match) {
			continue
		}
		host := urlHost(match)
		if host == "" || e.isOriginHost(host, originDomain) {
			continue
		}
		urls.Add(match)
	}
	return urls
}

// urlHost 取绝对URL "://" 之后到首个 / ? # 之前的主机部分(含端口,去掉用户信息)
// 不校验百分号转义和主机字符, url.Parse 拒绝的URL也能取到主机
func urlHost(rawURL string) string {
	i := strings.Index(rawURL, "://")
	if i < 0 {
		return ""
	}
	authority := rawURL[i+len("://"):]
	if end := strings.IndexAny(authority, "/?#"); end >= 0 {
		authority = authority[:end]
	}
	if at := strings.LastIndex(authority, "@"); at >= 0 {
		authority = authority[at+1:]
	}
	return authority
}

// isOriginHost 判断主机是否属于目标站点
// contains 模式下目标域名是主机的子串即视为站内, 因此 notexample.com 也会被排除
func (e *LinkExtractor) isOriginHost(host, originDomain string) bool {
	if e.externalMatch == models.ExternalMatchExact {
		return host == originDomain
	}
	return strings.Contains(host, originDomain)
}

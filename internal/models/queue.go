package models

// URLItem 表示队列中的一个URL项
type URLItem struct {
	// URL 规范化后的站内URL
	URL string

	// Depth 广度优先层级
	//   - 0: 种子URL
	//   - 1: 从种子页面发现的链接
	//   - 以此类推...
	Depth int

	// SourceURL 发现此URL的页面(种子为空)
	SourceURL string
}

package models

import (
	"encoding/json"
	"time"
)

// PageResult 单个页面的抓取结果
type PageResult struct {
	URL           string `json:"url"`
	FinalURL      string `json:"final_url,omitempty"` // 重定向后的URL
	Depth         int    `json:"depth"`
	StatusCode    int    `json:"status_code,omitempty"`
	InternalLinks int    `json:"internal_links"` // 页面内的站内链接数
	ExternalURLs  int    `json:"external_urls"`  // 页面内的外部URL数
}

// FailedPage 抓取失败的页面
type FailedPage struct {
	URL       string `json:"url"`
	Depth     int    `json:"depth"`
	ErrorType string `json:"error_type"` // timeout, network_error, http_status, canceled
	ErrorMsg  string `json:"error_msg"`
	Attempts  int    `json:"attempts"`
}

// CrawlReport 爬取报告
type CrawlReport struct {
	// 任务信息
	Task *CrawlTask `json:"task"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// 统计信息
	Stats TaskStats `json:"stats"`

	// 生成的策略
	Policy      CSPPolicy `json:"policy"`
	HeaderValue string    `json:"header_value"`

	// 页面明细
	Pages       []PageResult `json:"pages"`
	FailedPages []FailedPage `json:"failed_pages"`

	// 外部资源URL(排序)
	ExternalURLs []string `json:"external_urls"`

	// 输出文件
	OutputFiles []string `json:"output_files"`
}

// ToJSON 序列化为JSON
func (r *CrawlReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *CrawlReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}

package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 待执行
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusFailed    TaskStatus = "failed"    // 失败
)

// 外部URL主机匹配模式
const (
	// ExternalMatchContains 目标域名是主机名的子串即视为站内(默认,宽松)
	ExternalMatchContains = "contains"
	// ExternalMatchExact 仅主机名与目标域名完全一致时视为站内
	ExternalMatchExact = "exact"
)

// TaskStats 任务统计
type TaskStats struct {
	VisitedPages  int     `json:"visited_pages"`  // 已尝试抓取的页面数
	FailedPages   int     `json:"failed_pages"`   // 抓取失败的页面数
	InternalLinks int     `json:"internal_links"` // 发现的站内链接数(去重)
	ExternalURLs  int     `json:"external_urls"`  // 发现的外部资源URL数(去重)
	Directives    int     `json:"directives"`     // 生成的CSP指令数
	Duration      float64 `json:"duration"`       // 总耗时(秒)
}

// CrawlConfig 爬取配置
type CrawlConfig struct {
	MaxPages           int              `json:"max_pages" mapstructure:"max_pages"`                         // 最大抓取页面数 (默认:25)
	DelayMillis        int              `json:"delay_ms" mapstructure:"delay_ms"`                           // 两次抓取间的礼貌延迟(毫秒) (默认:500)
	Timeout            int              `json:"timeout" mapstructure:"timeout"`                             // 单次请求超时(秒) (默认:15)
	Workers            int              `json:"workers" mapstructure:"workers"`                             // 并发抓取数 (默认:1,严格顺序)
	Retries            int              `json:"retries" mapstructure:"retries"`                             // 失败重试次数 (默认:0)
	RetryBackoffMillis int              `json:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`           // 重试退避基数(毫秒)
	MaxBodySizeMB      int              `json:"max_body_size_mb" mapstructure:"max_body_size_mb"`           // 响应体大小上限(MB)
	ExternalMatch      string           `json:"external_match" mapstructure:"external_match"`               // 外部主机匹配模式 (contains|exact)
	ShowProgress       bool             `json:"show_progress" mapstructure:"show_progress"`                 // 是否显示进度条
	CPULoadThreshold   int              `json:"cpu_load_threshold" mapstructure:"cpu_load_threshold"`       // CPU负载阈值(%)
	SafetyReserveMemMB int              `json:"safety_reserve_mem_mb" mapstructure:"safety_reserve_mem_mb"` // 安全保留内存(MB)
	ExtraRules         []ClassifierRule `json:"extra_rules,omitempty" mapstructure:"extra_rules"`           // 附加分类规则, 优先于内置规则
}

// ClassifierRule 附加分类规则: URL匹配Pattern时归入Directive
type ClassifierRule struct {
	Pattern   string `json:"pattern" mapstructure:"pattern"`
	Directive string `json:"directive" mapstructure:"directive"`
}

// DefaultCrawlConfig 默认爬取配置
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		MaxPages:           25,
		DelayMillis:        500,
		Timeout:            15,
		Workers:            1,
		Retries:            0,
		RetryBackoffMillis: 500,
		MaxBodySizeMB:      10,
		ExternalMatch:      ExternalMatchContains,
		ShowProgress:       true,
		CPULoadThreshold:   90,
		SafetyReserveMemMB: 256,
	}
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.MaxPages < 1 || c.MaxPages > 10000 {
		return fmt.Errorf("最大页面数必须在1-10000之间")
	}
	if c.DelayMillis < 0 {
		return fmt.Errorf("抓取延迟不能为负数")
	}
	if c.Timeout < 1 || c.Timeout > 300 {
		return fmt.Errorf("超时时间必须在1-300秒之间")
	}
	if c.Workers < 1 || c.Workers > 32 {
		return fmt.Errorf("并发数必须在1-32之间")
	}
	if c.Retries < 0 || c.Retries > 5 {
		return fmt.Errorf("重试次数必须在0-5之间")
	}
	if c.RetryBackoffMillis < 0 {
		return fmt.Errorf("重试退避时间不能为负数")
	}
	if c.MaxBodySizeMB < 0 {
		return fmt.Errorf("响应体大小上限不能为负数")
	}
	switch c.ExternalMatch {
	case "", ExternalMatchContains, ExternalMatchExact:
	default:
		return fmt.Errorf("无效的外部匹配模式: %s (有效值: contains, exact)", c.ExternalMatch)
	}
	for i, rule := range c.ExtraRules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("附加分类规则[%d]无效: %w", i, err)
		}
	}
	return nil
}

// Validate 验证规则的正则与指令名
func (r ClassifierRule) Validate() error {
	if r.Pattern == "" {
		return fmt.Errorf("匹配模式不能为空")
	}
	if _, err := regexp.Compile(r.Pattern); err != nil {
		return fmt.Errorf("匹配模式无效 %q: %w", r.Pattern, err)
	}
	if !Directive(r.Directive).Valid() {
		return fmt.Errorf("未知的CSP指令: %s", r.Directive)
	}
	return nil
}

// Delay 礼貌延迟
func (c *CrawlConfig) Delay() time.Duration {
	return time.Duration(c.DelayMillis) * time.Millisecond
}

// RequestTimeout 单次请求超时
func (c *CrawlConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// CrawlTask 爬取任务
type CrawlTask struct {
	// 基本信息
	ID          string     `json:"id"`                     // 任务唯一ID (UUID)
	TargetURL   string     `json:"target_url"`             // 种子URL
	Domain      string     `json:"domain"`                 // 目标主机(host:port)
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	StartedAt   *time.Time `json:"started_at,omitempty"`   // 开始时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 完成时间

	// 配置参数
	Config CrawlConfig `json:"config"`

	// 执行状态
	Status TaskStatus `json:"status"`

	// 统计信息
	Stats TaskStats `json:"stats"`

	// 错误信息
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewCrawlTask 创建新任务
func NewCrawlTask(targetURL string, config CrawlConfig) (*CrawlTask, error) {
	if err := ValidateURL(targetURL); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	parsed, _ := url.Parse(targetURL)

	return &CrawlTask{
		ID:        generateID(),
		TargetURL: targetURL,
		Domain:    parsed.Host,
		CreatedAt: time.Now(),
		Config:    config,
		Status:    TaskStatusPending,
	}, nil
}

// Start 标记任务开始
func (t *CrawlTask) Start() {
	now := time.Now()
	t.StartedAt = &now
	t.Status = TaskStatusRunning
}

// Finish 标记任务结束, err为nil表示成功
func (t *CrawlTask) Finish(stats TaskStats, err error) {
	now := time.Now()
	t.CompletedAt = &now
	t.Stats = stats
	if err != nil {
		t.Status = TaskStatusFailed
		t.ErrorMessage = err.Error()
		return
	}
	t.Status = TaskStatusCompleted
}

// ToJSON 序列化为JSON
func (t *CrawlTask) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

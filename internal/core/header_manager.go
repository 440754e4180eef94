package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/CSPcrawl/internal/config"
	"github.com/RecoveryAshes/CSPcrawl/internal/models"
	"github.com/RecoveryAshes/CSPcrawl/internal/utils"
)

const (
	// DefaultUserAgent 默认User-Agent
	DefaultUserAgent = "Mozilla/5.0 (compatible; CSPcrawl/1.0)"
)

// HeaderManager 管理HTTP请求头部的生命周期
// 实现 HeaderProvider 接口, 可被多个抓取goroutine并发调用
type HeaderManager struct {
	// defaults 系统默认头部 (硬编码)
	defaults http.Header

	// config 从配置文件加载的头部
	config http.Header

	// cli 从命令行参数解析的头部
	cli http.Header

	validator    *utils.HeaderValidator
	redactor     *utils.HeaderRedactor
	configLoader *config.HeaderConfigLoader

	// 配置只加载并验证一次, 结果缓存
	once    sync.Once
	merged  http.Header
	loadErr error
}

// NewHeaderManager 创建头部管理器
// 参数:
//   - configFile: 请求头配置文件路径 (如为空则使用默认路径)
//   - cliHeaders: 命令行传递的头部字符串列表
//
// 返回:
//   - *HeaderManager: 头部管理器实例
//   - error: 如果命令行参数解析失败
func NewHeaderManager(configFile string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults:     getDefaultHeaders(),
		config:       make(http.Header),
		cli:          make(http.Header),
		validator:    utils.NewHeaderValidator(),
		redactor:     utils.NewHeaderRedactor(),
		configLoader: config.NewHeaderConfigLoader(configFile),
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	}

	return hm, nil
}

// getDefaultHeaders 返回系统默认头部
func getDefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{DefaultUserAgent},
		"Accept":          []string{"text/html,application/xhtml+xml,*/*;q=0.8"},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

// load 加载配置文件并验证所有来源
func (hm *HeaderManager) load() {
	headerConfig, err := hm.configLoader.LoadConfig()
	if err != nil {
		utils.Errorf("加载HTTP头部配置失败: %v", err)
		hm.loadErr = err
		return
	}

	for name, value := range headerConfig.Headers {
		hm.config.Set(name, value)
	}
	if len(headerConfig.Headers) > 0 {
		utils.Debugf("成功加载%d个HTTP头部配置: %v", len(headerConfig.Headers), hm.redactor.Redact(hm.config))
	}

	// 验证顺序: 默认 → 配置 → 命令行
	for _, source := range []struct {
		name    string
		headers http.Header
	}{
		{"默认", hm.defaults},
		{"配置文件", hm.config},
		{"命令行", hm.cli},
	} {
		if err := hm.validator.Validate(source.headers); err != nil {
			utils.Errorf("%s头部验证失败: %v", source.name, err)
			hm.loadErr = err
			return
		}
	}

	hm.merged = hm.mergeHeaders()
	utils.Debugf("所有HTTP头部验证通过")
}

// mergeHeaders 按优先级合并头部 (default < config < cli)
func (hm *HeaderManager) mergeHeaders() http.Header {
	result := make(http.Header)
	for _, source := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range source {
			result[name] = values
		}
	}
	return result
}

// Validate 加载并验证全部头部, 用于在爬取前尽早发现配置错误
func (hm *HeaderManager) Validate() error {
	hm.once.Do(hm.load)
	return hm.loadErr
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志)
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	if err := hm.Validate(); err != nil {
		return hm.redactor.Redact(hm.mergeHeaders())
	}
	return hm.redactor.Redact(hm.merged)
}

// GetHeaders 实现 HeaderProvider 接口
// 返回合并后头部的副本
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	return hm.merged.Clone(), nil
}

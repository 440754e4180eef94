package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/RecoveryAshes/CSPcrawl/internal/crawlers"
	"github.com/RecoveryAshes/CSPcrawl/internal/models"
	"github.com/RecoveryAshes/CSPcrawl/internal/utils"
)

// OutputOptions 可选输出文件
type OutputOptions struct {
	WriteReport   bool // crawl_report.json
	WriteMarkdown bool // csp_report.md
}

// Crawler 主爬取器协调器
// 负责: 验证种子、准备输出目录、执行爬取、写出策略与报告
type Crawler struct {
	task      *models.CrawlTask
	config    models.CrawlConfig
	outputDir string
	options   OutputOptions

	fetcher crawlers.Fetcher
	builder *crawlers.PolicyBuilder

	mu          sync.RWMutex
	result      *crawlers.CrawlResult
	outputFiles []string
	stats       models.TaskStats
}

// NewCrawler 创建主爬取器
// 种子URL或配置无效时返回错误, 此时不会产生任何网络请求或文件
func NewCrawler(targetURL string, config models.CrawlConfig, outputDir string, headerProvider models.HeaderProvider) (*Crawler, error) {
	task, err := models.NewCrawlTask(targetURL, config)
	if err != nil {
		return nil, fmt.Errorf("创建爬取任务失败: %w", err)
	}
	if outputDir == "" {
		return nil, fmt.Errorf("输出目录不能为空")
	}

	extraRules, err := crawlers.CompileRules(config.ExtraRules)
	if err != nil {
		return nil, fmt.Errorf("加载附加分类规则失败: %w", err)
	}
	if len(extraRules) > 0 {
		utils.Infof("附加分类规则: %d条", len(extraRules))
	}

	return &Crawler{
		task:      task,
		config:    config,
		outputDir: outputDir,
		options:   OutputOptions{WriteReport: true, WriteMarkdown: true},
		fetcher:   crawlers.NewCollyFetcher(config, headerProvider),
		builder:   crawlers.NewPolicyBuilder(crawlers.NewClassifier().WithRules(extraRules...)),
	}, nil
}

// SetFetcher 替换页面抓取器
func (c *Crawler) SetFetcher(fetcher crawlers.Fetcher) {
	if fetcher != nil {
		c.fetcher = fetcher
	}
}

// SetOutputOptions 设置可选输出
func (c *Crawler) SetOutputOptions(options OutputOptions) {
	c.options = options
}

// Crawl 执行爬取任务
// 执行流程:
//  1. 创建输出目录 (失败则不发起任何请求)
//  2. 广度优先爬取并生成策略
//  3. 写出 csp_policy.json 与 web.config
//  4. 写出爬取报告
//
// ctx取消时返回错误且不写出任何结果文件
func (c *Crawler) Crawl(ctx context.Context) error {
	utils.Infof("🚀 开始爬取任务")
	utils.Infof("任务ID: %s", c.task.ID)
	utils.Infof("目标URL: %s", c.task.TargetURL)
	utils.Infof("输出目录: %s", c.outputDir)

	if err := os.MkdirAll(c.outputDir, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	c.task.Start()
	startTime := time.Now()

	sc := crawlers.NewStaticCrawler(c.config, c.fetcher)
	sc.SetPolicyBuilder(c.builder)
	if c.config.ShowProgress {
		bar := utils.NewProgressBar(c.config.MaxPages, "爬取页面")
		sc.SetProgressCallback(func(visited int, _ string) {
			_ = bar.Set(visited)
		})
		defer bar.Finish()
	}

	result, err := sc.Crawl(ctx, c.task.TargetURL)
	if err != nil {
		c.task.Finish(models.TaskStats{}, err)
		return fmt.Errorf("爬取失败: %w", err)
	}

	c.task.Finish(result.Stats, nil)

	files, err := c.writeOutputs(result, startTime)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.result = result
	c.stats = result.Stats
	c.outputFiles = files
	c.mu.Unlock()

	utils.Infof("✅ 爬取任务完成")
	utils.Infof("CSP头部: %s", result.Policy.HeaderValue())
	return nil
}

// writeOutputs 写出策略文件与报告, 返回已写出的文件路径
func (c *Crawler) writeOutputs(result *crawlers.CrawlResult, startTime time.Time) ([]string, error) {
	reporter := utils.NewReporter(c.outputDir)

	policyPath, err := reporter.WritePolicyJSON(result.Policy)
	if err != nil {
		return nil, err
	}
	webConfigPath, err := reporter.WriteWebConfig(result.Policy)
	if err != nil {
		return nil, err
	}
	files := []string{policyPath, webConfigPath}

	if !c.options.WriteReport && !c.options.WriteMarkdown {
		return files, nil
	}

	if c.options.WriteReport {
		files = append(files, filepath.Join(c.outputDir, utils.ReportJSONFile))
	}
	if c.options.WriteMarkdown {
		files = append(files, filepath.Join(c.outputDir, utils.ReportMDFile))
	}

	report := &models.CrawlReport{
		Task:         c.task,
		StartTime:    startTime,
		EndTime:      time.Now(),
		Stats:        result.Stats,
		Policy:       result.Policy,
		HeaderValue:  result.Policy.HeaderValue(),
		Pages:        result.Pages,
		FailedPages:  result.FailedPages,
		ExternalURLs: result.ExternalURLs.Sorted(),
		OutputFiles:  files,
	}

	// 报告属于附加输出, 写入失败只记录警告
	if c.options.WriteReport {
		if _, err := reporter.WriteCrawlReport(report); err != nil {
			utils.Warnf("生成爬取报告失败: %v", err)
		}
	}
	if c.options.WriteMarkdown {
		if _, err := reporter.WriteMarkdownReport(report); err != nil {
			utils.Warnf("生成Markdown报告失败: %v", err)
		}
	}

	return files, nil
}

// Task 返回任务记录
func (c *Crawler) Task() *models.CrawlTask {
	return c.task
}

// Policy 返回生成的CSP策略 (爬取前为nil)
func (c *Crawler) Policy() models.CSPPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.result == nil {
		return nil
	}
	return c.result.Policy
}

// GetStats 获取统计信息
func (c *Crawler) GetStats() models.TaskStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// OutputFiles 返回写出的文件路径
func (c *Crawler) OutputFiles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.outputFiles...)
}


package core

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/CSPcrawl/internal/crawlers"
	"github.com/RecoveryAshes/CSPcrawl/internal/models"
	"github.com/RecoveryAshes/CSPcrawl/internal/utils"
)

// BatchCrawler 批量爬取器
// 每个URL独立爬取, 结果写入 <outputDir>/<host>/
type BatchCrawler struct {
	config         models.CrawlConfig
	outputDir      string
	options        OutputOptions
	batchDelay     time.Duration
	continueOnErr  bool
	headerProvider models.HeaderProvider

	// newFetcher 测试中可替换
	newFetcher func() crawlers.Fetcher
}

// BatchResult 单个URL的爬取结果
type BatchResult struct {
	URL         string
	OutputDir   string
	Success     bool
	Error       error
	Stats       models.TaskStats
	Policy      models.CSPPolicy
	OutputFiles []string
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量爬取摘要
type BatchSummary struct {
	TotalURLs     int
	SuccessCount  int
	FailCount     int
	TotalPages    int
	TotalDuration float64
	Results       []BatchResult
}

// NewBatchCrawler 创建批量爬取器, batchDelay单位为秒
func NewBatchCrawler(config models.CrawlConfig, outputDir string, batchDelay int, continueOnErr bool, headerProvider models.HeaderProvider) *BatchCrawler {
	return &BatchCrawler{
		config:         config,
		outputDir:      outputDir,
		options:        OutputOptions{WriteReport: true, WriteMarkdown: true},
		batchDelay:     time.Duration(batchDelay) * time.Second,
		continueOnErr:  continueOnErr,
		headerProvider: headerProvider,
	}
}

// SetOutputOptions 设置可选输出
func (bc *BatchCrawler) SetOutputOptions(options OutputOptions) {
	bc.options = options
}

// CrawlBatch 批量爬取URL列表
// ctx取消时停止处理剩余URL并返回ctx.Err()
func (bc *BatchCrawler) CrawlBatch(ctx context.Context, urls []string) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量爬取: %d个URL", len(urls))

	summary := &BatchSummary{
		TotalURLs: len(urls),
		Results:   make([]BatchResult, 0, len(urls)),
	}

	startTime := time.Now()

	for i, targetURL := range urls {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		utils.Infof("==================== [%d/%d] ====================", i+1, len(urls))
		utils.Infof("目标URL: %s", targetURL)

		result := bc.crawlSingleURL(ctx, targetURL)
		summary.Results = append(summary.Results, result)

		if result.Success {
			summary.SuccessCount++
			summary.TotalPages += result.Stats.VisitedPages
		} else {
			summary.FailCount++
			utils.Errorf("❌ 爬取失败: %v", result.Error)

			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			if !bc.continueOnErr {
				utils.Warn("批量爬取中止 (--continue-on-error=false)")
				break
			}
		}

		// 批量延迟(最后一个URL不需要延迟)
		if i < len(urls)-1 && bc.batchDelay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一个URL...", bc.batchDelay.Seconds())
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(bc.batchDelay):
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()
	bc.printSummary(summary)

	return summary, nil
}

// crawlSingleURL 爬取单个URL
func (bc *BatchCrawler) crawlSingleURL(ctx context.Context, targetURL string) (result BatchResult) {
	result = BatchResult{
		URL:         targetURL,
		ProcessedAt: time.Now(),
	}
	startTime := time.Now()
	defer func() {
		result.Duration = time.Since(startTime).Seconds()
	}()

	result.OutputDir = filepath.Join(bc.outputDir, hostDirName(targetURL))

	crawler, err := NewCrawler(targetURL, bc.config, result.OutputDir, bc.headerProvider)
	if err != nil {
		result.Error = fmt.Errorf("创建爬取器失败: %w", err)
		return result
	}
	crawler.SetOutputOptions(bc.options)
	if bc.newFetcher != nil {
		crawler.SetFetcher(bc.newFetcher())
	}

	if err := crawler.Crawl(ctx); err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	result.Stats = crawler.GetStats()
	result.Policy = crawler.Policy()
	result.OutputFiles = crawler.OutputFiles()
	return result
}

// hostDirName 由URL生成目录名 (host:port 中的冒号替换为下划线)
func hostDirName(targetURL string) string {
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Host == "" {
		return "invalid"
	}
	return strings.ReplaceAll(parsed.Host, ":", "_")
}

// printSummary 打印批量爬取摘要
func (bc *BatchCrawler) printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 批量爬取摘要")
	utils.Info("==================================================")
	utils.Infof("总URL数: %d", summary.TotalURLs)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("📄 总页面数: %d", summary.TotalPages)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的URL:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.URL, result.Error)
			}
		}
	}
}

package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/RecoveryAshes/CSPcrawl/internal/models"
	"github.com/RecoveryAshes/CSPcrawl/internal/utils"
	"golang.org/x/sync/errgroup"
)

// CrawlResult 一次爬取的完整结果
type CrawlResult struct {
	Policy        models.CSPPolicy
	ExternalURLs  URLSet // 全部页面发现的外部URL并集
	InternalLinks URLSet // 全部页面发现的站内链接并集
	Pages         []models.PageResult
	FailedPages   []models.FailedPage
	Stats         models.TaskStats
}

// ProgressFunc 每个页面处理完成后回调, visited为已尝试抓取的页面数
type ProgressFunc func(visited int, pageURL string)

// StaticCrawler 广度优先的静态爬取器
// 所有爬取状态(队列、已访问集合、外部URL)都属于单次Crawl调用,同一实例可并发执行多次爬取
type StaticCrawler struct {
	config    models.CrawlConfig
	fetcher   Fetcher
	extractor *LinkExtractor
	builder   *PolicyBuilder

	// 资源监控器(Workers>1时用于限制并发)
	resourceMonitor *ResourceMonitor

	onProgress ProgressFunc
}

// pageOutcome 单个页面的处理结果
type pageOutcome struct {
	item     models.URLItem
	page     *models.PageResult
	failed   *models.FailedPage
	internal URLSet
	external URLSet
}

// NewStaticCrawler 创建静态爬取器
func NewStaticCrawler(config models.CrawlConfig, fetcher Fetcher) *StaticCrawler {
	sc := &StaticCrawler{
		config:    config,
		fetcher:   fetcher,
		extractor: NewLinkExtractor(config.ExternalMatch),
		builder:   NewPolicyBuilder(nil),
	}

	if config.Workers > 1 {
		sc.resourceMonitor = NewResourceMonitor(ResourceMonitorConfig{
			SafetyReserveMemory: int64(config.SafetyReserveMemMB) * 1024 * 1024, // MB转字节
			CPULoadThreshold:    config.CPULoadThreshold,
			MaxWorkersLimit:     config.Workers,
		})
	}

	return sc
}

// SetProgressCallback 设置进度回调
func (sc *StaticCrawler) SetProgressCallback(fn ProgressFunc) {
	sc.onProgress = fn
}

// SetPolicyBuilder 替换策略构建器(自定义分类规则)
func (sc *StaticCrawler) SetPolicyBuilder(builder *PolicyBuilder) {
	if builder != nil {
		sc.builder = builder
	}
}

// Crawl 从种子URL开始广度优先爬取
// 处理流程:
//  1. 种子规范化后入队
//  2. 队列非空且已访问数小于MaxPages时, 取队首批次并标记已访问
//  3. 抓取页面, 失败记录后继续
//  4. 提取外部URL并入结果集, 未访问的站内链接排序后追加到队尾
//  5. 结束后将外部URL一次性交给策略构建器
//
// ctx取消时返回ctx.Err()
func (sc *StaticCrawler) Crawl(ctx context.Context, seedURL string) (*CrawlResult, error) {
	if err := models.ValidateURL(seedURL); err != nil {
		return nil, err
	}
	if sc.fetcher == nil {
		return nil, fmt.Errorf("未配置页面抓取器")
	}

	seed, _ := url.Parse(seedURL)
	origin := seed.Host
	startTime := time.Now()

	utils.Infof("🔍 开始爬取: %s", seedURL)
	utils.Infof("目标主机: %s, 最大页面数: %d, 并发数: %d", origin, sc.config.MaxPages, sc.config.Workers)

	// 种子与站内链接使用同一规范形式, 保留种子的查询串
	start := canonicalPageURL(seed)
	if seed.RawQuery != "" {
		start += "?" + seed.RawQuery
	}

	queue := NewURLQueue()
	queue.Push(models.URLItem{URL: start, Depth: 0})

	result := &CrawlResult{
		ExternalURLs:  NewURLSet(),
		InternalLinks: NewURLSet(),
	}

	for queue.PendingCount() > 0 && queue.VisitedCount() < sc.config.MaxPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		size := min(sc.workerLimit(), sc.config.MaxPages-queue.VisitedCount())
		batch := queue.NextBatch(size)
		if len(batch) == 0 {
			break
		}

		outcomes := sc.processBatch(ctx, batch, origin)
		if err := ctx.Err(); err != nil {
			utils.Warnf("爬取已取消: %v", err)
			return nil, err
		}

		// 按批次顺序合并,保证与顺序爬取一致
		for _, out := range outcomes {
			sc.mergeOutcome(queue, result, out)
			if sc.onProgress != nil {
				sc.onProgress(len(result.Pages)+len(result.FailedPages), out.item.URL)
			}
		}

		if queue.PendingCount() > 0 && queue.VisitedCount() < sc.config.MaxPages {
			if err := sleepContext(ctx, sc.config.Delay()); err != nil {
				return nil, err
			}
		}
	}

	result.Policy = sc.builder.Build(result.ExternalURLs)
	result.Stats = models.TaskStats{
		VisitedPages:  queue.VisitedCount(),
		FailedPages:   len(result.FailedPages),
		InternalLinks: len(result.InternalLinks),
		ExternalURLs:  len(result.ExternalURLs),
		Directives:    len(result.Policy),
		Duration:      time.Since(startTime).Seconds(),
	}

	utils.Infof("✅ 爬取完成")
	utils.Infof("访问页面数: %d (失败 %d)", result.Stats.VisitedPages, result.Stats.FailedPages)
	utils.Infof("外部URL数: %d, CSP指令数: %d", result.Stats.ExternalURLs, result.Stats.Directives)
	utils.Infof("总耗时: %.2f秒", result.Stats.Duration)

	return result, nil
}

// workerLimit 当前批次的并发上限
func (sc *StaticCrawler) workerLimit() int {
	if sc.config.Workers <= 1 || sc.resourceMonitor == nil {
		return 1
	}
	return min(sc.config.Workers, sc.resourceMonitor.CalculateMaxWorkers())
}

// processBatch 并发抓取一个批次,结果按输入顺序返回
func (sc *StaticCrawler) processBatch(ctx context.Context, batch []models.URLItem, origin string) []pageOutcome {
	outcomes := make([]pageOutcome, len(batch))

	if len(batch) == 1 {
		outcomes[0] = sc.processPage(ctx, batch[0], origin)
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(len(batch))
	for i, item := range batch {
		g.Go(func() error {
			outcomes[i] = sc.processPage(ctx, item, origin)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// processPage 抓取并解析单个页面
func (sc *StaticCrawler) processPage(ctx context.Context, item models.URLItem, origin string) pageOutcome {
	out := pageOutcome{item: item}

	utils.Debugf("访问: %s (深度=%d)", item.URL, item.Depth)
	fetched, err := sc.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		utils.Warnf("抓取失败 [%s]: %v", item.URL, err)
		out.failed = newFailedPage(item, err)
		return out
	}

	pageURL := fetched.FinalURL
	if pageURL == "" {
		pageURL = item.URL
	}

	out.internal, out.external = sc.extractor.Extract(string(fetched.Body), pageURL, origin)
	out.page = &models.PageResult{
		URL:           item.URL,
		FinalURL:      pageURL,
		Depth:         item.Depth,
		StatusCode:    fetched.StatusCode,
		InternalLinks: len(out.internal),
		ExternalURLs:  len(out.external),
	}

	utils.Debugf("页面解析完成 [%s]: 站内链接=%d, 外部URL=%d", item.URL, len(out.internal), len(out.external))
	return out
}

// mergeOutcome 合并页面结果并将新发现的站内链接入队
func (sc *StaticCrawler) mergeOutcome(queue *URLQueue, result *CrawlResult, out pageOutcome) {
	if out.failed != nil {
		result.FailedPages = append(result.FailedPages, *out.failed)
		return
	}

	result.Pages = append(result.Pages, *out.page)
	result.ExternalURLs.Merge(out.external)
	result.InternalLinks.Merge(out.internal)

	for _, link := range out.internal.Sorted() {
		if queue.IsVisited(link) {
			continue
		}
		queue.Push(models.URLItem{URL: link, Depth: out.item.Depth + 1, SourceURL: out.item.URL})
	}
}

// newFailedPage 由抓取错误生成失败记录
func newFailedPage(item models.URLItem, err error) *models.FailedPage {
	failed := &models.FailedPage{
		URL:       item.URL,
		Depth:     item.Depth,
		ErrorType: string(FetchErrorNetwork),
		ErrorMsg:  err.Error(),
		Attempts:  1,
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		failed.ErrorType = string(fe.Kind)
		if fe.Attempts > 0 {
			failed.Attempts = fe.Attempts
		}
	}
	return failed
}

package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/RecoveryAshes/CSPcrawl/internal/models"
	"github.com/RecoveryAshes/CSPcrawl/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

// ErrFetchFailed 所有页面抓取失败的哨兵错误, 可用 errors.Is 判断
var ErrFetchFailed = errors.New("页面抓取失败")

// FetchErrorKind 抓取失败类型
type FetchErrorKind string

const (
	FetchErrorTimeout  FetchErrorKind = "timeout"       // 请求超时
	FetchErrorNetwork  FetchErrorKind = "network_error" // 连接/DNS/读取错误
	FetchErrorStatus   FetchErrorKind = "http_status"   // 非2xx状态码
	FetchErrorCanceled FetchErrorKind = "canceled"      // context已取消
)

// FetchError 单个页面抓取失败
type FetchError struct {
	URL        string
	Kind       FetchErrorKind
	StatusCode int // 仅 http_status 类型有效
	Attempts   int
	Err        error
}

// Error 实现error接口
func (e *FetchError) Error() string {
	if e.Kind == FetchErrorStatus {
		return fmt.Sprintf("抓取失败 [%s]: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("抓取失败 [%s] (%s): %v", e.URL, e.Kind, e.Err)
}

// Unwrap 支持errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrFetchFailed) 成立
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

// Retryable 超时、网络错误与5xx可重试
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case FetchErrorTimeout, FetchErrorNetwork:
		return true
	case FetchErrorStatus:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// FetchResult 成功抓取的页面
type FetchResult struct {
	URL         string // 请求的URL
	FinalURL    string // 跟随重定向后的URL
	StatusCode  int
	ContentType string
	Body        []byte // 已解压的响应体
}

// Fetcher 页面抓取器
type Fetcher interface {
	// Fetch 抓取页面, 任何失败都以 *FetchError 返回
	Fetch(ctx context.Context, pageURL string) (*FetchResult, error)
}

// CollyFetcher 基于Colly的页面抓取器
// 基础collector在同步模式下运行, 每次抓取克隆一份以隔离回调, 因此可并发调用
type CollyFetcher struct {
	collector      *colly.Collector
	headerProvider models.HeaderProvider
	retries        int
	backoff        time.Duration
}

// NewCollyFetcher 创建页面抓取器
func NewCollyFetcher(config models.CrawlConfig, headerProvider models.HeaderProvider) *CollyFetcher {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(config.MaxBodySizeMB*1024*1024),
	)

	c.SetRequestTimeout(config.RequestTimeout())

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = max(config.Workers, 2)
	c.WithTransport(transport)

	utils.Debugf("页面抓取器: 超时=%v, 重试=%d, 响应体上限=%dMB",
		config.RequestTimeout(), config.Retries, config.MaxBodySizeMB)

	return &CollyFetcher{
		collector:      c,
		headerProvider: headerProvider,
		retries:        config.Retries,
		backoff:        time.Duration(config.RetryBackoffMillis) * time.Millisecond,
	}
}

// Fetch 抓取页面, 可重试的失败按指数退避重试
func (f *CollyFetcher) Fetch(ctx context.Context, pageURL string) (*FetchResult, error) {
	var lastErr *FetchError

	for attempt := 1; attempt <= f.retries+1; attempt++ {
		if attempt > 1 {
			wait := f.backoff << (attempt - 2)
			utils.Debugf("重试抓取 [%s]: 第%d次, 等待%v", pageURL, attempt, wait)
			if err := sleepContext(ctx, wait); err != nil {
				lastErr = &FetchError{URL: pageURL, Kind: FetchErrorCanceled, Attempts: attempt - 1, Err: err}
				break
			}
		}

		result, err := f.fetchOnce(ctx, pageURL)
		if err == nil {
			return result, nil
		}

		err.Attempts = attempt
		lastErr = err
		if !err.Retryable() {
			break
		}
	}

	return nil, lastErr
}

// fetchOnce 执行一次请求
func (f *CollyFetcher) fetchOnce(ctx context.Context, pageURL string) (*FetchResult, *FetchError) {
	c := f.collector.Clone()
	c.Context = ctx

	var result *FetchResult

	// 应用自定义HTTP头部
	c.OnRequest(func(r *colly.Request) {
		if f.headerProvider == nil {
			return
		}
		headers, err := f.headerProvider.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
			return
		}
		for name, values := range headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
	})

	c.OnResponse(func(r *colly.Response) {
		body := r.Body
		if encoding := r.Headers.Get("Content-Encoding"); encoding != "" {
			decompressed, err := decompressResponse(encoding, r.Body)
			if err != nil {
				// 解压失败,仍然使用原始body
				utils.Warnf("解压响应失败 [%s] (编码=%s): %v", pageURL, encoding, err)
			} else {
				body = decompressed
			}
		}

		result = &FetchResult{
			URL:         pageURL,
			FinalURL:    r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        body,
		}
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, classifyFetchError(ctx, pageURL, err)
	}

	if result == nil {
		return nil, &FetchError{URL: pageURL, Kind: FetchErrorNetwork, Err: errors.New("未收到响应")}
	}

	if result.StatusCode < 200 || result.StatusCode > 299 {
		return nil, &FetchError{
			URL:        pageURL,
			Kind:       FetchErrorStatus,
			StatusCode: result.StatusCode,
			Err:        fmt.Errorf("HTTP %d %s", result.StatusCode, http.StatusText(result.StatusCode)),
		}
	}

	return result, nil
}

// classifyFetchError 将底层错误归类为 FetchError
func classifyFetchError(ctx context.Context, pageURL string, err error) *FetchError {
	kind := FetchErrorNetwork

	var netErr net.Error
	switch {
	case ctx.Err() != nil:
		kind = FetchErrorCanceled
	case errors.Is(err, context.DeadlineExceeded):
		kind = FetchErrorTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = FetchErrorTimeout
	}

	return &FetchError{URL: pageURL, Kind: kind, Err: err}
}

// sleepContext 等待指定时长, ctx取消时提前返回
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
// Colly已自动解压的gzip响应体不再带有gzip魔数,原样返回
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		// 未知编码,返回警告但仍然返回原始内容
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}

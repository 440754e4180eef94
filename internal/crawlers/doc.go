// Package crawlers 提供站点爬取与CSP策略生成功能
//
// # 概述
//
// crawlers包从种子URL出发,以广度优先方式抓取同源页面,收集页面内容中引用的外部资源URL,
// 按资源类型归类到CSP指令,最终生成 Content-Security-Policy 策略。
//
// # 核心组件
//
// ## StaticCrawler
//
// 广度优先爬取器。队列、已访问集合和外部URL集合都属于单次Crawl调用,
// 同一进程内可以安全地并发执行多次爬取。
//
//	fetcher := NewCollyFetcher(config, headerProvider)
//	crawler := NewStaticCrawler(config, fetcher)
//	result, err := crawler.Crawl(ctx, "https://example.com")
//
// Workers>1 时按批次并发抓取(errgroup),批次结果按出队顺序合并,
// 因此 Workers=1 与严格顺序的FIFO爬取完全一致。
//
// ## CollyFetcher
//
// 基于Colly的页面抓取器。每次抓取克隆基础collector,失败统一返回 *FetchError:
//   - timeout: 请求超时
//   - network_error: 连接/DNS/读取错误
//   - http_status: 跟随重定向后状态码非2xx
//   - canceled: context已取消
//
// ## LinkExtractor
//
// 站内链接: 解析HTML,扫描 a/link 的href 与 script/img/iframe 的src,
// 主机(含端口)与种子完全一致才保留,并去掉查询串和片段。
//
// 外部URL: 对原始内容做正则扫描(包括内联脚本和样式),
// 默认目标域名是主机子串即视为站内(contains),可配置为完全匹配(exact)。
//
// ## Classifier / PolicyBuilder
//
// 分类规则是有序的(正则, 指令)表,首个匹配生效,均不匹配时归入 default-src:
//
//	\.js(\?|$)                       -> script-src
//	\.css(\?|$)                      -> style-src
//	\.(woff2?|ttf|otf)(\?|$)         -> font-src
//	\.(jpg|jpeg|png|gif|svg|webp)(\?|$) -> img-src
//	\.json(\?|$)                     -> connect-src
//
// 策略中每个出现的指令都包含 'self',来源按字典序排序。
//
// ## URLQueue / ResourceMonitor
//
// URLQueue 是并发安全的FIFO队列与已访问集合。
// ResourceMonitor 根据可用内存和CPU负载(gopsutil)限制并发抓取数。
package crawlers

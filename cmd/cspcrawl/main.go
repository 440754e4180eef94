package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/RecoveryAshes/CSPcrawl/internal/config"
	"github.com/RecoveryAshes/CSPcrawl/internal/core"
	"github.com/RecoveryAshes/CSPcrawl/internal/models"
	"github.com/RecoveryAshes/CSPcrawl/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string // 自定义HTTP请求头
	headersFile    string   // 请求头配置文件
	validateConfig bool     // 验证配置文件

	// 爬取参数
	targetURL     string
	urlFile       string
	outputDir     string
	maxPages      int
	delayMs       int
	timeout       int
	workers       int
	retries       int
	externalMatch string
	noProgress    bool

	// 批量处理参数
	batchDelay      int
	continueOnError bool
)

// 在 PersistentPreRunE 中加载
var (
	appConfig     *core.Config
	headerManager *core.HeaderManager
)

var rootCmd = &cobra.Command{
	Use:   "cspcrawl",
	Short: "爬取站点并生成Content-Security-Policy",
	Long: `CSPcrawl - 站点爬取与CSP策略生成工具

从种子URL出发广度优先爬取同源页面,收集页面引用的外部资源,
按类型归入CSP指令(script-src, style-src, font-src, img-src, connect-src, default-src),
输出:
  • csp_policy.json   策略JSON
  • web.config        IIS自定义响应头配置
  • crawl_report.json 爬取报告
  • csp_report.md     Markdown摘要

示例:
  cspcrawl -u https://example.com
  cspcrawl -u https://example.com -n 50 -o ./results --delay 200
  cspcrawl -f urls.txt --workers 4
  cspcrawl -u https://example.com -H "Cookie: session=xxx"

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 命令行参数覆盖配置文件
		cfg.MergeCLIFlags(collectOverrides(cmd))
		if cmd.Flags().Changed("external-match") {
			cfg.Crawl.ExternalMatch = externalMatch
		}
		if verbose && !cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = "debug"
		}

		hm, err := newHeaderManager(cfg)
		if err != nil {
			return err
		}

		// 配置错误在初始化日志之前返回, 不创建日志目录或任何输出文件
		if !validateConfig && (targetURL != "" || urlFile != "") {
			if err := ValidateFlags(targetURL, urlFile, cfg); err != nil {
				return err
			}
			if err := hm.Validate(); err != nil {
				return fmt.Errorf("HTTP头部配置无效: %w", err)
			}
		}

		if err := utils.InitLogger(cfg.LogConfig()); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		if cfg.ConfigFile != "" {
			utils.Debugf("使用配置文件: %s", cfg.ConfigFile)
		}
		if verbose {
			utils.Info("详细模式已启用")
		}

		appConfig = cfg
		headerManager = hm
		return nil
	},
	RunE: runCrawl,
}

// collectOverrides 收集用户显式指定的命令行参数
func collectOverrides(cmd *cobra.Command) core.CLIOverrides {
	flags := cmd.Flags()
	var o core.CLIOverrides

	if flags.Changed("max-pages") {
		o.MaxPages = &maxPages
	}
	if flags.Changed("delay") {
		o.DelayMs = &delayMs
	}
	if flags.Changed("timeout") {
		o.Timeout = &timeout
	}
	if flags.Changed("workers") {
		o.Workers = &workers
	}
	if flags.Changed("retries") {
		o.Retries = &retries
	}
	if flags.Changed("output-dir") {
		o.OutputDir = &outputDir
	}
	if flags.Changed("log-level") {
		o.LogLevel = &logLevel
	}
	o.NoProgress = noProgress
	return o
}

// newHeaderManager 按 --headers-file 或配置文件中的路径创建请求头管理器
func newHeaderManager(cfg *core.Config) (*core.HeaderManager, error) {
	path := headersFile
	if path == "" {
		path = cfg.Headers.File
	}
	hm, err := core.NewHeaderManager(path, headers)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}
	return hm, nil
}

// runCrawl 根命令入口
func runCrawl(cmd *cobra.Command, args []string) error {
	defer utils.CloseLogger()

	// 如果用户请求验证配置
	if validateConfig {
		return runValidateConfig(cmd.OutOrStdout(), headerManager)
	}

	if targetURL == "" && urlFile == "" {
		return cmd.Help()
	}
	utils.Debugf("当前HTTP头部: %v", headerManager.GetSafeHeaders())

	options := core.OutputOptions{
		WriteReport:   appConfig.Output.WriteReport,
		WriteMarkdown: appConfig.Output.WriteMarkdown,
	}
	ctx := cmd.Context()

	if urlFile != "" {
		urls, err := utils.ReadURLsFromFile(urlFile)
		if err != nil {
			return fmt.Errorf("读取URL文件失败: %w", err)
		}

		batchCrawler := core.NewBatchCrawler(appConfig.Crawl, appConfig.Output.BaseDir, batchDelay, continueOnError, headerManager)
		batchCrawler.SetOutputOptions(options)

		summary, err := batchCrawler.CrawlBatch(ctx, urls)
		if err != nil {
			return fmt.Errorf("批量爬取失败: %w", err)
		}
		for _, result := range summary.Results {
			if result.Success {
				fmt.Fprintf(cmd.OutOrStdout(), "\n[%s]\n", result.URL)
				printPolicySummary(cmd.OutOrStdout(), result.Policy, result.OutputFiles)
			}
		}
		if summary.FailCount > 0 {
			return fmt.Errorf("%d/%d 个URL爬取失败", summary.FailCount, summary.TotalURLs)
		}
		return nil
	}

	crawler, err := core.NewCrawler(targetURL, appConfig.Crawl, appConfig.Output.BaseDir, headerManager)
	if err != nil {
		return fmt.Errorf("创建爬取器失败: %w", err)
	}
	crawler.SetOutputOptions(options)

	if err := crawler.Crawl(ctx); err != nil {
		return err
	}

	stats := crawler.GetStats()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "==================================================")
	fmt.Fprintln(out, "📊 爬取统计")
	fmt.Fprintln(out, "==================================================")
	fmt.Fprintf(out, "🆔 任务ID: %s\n", crawler.Task().ID)
	fmt.Fprintf(out, "✅ 访问页面数: %d\n", stats.VisitedPages)
	fmt.Fprintf(out, "❌ 失败页面数: %d\n", stats.FailedPages)
	fmt.Fprintf(out, "🔗 外部URL数: %d\n", stats.ExternalURLs)
	fmt.Fprintf(out, "⏱️  总耗时: %.2f秒\n", stats.Duration)
	fmt.Fprintln(out, "==================================================")
	printPolicySummary(out, crawler.Policy(), crawler.OutputFiles())

	utils.Info("✨ 爬取任务完成!")
	return nil
}

// runValidateConfig 验证并显示当前有效的请求头
func runValidateConfig(out io.Writer, hm *core.HeaderManager) error {
	utils.Info("🔍 验证HTTP头部配置...")
	if err := hm.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}
	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	safeHeaders := hm.GetSafeHeaders()
	fmt.Fprintln(out, "✅ 配置验证通过!")
	fmt.Fprintf(out, "当前有效的HTTP头部 (%d个):\n", len(safeHeaders))
	for name, value := range safeHeaders {
		fmt.Fprintf(out, "  %s: %s\n", name, value)
	}
	return nil
}

// printPolicySummary 输出写出的文件与 "指令: 来源, 来源" 摘要
func printPolicySummary(w io.Writer, policy models.CSPPolicy, files []string) {
	for _, f := range files {
		fmt.Fprintf(w, "📄 %s\n", f)
	}
	if len(policy) == 0 {
		fmt.Fprintln(w, "未发现外部资源")
		return
	}
	for _, directive := range policy.Directives() {
		fmt.Fprintf(w, "%s: %s\n", directive, strings.Join(policy[directive], ", "))
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	// 不需要加载配置和初始化日志
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "CSPcrawl %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "构建时间: %s\n", BuildTime)
	},
}

var initHeadersCmd = &cobra.Command{
	Use:   "init-headers",
	Short: "生成请求头配置模板",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := config.NewHeaderConfigLoader(headersFile)
		created, err := loader.WriteTemplate()
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "已生成: %s\n", loader.Path())
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "已存在, 未覆盖: %s\n", loader.Path())
		}
		return nil
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径 (默认搜索 ./configs, ., $XDG_CONFIG_HOME/cspcrawl, ~/.cspcrawl)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().StringVar(&headersFile, "headers-file", "", "请求头配置文件 (默认 configs/headers.yaml)")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 爬取参数
	rootCmd.Flags().StringVarP(&targetURL, "url", "u", "", "种子URL (必需,除非使用 --url-file)")
	rootCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "包含URL列表的文件路径")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "./csp_results", "输出目录")
	rootCmd.Flags().IntVarP(&maxPages, "max-pages", "n", 25, "最大抓取页面数")
	rootCmd.Flags().IntVar(&delayMs, "delay", 500, "两次抓取间的延迟(毫秒)")
	rootCmd.Flags().IntVar(&timeout, "timeout", 15, "单次请求超时(秒)")
	rootCmd.Flags().IntVar(&workers, "workers", 1, "并发抓取数 (1为严格顺序)")
	rootCmd.Flags().IntVar(&retries, "retries", 0, "失败重试次数")
	rootCmd.Flags().StringVar(&externalMatch, "external-match", models.ExternalMatchContains, "外部主机匹配模式 (contains|exact)")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "不显示进度条")

	// 批量处理参数
	rootCmd.Flags().IntVar(&batchDelay, "batch-delay", 1, "批量处理URL间延迟(秒)")
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "遇到错误继续处理")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initHeadersCmd)
}

func main() {
	// Ctrl+C / SIGTERM 取消正在进行的爬取
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		stop()
		os.Exit(1)
	}
}

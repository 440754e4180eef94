package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/CSPcrawl/internal/models"
	"github.com/RecoveryAshes/CSPcrawl/internal/utils"
	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// AppName 应用名, 用于配置目录
const AppName = "cspcrawl"

// Config 应用程序配置
type Config struct {
	Crawl   models.CrawlConfig `mapstructure:"crawl"`
	Logging LoggingConfig      `mapstructure:"logging"`
	Output  OutputConfig       `mapstructure:"output"`
	Headers HeadersConfig      `mapstructure:"headers"`

	// ConfigFile 实际加载的配置文件路径(未找到时为空)
	ConfigFile string `mapstructure:"-"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	NoColor  bool           `mapstructure:"no_color"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir       string `mapstructure:"base_dir"`
	WriteReport   bool   `mapstructure:"write_report"`   // 是否生成 crawl_report.json
	WriteMarkdown bool   `mapstructure:"write_markdown"` // 是否生成 csp_report.md
}

// HeadersConfig 请求头配置文件位置
type HeadersConfig struct {
	File string `mapstructure:"file"`
}

// configSearchPaths 默认配置文件搜索路径(按优先级)
func configSearchPaths() []string {
	paths := []string{"./configs", ".", filepath.Join(xdg.ConfigHome, AppName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, "."+AppName))
	}
	return paths
}

// LoadConfig 加载配置文件
// configPath为空时在默认路径中搜索 config.yaml, 未找到则使用默认值;
// 显式指定的文件不存在或格式错误时返回 *models.ConfigError
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range configSearchPaths() {
			v.AddConfigPath(p)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
		utils.Debugf("未找到配置文件, 使用默认配置")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{
			FilePath: v.ConfigFileUsed(),
			Cause:    fmt.Errorf("解析配置文件失败: %w", err),
		}
	}
	config.ConfigFile = v.ConfigFileUsed()

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 爬取配置默认值
	defaults := models.DefaultCrawlConfig()
	v.SetDefault("crawl.max_pages", defaults.MaxPages)
	v.SetDefault("crawl.delay_ms", defaults.DelayMillis)
	v.SetDefault("crawl.timeout", defaults.Timeout)
	v.SetDefault("crawl.workers", defaults.Workers)
	v.SetDefault("crawl.retries", defaults.Retries)
	v.SetDefault("crawl.retry_backoff_ms", defaults.RetryBackoffMillis)
	v.SetDefault("crawl.max_body_size_mb", defaults.MaxBodySizeMB)
	v.SetDefault("crawl.external_match", defaults.ExternalMatch)
	v.SetDefault("crawl.show_progress", defaults.ShowProgress)
	v.SetDefault("crawl.cpu_load_threshold", defaults.CPULoadThreshold)
	v.SetDefault("crawl.safety_reserve_mem_mb", defaults.SafetyReserveMemMB)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.no_color", false)
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "./csp_results")
	v.SetDefault("output.write_report", true)
	v.SetDefault("output.write_markdown", true)

	v.SetDefault("headers.file", "")
}

// LogConfig 转换为日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
		NoColor:    c.Logging.NoColor,
	}
}

// CLIOverrides 命令行参数; 指针为nil表示未指定
type CLIOverrides struct {
	MaxPages   *int
	DelayMs    *int
	Timeout    *int
	Workers    *int
	Retries    *int
	OutputDir  *string
	LogLevel   *string
	NoProgress bool
}

// MergeCLIFlags 合并命令行参数到配置 (命令行优先于配置文件)
func (c *Config) MergeCLIFlags(o CLIOverrides) {
	if o.MaxPages != nil {
		c.Crawl.MaxPages = *o.MaxPages
	}
	if o.DelayMs != nil {
		c.Crawl.DelayMillis = *o.DelayMs
	}
	if o.Timeout != nil {
		c.Crawl.Timeout = *o.Timeout
	}
	if o.Workers != nil {
		c.Crawl.Workers = *o.Workers
	}
	if o.Retries != nil {
		c.Crawl.Retries = *o.Retries
	}
	if o.OutputDir != nil {
		c.Output.BaseDir = *o.OutputDir
	}
	if o.LogLevel != nil {
		c.Logging.Level = *o.LogLevel
	}
	if o.NoProgress {
		c.Crawl.ShowProgress = false
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Crawl.Validate(); err != nil {
		return err
	}
	if c.Output.BaseDir == "" {
		return fmt.Errorf("输出目录不能为空")
	}
	return nil
}

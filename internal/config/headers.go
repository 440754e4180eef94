package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/CSPcrawl/internal/models"
	"github.com/RecoveryAshes/CSPcrawl/internal/utils"
	"github.com/spf13/viper"
)

const (
	// DefaultHeadersFile 默认请求头配置文件路径
	DefaultHeadersFile = "configs/headers.yaml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024
)

//go:embed headers_template.yaml
var defaultHeaderTemplate string

// HeaderConfigLoader 请求头配置加载器
type HeaderConfigLoader struct {
	configPath string

	// explicit 路径由用户显式指定, 文件缺失视为错误
	explicit bool
}

// NewHeaderConfigLoader 创建配置文件加载器, 路径为空时使用默认路径
func NewHeaderConfigLoader(configPath string) *HeaderConfigLoader {
	explicit := configPath != ""
	if !explicit {
		configPath = DefaultHeadersFile
	}
	return &HeaderConfigLoader{
		configPath: configPath,
		explicit:   explicit,
	}
}

// Path 配置文件路径
func (hcl *HeaderConfigLoader) Path() string {
	return hcl.configPath
}

// WriteTemplate 生成配置模板, 文件已存在时不覆盖
func (hcl *HeaderConfigLoader) WriteTemplate() (bool, error) {
	if _, err := os.Stat(hcl.configPath); err == nil {
		return false, nil
	}

	dir := filepath.Dir(hcl.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
	}
	if err := os.WriteFile(hcl.configPath, []byte(defaultHeaderTemplate), 0644); err != nil {
		return false, fmt.Errorf("无法生成配置文件 [%s]: %w", hcl.configPath, err)
	}
	return true, nil
}

// LoadConfig 加载请求头配置
// 默认路径下文件不存在时返回空配置;显式指定的文件不存在、过大或格式错误时返回 *models.ConfigError
func (hcl *HeaderConfigLoader) LoadConfig() (*models.HeaderConfig, error) {
	info, err := os.Stat(hcl.configPath)
	if errors.Is(err, fs.ErrNotExist) && !hcl.explicit {
		utils.Debugf("未找到请求头配置 [%s], 使用默认头部", hcl.configPath)
		return &models.HeaderConfig{Headers: make(map[string]string)}, nil
	}
	if err != nil {
		return nil, &models.ConfigError{FilePath: hcl.configPath, Cause: err}
	}

	if info.Size() > MaxConfigFileSize {
		return nil, &models.ConfigError{
			FilePath: hcl.configPath,
			Cause: fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)",
				info.Size(), MaxConfigFileSize),
		}
	}

	v := viper.New()
	v.SetConfigFile(hcl.configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, &models.ConfigError{FilePath: hcl.configPath, Cause: err}
	}

	var config models.HeaderConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{
			FilePath: hcl.configPath,
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}

	// 初始化空map避免nil指针异常
	if config.Headers == nil {
		config.Headers = make(map[string]string)
	}

	return &config, nil
}

package main

import (
	"fmt"
	"os"

	"github.com/RecoveryAshes/CSPcrawl/internal/core"
	"github.com/RecoveryAshes/CSPcrawl/internal/models"
)

// ValidateFlags 验证命令行参数与合并后的配置
func ValidateFlags(targetURL, urlFile string, cfg *core.Config) error {
	switch {
	case targetURL == "" && urlFile == "":
		return fmt.Errorf("必须指定 --url 或 --url-file")
	case targetURL != "" && urlFile != "":
		return fmt.Errorf("--url 与 --url-file 不能同时使用")
	}

	if targetURL != "" {
		if err := models.ValidateURL(targetURL); err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}
	}

	if urlFile != "" {
		info, err := os.Stat(urlFile)
		if err != nil {
			return fmt.Errorf("URL文件不可用: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("URL文件是目录: %s", urlFile)
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("无效的配置: %w", err)
	}

	return nil
}

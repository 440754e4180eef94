package core

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/RecoveryAshes/CSPcrawl/internal/models"
)

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `crawl:
  max_pages: 5
  delay_ms: 0
  external_match: exact
  extra_rules:
    - pattern: '\.mp4(\?|$)'
      directive: default-src
    - pattern: '/api/'
      directive: connect-src
logging:
  level: debug
output:
  base_dir: ./out
  write_markdown: false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Crawl.MaxPages != 5 || cfg.Crawl.DelayMillis != 0 {
		t.Errorf("Crawl = %+v", cfg.Crawl)
	}
	if cfg.Crawl.ExternalMatch != models.ExternalMatchExact {
		t.Errorf("ExternalMatch = %s", cfg.Crawl.ExternalMatch)
	}
	wantRules := []models.ClassifierRule{
		{Pattern: `\.mp4(\?|$)`, Directive: "default-src"},
		{Pattern: "/api/", Directive: "connect-src"},
	}
	if !reflect.DeepEqual(cfg.Crawl.ExtraRules, wantRules) {
		t.Errorf("ExtraRules = %+v, want %+v", cfg.Crawl.ExtraRules, wantRules)
	}
	// 未配置的项使用默认值
	if cfg.Crawl.Timeout != 15 || cfg.Crawl.Workers != 1 {
		t.Errorf("默认值未生效: %+v", cfg.Crawl)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Rotation.MaxSize != 10 {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Output.BaseDir != "./out" || cfg.Output.WriteMarkdown || !cfg.Output.WriteReport {
		t.Errorf("Output = %+v", cfg.Output)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %s", cfg.ConfigFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	wd, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(wd) })
	os.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !reflect.DeepEqual(cfg.Crawl, models.DefaultCrawlConfig()) {
		t.Errorf("Crawl = %+v, want defaults", cfg.Crawl)
	}
	if cfg.Output.BaseDir != "./csp_results" {
		t.Errorf("BaseDir = %s", cfg.Output.BaseDir)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("crawl: [oops"), 0644)

	for _, path := range []string{filepath.Join(dir, "missing.yaml"), bad} {
		var cfgErr *models.ConfigError
		if _, err := LoadConfig(path); !errors.As(err, &cfgErr) {
			t.Errorf("LoadConfig(%s) 期望 ConfigError, 得到 %v", filepath.Base(path), err)
		}
	}
}

func TestConfig_MergeCLIFlags(t *testing.T) {
	cfg := &Config{Crawl: models.DefaultCrawlConfig()}
	cfg.Output.BaseDir = "./csp_results"

	maxPages, workers, outDir := 3, 4, "/tmp/out"
	cfg.MergeCLIFlags(CLIOverrides{
		MaxPages:   &maxPages,
		Workers:    &workers,
		OutputDir:  &outDir,
		NoProgress: true,
	})

	if cfg.Crawl.MaxPages != 3 || cfg.Crawl.Workers != 4 || cfg.Output.BaseDir != "/tmp/out" {
		t.Errorf("合并结果错误: %+v %+v", cfg.Crawl, cfg.Output)
	}
	if cfg.Crawl.ShowProgress {
		t.Error("NoProgress 应关闭进度条")
	}
	// 未指定的项保持不变
	if cfg.Crawl.DelayMillis != 500 {
		t.Errorf("DelayMillis = %d", cfg.Crawl.DelayMillis)
	}

	zero := 0
	cfg.MergeCLIFlags(CLIOverrides{MaxPages: &zero})
	if err := cfg.Validate(); err == nil {
		t.Error("max_pages=0 应验证失败")
	}
}

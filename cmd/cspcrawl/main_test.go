package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/CSPcrawl/internal/core"
	"github.com/RecoveryAshes/CSPcrawl/internal/models"
)

func TestValidateFlags(t *testing.T) {
	urlFile := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(urlFile, []byte("https://example.com\n"), 0644); err != nil {
		t.Fatal(err)
	}

	valid := &core.Config{Crawl: models.DefaultCrawlConfig(), Output: core.OutputConfig{BaseDir: "./csp_results"}}

	badCrawl := &core.Config{Crawl: models.DefaultCrawlConfig(), Output: core.OutputConfig{BaseDir: "./csp_results"}}
	badCrawl.Crawl.MaxPages = 0

	noOutput := &core.Config{Crawl: models.DefaultCrawlConfig()}

	tests := []struct {
		name    string
		url     string
		file    string
		cfg     *core.Config
		wantErr bool
	}{
		{"有效URL", "https://example.com", "", valid, false},
		{"URL文件", "", urlFile, valid, false},
		{"URL文件不存在", "", filepath.Join(t.TempDir(), "missing.txt"), valid, true},
		{"URL文件是目录", "", t.TempDir(), valid, true},
		{"缺少目标", "", "", valid, true},
		{"同时指定", "https://example.com", urlFile, valid, true},
		{"无协议", "example.com", "", valid, true},
		{"非HTTP协议", "ftp://example.com", "", valid, true},
		{"无效页面数", "https://example.com", "", badCrawl, true},
		{"空输出目录", "https://example.com", "", noOutput, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFlags(tt.url, tt.file, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPrintPolicySummary(t *testing.T) {
	var buf bytes.Buffer
	policy := models.CSPPolicy{
		"script-src": {"'self'", "cdn.other.com"},
		"img-src":    {"'self'", "a.com", "b.com"},
	}
	printPolicySummary(&buf, policy, []string{"out/csp_policy.json", "out/web.config"})

	out := buf.String()
	for _, want := range []string{
		"out/csp_policy.json",
		"out/web.config",
		"img-src: 'self', a.com, b.com\n",
		"script-src: 'self', cdn.other.com\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("输出缺少 %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "img-src") > strings.Index(out, "script-src") {
		t.Error("指令应按字典序输出")
	}

	buf.Reset()
	printPolicySummary(&buf, models.CSPPolicy{}, nil)
	if !strings.Contains(buf.String(), "未发现外部资源") {
		t.Errorf("空策略输出 = %q", buf.String())
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version 命令失败: %v", err)
	}
	if !strings.Contains(buf.String(), "CSPcrawl "+Version) {
		t.Errorf("输出 = %q", buf.String())
	}
}

func TestRootCommand_ConfigErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	os.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	resetFlags := func() {
		targetURL = ""
		maxPages = 25
		headers = nil
		headersFile = ""
	}
	t.Cleanup(func() {
		os.Chdir(wd)
		resetFlags()
		appConfig = nil
		headerManager = nil
		rootCmd.SetArgs(nil)
	})

	tests := []struct {
		name string
		args []string
	}{
		{"无协议种子", []string{"-u", "example.com"}},
		{"非HTTP种子", []string{"-u", "ftp://example.com"}},
		{"无效页面数", []string{"-u", "https://example.com", "-n", "0"}},
		{"禁止的请求头", []string{"-u", "https://example.com", "-H", "Host: other.com"}},
		{"请求头文件不存在", []string{"-u", "https://example.com", "--headers-file", filepath.Join(dir, "missing.yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			rootCmd.SetArgs(tt.args)
			if err := rootCmd.Execute(); err == nil {
				t.Fatal("期望配置错误")
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			for _, e := range entries {
				t.Errorf("配置错误时不应创建 %s", e.Name())
			}
		})
	}
}

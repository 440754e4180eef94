package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/CSPcrawl/internal/models"
)

func samplePolicy() models.CSPPolicy {
	return models.CSPPolicy{
		"script-src": {"'self'", "cdn.other.com"},
		"img-src":    {"'self'", "img.other.com"},
		"font-src":   {"'self'", "fonts.other.com"},
	}
}

func TestReporter_WritePolicyJSON(t *testing.T) {
	dir := t.TempDir()
	reporter := NewReporter(dir)

	path, err := reporter.WritePolicyJSON(samplePolicy())
	if err != nil {
		t.Fatalf("WritePolicyJSON() error = %v", err)
	}
	if filepath.Base(path) != PolicyJSONFile {
		t.Errorf("文件名错误: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取文件失败: %v", err)
	}

	var decoded map[string][]string
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("JSON无效: %v", err)
	}
	if got := decoded["script-src"]; len(got) != 2 || got[0] != "'self'" || got[1] != "cdn.other.com" {
		t.Errorf("script-src = %v", got)
	}
	if !strings.Contains(string(data), "\n  \"font-src\": [\n    \"'self'\",") {
		t.Errorf("期望2空格缩进:\n%s", data)
	}
}

func TestRenderWebConfig(t *testing.T) {
	out := RenderWebConfig(samplePolicy())

	want := `<add name="Content-Security-Policy" value="font-src 'self' fonts.other.com; img-src 'self' img.other.com; script-src 'self' cdn.other.com;" />`
	if !strings.Contains(out, want) {
		t.Errorf("web.config 缺少头部定义:\n%s", out)
	}

	for _, tag := range []string{"<configuration>", "<system.webServer>", "<httpProtocol>", "<customHeaders>"} {
		if !strings.Contains(out, tag) {
			t.Errorf("web.config 缺少 %s", tag)
		}
	}
	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Error("web.config 缺少XML声明")
	}
}

func TestRenderWebConfig_Escaping(t *testing.T) {
	policy := models.CSPPolicy{"default-src": {"'self'", `a.com"&<b>`}}
	out := RenderWebConfig(policy)
	if !strings.Contains(out, `value="default-src 'self' a.com&quot;&amp;&lt;b&gt;;"`) {
		t.Errorf("属性值未正确转义:\n%s", out)
	}
}

func TestRenderWebConfig_EmptyPolicy(t *testing.T) {
	out := RenderWebConfig(models.CSPPolicy{})
	if !strings.Contains(out, `value=""`) {
		t.Errorf("空策略应产生空头部值:\n%s", out)
	}
}

func TestReporter_WriteAll(t *testing.T) {
	dir := t.TempDir()
	reporter := NewReporter(dir)
	policy := samplePolicy()

	report := &models.CrawlReport{
		Task:        &models.CrawlTask{TargetURL: "https://example.com"},
		Stats:       models.TaskStats{VisitedPages: 2, FailedPages: 1, ExternalURLs: 3},
		Policy:      policy,
		HeaderValue: policy.HeaderValue(),
		FailedPages: []models.FailedPage{{URL: "https://example.com/missing", ErrorType: "http_status"}},
	}

	if _, err := reporter.WriteWebConfig(policy); err != nil {
		t.Fatalf("WriteWebConfig() error = %v", err)
	}
	if _, err := reporter.WriteCrawlReport(report); err != nil {
		t.Fatalf("WriteCrawlReport() error = %v", err)
	}
	mdPath, err := reporter.WriteMarkdownReport(report)
	if err != nil {
		t.Fatalf("WriteMarkdownReport() error = %v", err)
	}

	for _, name := range []string{WebConfigFile, ReportJSONFile, ReportMDFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("文件未生成: %s", name)
		}
	}

	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("读取Markdown失败: %v", err)
	}
	for _, want := range []string{"CSP Crawl Report", "script-src", "cdn.other.com", "https://example.com/missing"} {
		if !strings.Contains(string(md), want) {
			t.Errorf("Markdown报告缺少 %q", want)
		}
	}
}

func TestReporter_UnwritableDir(t *testing.T) {
	reporter := NewReporter(filepath.Join(t.TempDir(), "missing", "dir"))
	report := &models.CrawlReport{Policy: samplePolicy()}

	tests := []struct {
		name  string
		write func() (string, error)
	}{
		{"policy json", func() (string, error) { return reporter.WritePolicyJSON(samplePolicy()) }},
		{"web.config", func() (string, error) { return reporter.WriteWebConfig(samplePolicy()) }},
		{"crawl report", func() (string, error) { return reporter.WriteCrawlReport(report) }},
		{"markdown", func() (string, error) { return reporter.WriteMarkdownReport(report) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := tt.write()
			if err == nil {
				t.Error("期望目录不存在时写入失败")
			}
			if path != "" {
				t.Errorf("失败时不应返回路径, got %q", path)
			}
		})
	}
}

func TestRenderMarkdownReport_NoDirectives(t *testing.T) {
	var buf bytes.Buffer
	report := &models.CrawlReport{Policy: models.CSPPolicy{}}
	if err := RenderMarkdownReport(&buf, report); err != nil {
		t.Fatalf("RenderMarkdownReport() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No external resources found.") {
		t.Errorf("空策略提示缺失:\n%s", buf.String())
	}
}

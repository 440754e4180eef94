package utils

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/RecoveryAshes/CSPcrawl/internal/models"
	"github.com/nao1215/markdown"
	"github.com/schollz/progressbar/v3"
)

// 输出文件名
const (
	PolicyJSONFile = "csp_policy.json"
	WebConfigFile  = "web.config"
	ReportJSONFile = "crawl_report.json"
	ReportMDFile   = "csp_report.md"
)

// webConfigTemplate IIS web.config 固定外壳, %s 为转义后的CSP头部值
const webConfigTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<configuration>
  <system.webServer>
    <httpProtocol>
      <customHeaders>
        <add name="Content-Security-Policy" value="%s" />
      </customHeaders>
    </httpProtocol>
  </system.webServer>
</configuration>`

// 属性值使用双引号包裹,单引号('self')保持原样
var xmlAttrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// Reporter 将策略与报告写入输出目录
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// WritePolicyJSON 写入 csp_policy.json
func (r *Reporter) WritePolicyJSON(policy models.CSPPolicy) (string, error) {
	data, err := policy.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化CSP策略失败: %w", err)
	}
	return r.writeFile(PolicyJSONFile, data)
}

// WriteWebConfig 写入 IIS web.config
func (r *Reporter) WriteWebConfig(policy models.CSPPolicy) (string, error) {
	return r.writeFile(WebConfigFile, []byte(RenderWebConfig(policy)))
}

// WriteCrawlReport 写入 crawl_report.json
func (r *Reporter) WriteCrawlReport(report *models.CrawlReport) (string, error) {
	data, err := report.ToJSON()
	if err != nil {
		return "", fmt.Errorf("序列化爬取报告失败: %w", err)
	}
	return r.writeFile(ReportJSONFile, data)
}

// WriteMarkdownReport 写入 csp_report.md
func (r *Reporter) WriteMarkdownReport(report *models.CrawlReport) (string, error) {
	var buf bytes.Buffer
	if err := RenderMarkdownReport(&buf, report); err != nil {
		return "", fmt.Errorf("渲染Markdown报告失败: %w", err)
	}
	return r.writeFile(ReportMDFile, buf.Bytes())
}

func (r *Reporter) writeFile(name string, data []byte) (string, error) {
	path := filepath.Join(r.outputDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("写入文件失败 [%s]: %w", path, err)
	}
	Debugf("保存文件: %s", path)
	return path, nil
}

// RenderWebConfig 渲染 web.config 内容
func RenderWebConfig(policy models.CSPPolicy) string {
	return fmt.Sprintf(webConfigTemplate, xmlAttrEscaper.Replace(policy.HeaderValue()))
}

// RenderMarkdownReport 渲染人类可读的爬取摘要
func RenderMarkdownReport(w io.Writer, report *models.CrawlReport) error {
	md := markdown.NewMarkdown(w)
	md.H1("CSP Crawl Report")
	md.PlainText("")

	target := ""
	if report.Task != nil {
		target = report.Task.TargetURL
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + target + "`"},
			{"Pages Visited", strconv.Itoa(report.Stats.VisitedPages)},
			{"Pages Failed", strconv.Itoa(report.Stats.FailedPages)},
			{"External URLs", strconv.Itoa(report.Stats.ExternalURLs)},
			{"Duration", fmt.Sprintf("%.2fs", report.Stats.Duration)},
		},
	})
	md.PlainText("")

	md.H2("Directives")
	md.PlainText("")
	if len(report.Policy) == 0 {
		md.PlainText("No external resources found.")
	} else {
		rows := make([][]string, 0, len(report.Policy))
		for _, directive := range report.Policy.Directives() {
			rows = append(rows, []string{"`" + directive + "`", strings.Join(report.Policy[directive], " ")})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Directive", "Sources"},
			Rows:   rows,
		})
	}
	md.PlainText("")

	md.H2("Header")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightText, report.HeaderValue)
	md.PlainText("")

	if len(report.FailedPages) > 0 {
		md.H2("Failed Pages")
		md.PlainText("")
		items := make([]string, 0, len(report.FailedPages))
		for _, fp := range report.FailedPages {
			items = append(items, fmt.Sprintf("%s (%s)", fp.URL, fp.ErrorType))
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	return md.Build()
}

// NewProgressBar 创建进度条 (输出到标准错误)
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

package crawlers

import (
	"regexp"
	"testing"

	"github.com/RecoveryAshes/CSPcrawl/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		url  string
		want models.Directive
	}{
		{"https://cdn.example.com/app.js", models.DirectiveScript},
		{"https://cdn.example.com/app.js?v=2", models.DirectiveScript},
		{"https://cdn.example.com/site.css", models.DirectiveStyle},
		{"https://cdn.example.com/site.css?x=1", models.DirectiveStyle},
		{"https://fonts.example.com/a.woff", models.DirectiveFont},
		{"https://fonts.example.com/a.woff2", models.DirectiveFont},
		{"https://fonts.example.com/a.ttf", models.DirectiveFont},
		{"https://fonts.example.com/a.otf?v=1", models.DirectiveFont},
		{"https://img.example.com/a.jpg", models.DirectiveImg},
		{"https://img.example.com/a.jpeg", models.DirectiveImg},
		{"https://img.example.com/a.png", models.DirectiveImg},
		{"https://img.example.com/a.gif", models.DirectiveImg},
		{"https://img.example.com/a.svg", models.DirectiveImg},
		{"https://img.example.com/a.webp?w=100", models.DirectiveImg},
		{"https://x.example.com/data.json", models.DirectiveConnect},
		{"https://x.example.com/page", models.DirectiveDefault},
		{"https://x.example.com/", models.DirectiveDefault},
		// .json 不应被 .js 规则误匹配
		{"https://x.example.com/a.jsonp", models.DirectiveDefault},
		// 扩展名后跟片段时不匹配
		{"https://x.example.com/a.js#top", models.DirectiveDefault},
		// 大小写敏感
		{"https://x.example.com/APP.JS", models.DirectiveDefault},
		// 扩展名不在路径末尾
		{"https://x.example.com/a.js/page", models.DirectiveDefault},
		// 优先级: .js 优先于 .css
		{"https://x.example.com/a.css?from=b.js", models.DirectiveScript},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := Classify(tt.url); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.url, got, tt.want)
			}
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	urls := []string{
		"https://cdn.example.com/app.js",
		"https://fonts.example.com/a.woff2",
		"https://x.example.com/page",
	}
	for _, u := range urls {
		first := Classify(u)
		for i := 0; i < 5; i++ {
			if got := Classify(u); got != first {
				t.Fatalf("Classify(%q) 第%d次 = %s, 首次 = %s", u, i+2, got, first)
			}
		}
	}
}

func TestClassifier_WithRules(t *testing.T) {
	c := NewClassifier().WithRules(DirectiveRule{
		Pattern:   regexp.MustCompile(`\.mjs(\?|$)`),
		Directive: models.DirectiveScript,
	})

	if got := c.Classify("https://cdn.example.com/mod.mjs"); got != models.DirectiveScript {
		t.Errorf("自定义规则未生效: %s", got)
	}
	if got := c.Classify("https://cdn.example.com/a.css"); got != models.DirectiveStyle {
		t.Errorf("默认规则丢失: %s", got)
	}
	if got := Classify("https://cdn.example.com/mod.mjs"); got != models.DirectiveDefault {
		t.Errorf("WithRules 不应修改默认分类器: %s", got)
	}
}

func TestCompileRules(t *testing.T) {
	rules, err := CompileRules([]models.ClassifierRule{
		{Pattern: `\.mp4(\?|$)`, Directive: "default-src"},
		{Pattern: `/api/`, Directive: "connect-src"},
	})
	if err != nil {
		t.Fatalf("CompileRules() error = %v", err)
	}

	c := NewClassifier().WithRules(rules...)
	tests := []struct {
		url  string
		want models.Directive
	}{
		{"https://media.other.com/v.mp4", models.DirectiveDefault},
		{"https://svc.other.com/api/list", models.DirectiveConnect},
		{"https://svc.other.com/api/app.js", models.DirectiveConnect},
		{"https://cdn.other.com/app.js", models.DirectiveScript},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.url); got != tt.want {
			t.Errorf("Classify(%s) = %s, want %s", tt.url, got, tt.want)
		}
	}

	if rules, err := CompileRules(nil); err != nil || len(rules) != 0 {
		t.Errorf("CompileRules(nil) = %v, %v", rules, err)
	}
	for _, bad := range []models.ClassifierRule{
		{Pattern: `(`, Directive: "img-src"},
		{Pattern: `\.mp4$`, Directive: "media-src"},
	} {
		if _, err := CompileRules([]models.ClassifierRule{bad}); err == nil {
			t.Errorf("CompileRules(%+v) 应返回错误", bad)
		}
	}
}

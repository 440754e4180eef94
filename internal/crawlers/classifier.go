package crawlers

import (
	"fmt"
	"regexp"

	"github.com/RecoveryAshes/CSPcrawl/internal/models"
)

// DirectiveRule 扩展名规则: URL匹配Pattern时归入Directive
type DirectiveRule struct {
	Pattern   *regexp.Regexp
	Directive models.Directive
}

// DefaultDirectiveRules 默认分类规则,按优先级排列,首个匹配即生效
// 扩展名必须位于URL末尾或紧跟查询串'?',大小写敏感
var DefaultDirectiveRules = []DirectiveRule{
	{Pattern: regexp.MustCompile(`\.js(\?|$)`), Directive: models.DirectiveScript},
	{Pattern: regexp.MustCompile(`\.css(\?|$)`), Directive: models.DirectiveStyle},
	{Pattern: regexp.MustCompile(`\.(woff2?|ttf|otf)(\?|$)`), Directive: models.DirectiveFont},
	{Pattern: regexp.MustCompile(`\.(jpg|jpeg|png|gif|svg|webp)(\?|$)`), Directive: models.DirectiveImg},
	{Pattern: regexp.MustCompile(`\.json(\?|$)`), Directive: models.DirectiveConnect},
}

// Classifier 基于扩展名的资源分类器
// 只看URL字符串,不发HEAD请求校验MIME类型
type Classifier struct {
	rules []DirectiveRule
}

// NewClassifier 使用默认规则创建分类器
func NewClassifier() *Classifier {
	return &Classifier{rules: DefaultDirectiveRules}
}

// WithRules 返回在默认规则之前追加extra规则的新分类器
func (c *Classifier) WithRules(extra ...DirectiveRule) *Classifier {
	rules := make([]DirectiveRule, 0, len(extra)+len(c.rules))
	rules = append(rules, extra...)
	rules = append(rules, c.rules...)
	return &Classifier{rules: rules}
}

// CompileRules 将配置中的附加规则编译为分类规则
func CompileRules(rules []models.ClassifierRule) ([]DirectiveRule, error) {
	compiled := make([]DirectiveRule, 0, len(rules))
	for i, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("规则[%d]: %w", i, err)
		}
		compiled = append(compiled, DirectiveRule{
			Pattern:   regexp.MustCompile(rule.Pattern),
			Directive: models.Directive(rule.Directive),
		})
	}
	return compiled, nil
}

// Classify 返回URL对应的CSP指令,无匹配时为default-src
func (c *Classifier) Classify(rawURL string) models.Directive {
	for _, rule := range c.rules {
		if rule.Pattern.MatchString(rawURL) {
			return rule.Directive
		}
	}
	return models.DirectiveDefault
}

var defaultClassifier = NewClassifier()

// Classify 使用默认规则分类
func Classify(rawURL string) models.Directive {
	return defaultClassifier.Classify(rawURL)
}

package crawlers

import (
	"sort"

	"github.com/RecoveryAshes/CSPcrawl/internal/models"
	"github.com/rs/zerolog/log"
)

// PolicyBuilder 将外部资源URL聚合为CSP策略
type PolicyBuilder struct {
	classifier *Classifier
}

// NewPolicyBuilder 创建策略构建器, classifier为nil时使用默认规则
func NewPolicyBuilder(classifier *Classifier) *PolicyBuilder {
	if classifier == nil {
		classifier = defaultClassifier
	}
	return &PolicyBuilder{classifier: classifier}
}

// Build 构建CSP策略
// 处理流程:
//  1. 对每个URL分类得到指令
//  2. 取URL的host(含端口,不含协议),加入该指令的来源集合
//  3. 每个出现过的指令追加 'self'
//  4. 来源排序输出
//
// 空输入返回空策略;取不到主机的URL被跳过
func (b *PolicyBuilder) Build(externalURLs URLSet) models.CSPPolicy {
	sources := make(map[models.Directive]map[string]struct{})

	for rawURL := range externalURLs {
		host := urlHost(rawURL)
		if host == "" {
			log.Debug().Str("url", rawURL).Msg("跳过无主机的外部URL")
			continue
		}

		directive := b.classifier.Classify(rawURL)
		if sources[directive] == nil {
			sources[directive] = make(map[string]struct{})
		}
		sources[directive][host] = struct{}{}
	}

	policy := make(models.CSPPolicy, len(sources))
	for directive, hosts := range sources {
		hosts[models.SelfSource] = struct{}{}

		list := make([]string, 0, len(hosts))
		for h := range hosts {
			list = append(list, h)
		}
		sort.Strings(list)
		policy[string(directive)] = list
	}

	return policy
}

// BuildPolicy 使用默认分类规则构建策略
func BuildPolicy(externalURLs URLSet) models.CSPPolicy {
	return NewPolicyBuilder(nil).Build(externalURLs)
}

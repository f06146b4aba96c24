package crawlers

import (
	"fmt"
	"regexp"
	"strings"
)

// 拒绝原因
const (
	RejectNoFragment = "不含片段路由标记"
	RejectOutOfScope = "不在入口URL范围内"
	RejectIgnored    = "匹配忽略规则"
	RejectDuplicate  = "已发现"
	RejectUnmappable = "无法映射为快照路径"
)

// CompileIgnorePatterns 编译忽略规则
func CompileIgnorePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// DiscoveryFilter 判断发现的链接是否需要爬取
type DiscoveryFilter struct {
	startURL string
	ignore   []*regexp.Regexp
	registry *Registry
}

// NewDiscoveryFilter 创建过滤器
func NewDiscoveryFilter(startURL string, ignore []*regexp.Regexp, registry *Registry) *DiscoveryFilter {
	return &DiscoveryFilter{
		startURL: startURL,
		ignore:   ignore,
		registry: registry,
	}
}

// Consider 依次检查片段标记、范围(含快照路径)、忽略规则, 最后原子地加入已发现集合
// 被拒绝的链接不会产生任何副作用
func (f *DiscoveryFilter) Consider(candidate string) (bool, string) {
	if !strings.Contains(candidate, FragmentMarker) {
		return false, RejectNoFragment
	}
	if !strings.HasPrefix(candidate, f.startURL) {
		return false, RejectOutOfScope
	}
	if _, err := MapToPath(candidate, f.startURL); err != nil {
		return false, RejectUnmappable
	}
	for _, re := range f.ignore {
		if re.MatchString(candidate) {
			return false, RejectIgnored + ": " + re.String()
		}
	}
	if !f.registry.TryAdd(candidate) {
		return false, RejectDuplicate
	}
	return true, ""
}

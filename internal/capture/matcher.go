package capture

import (
	"regexp"
	"strings"
)

// IgnorePathMatcher suppresses capture for configured paths. Entries match
// exactly or, when they contain "*", as an anchored wildcard where "*"
// spans any substring including "/". Matching is case-sensitive and the
// first matching rule wins.
type IgnorePathMatcher struct {
	rules []ignoreRule
}

type ignoreRule struct {
	exact   string
	pattern *regexp.Regexp
}

func NewIgnorePathMatcher(paths []string) *IgnorePathMatcher {
	rules := make([]ignoreRule, 0, len(paths))
	for _, p := range paths {
		entry := normalizePath(p)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "*") {
			quoted := regexp.QuoteMeta(entry)
			expr := "^" + strings.ReplaceAll(quoted, `\*`, ".*") + "$"
			rules = append(rules, ignoreRule{pattern: regexp.MustCompile(expr)})
			continue
		}
		rules = append(rules, ignoreRule{exact: entry})
	}
	return &IgnorePathMatcher{rules: rules}
}

func (m *IgnorePathMatcher) ShouldIgnore(path string) bool {
	normalized := normalizePath(path)
	for _, rule := range m.rules {
		if rule.pattern != nil {
			if rule.pattern.MatchString(normalized) {
				return true
			}
			continue
		}
		if rule.exact == normalized {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	return strings.TrimPrefix(path, "/")
}

package crawlers

import "sort"

// URLSet URL字符串集合
type URLSet map[string]struct{}

// NewURLSet 由给定URL创建集合
func NewURLSet(urls ...string) URLSet {
	s := make(URLSet, len(urls))
	for _, u := range urls {
		s.Add(u)
	}
	return s
}

// Add 添加URL
func (s URLSet) Add(u string) {
	s[u] = struct{}{}
}

// Has 是否包含URL
func (s URLSet) Has(u string) bool {
	_, ok := s[u]
	return ok
}

// Merge 合并另一个集合
func (s URLSet) Merge(other URLSet) {
	for u := range other {
		s[u] = struct{}{}
	}
}

// Sorted 返回排序后的URL列表
func (s URLSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

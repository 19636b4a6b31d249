package domain

import (
	"regexp"
	"sort"
	"strings"
)

// RatingEntry 是某个用户对一部电影的评分记录。
//
// 约束：
// - Rating 取值 0.5–5.0（半星步进）；没有评分的条目不会进入 RatingProfile
// - 创建后不再修改（按值传递）
type RatingEntry struct {
	Title      string  `json:"title"`
	Rating     float64 `json:"rating"`
	ExternalID string  `json:"external_id,omitempty"` // 来源站点的 slug；未知时为空
	URL        string  `json:"url,omitempty"`
}

// RatingProfile 是 规范化标题 -> RatingEntry 的映射。
// 只归属于单次抓取的调用方，不跨请求共享。
type RatingProfile map[string]RatingEntry

// Put 按规范化标题写入；同名标题后写覆盖先写。
// rating 不在合法范围内的条目直接丢弃。
func (p RatingProfile) Put(e RatingEntry) bool {
	key := NormalizeTitle(e.Title)
	if key == "" || !ValidRating(e.Rating) {
		return false
	}
	e.Title = key
	p[key] = e
	return true
}

// Titles 返回按字典序排序的标题列表（用于确定性遍历）。
func (p RatingProfile) Titles() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ValidRating 判断 r 是否为 0.5–5.0 之间的半星评分。
func ValidRating(r float64) bool {
	if r < 0.5 || r > 5.0 {
		return false
	}
	return r*2 == float64(int(r*2))
}

var yearSuffixRE = regexp.MustCompile(`\s*\(\d{4}[^)]*\)\s*$`)

// NormalizeTitle 去掉末尾的年份后缀（如 " (1999)"），并折叠空白。大小写保持不变。
func NormalizeTitle(s string) string {
	s = yearSuffixRE.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

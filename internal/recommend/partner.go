package recommend

import (
	"sort"

	"github.com/John-Robertt/boxdmatch/internal/domain"
)

const (
	PartnerPickThreshold = 4.0
	DefaultPartnerPicks  = 10
)

// PartnerPicks 返回 from 打了 4 星及以上、而 to 没有评过（按规范化标题精确比较）的电影。
// 排序：评分降序，同分按标题升序；最多 limit 条（<=0 时使用默认值）。
func PartnerPicks(from, to domain.RatingProfile, limit int) []domain.PartnerPick {
	if limit <= 0 {
		limit = DefaultPartnerPicks
	}
	out := []domain.PartnerPick{}
	for title, e := range from {
		if e.Rating < PartnerPickThreshold {
			continue
		}
		if _, ok := to[title]; ok {
			continue
		}
		out = append(out, domain.PartnerPick{Title: e.Title, Rating: e.Rating, ExternalID: e.ExternalID, URL: e.URL})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Title < out[j].Title
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

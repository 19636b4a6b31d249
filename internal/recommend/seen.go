package recommend

import (
	"strings"

	"github.com/John-Robertt/boxdmatch/internal/catalog"
	"github.com/John-Robertt/boxdmatch/internal/domain"
)

// seenIndex 判断目录条目是否已被看过：目录标题与任一已评分标题互相包含即视为看过。
// 结果按下标缓存，同一次推荐内每个条目只比对一次。
type seenIndex struct {
	store  *catalog.Store
	titles []string
	memo   map[int]bool
}

func newSeenIndex(store *catalog.Store, profiles ...domain.RatingProfile) *seenIndex {
	s := &seenIndex{store: store, memo: map[int]bool{}}
	for _, p := range profiles {
		for title := range p {
			t := strings.ToLower(strings.TrimSpace(title))
			if t != "" {
				s.titles = append(s.titles, t)
			}
		}
	}
	return s
}

func (s *seenIndex) has(i int) bool {
	if v, ok := s.memo[i]; ok {
		return v
	}
	lt := s.store.LowerTitle(i)
	hit := false
	if lt != "" {
		for _, t := range s.titles {
			if strings.Contains(lt, t) || strings.Contains(t, lt) {
				hit = true
				break
			}
		}
	}
	s.memo[i] = hit
	return hit
}

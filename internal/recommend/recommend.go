// Package recommend 基于 genre 偏好从目录中挑选推荐电影。
package recommend

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/John-Robertt/boxdmatch/internal/catalog"
	"github.com/John-Robertt/boxdmatch/internal/domain"
)

const (
	DefaultPopularityFloor = 1000

	// TopGenres 是一次推荐最多考察的 genre 数。
	TopGenres = 7

	singleWeightFactor = 0.7
	maxWinnersPerGenre = 4

	meanWeight       = 0.6
	jitterWeight     = 1.5
	popularityWeight = 0.1
)

// Rand 是推荐过程用到的随机源；*math/rand.Rand 满足该接口。
type Rand interface {
	Float64() float64
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// Recommender 不是并发安全的（Rand 有内部状态）；每次调用方应使用独立实例。
type Recommender struct {
	Catalog         *catalog.Store
	Rand            Rand
	PopularityFloor int // <=0 时使用 DefaultPopularityFloor
}

// Recommend 根据两个 genre 偏好（任一可为空）生成最多 limit 条推荐。
//
// rA/rB 中出现过的标题（双向包含、大小写不敏感）不会被推荐；同一部电影不会出现两次。
// 组合后的偏好为空时返回非 nil 的空切片。
func (r *Recommender) Recommend(gA, gB domain.GenreProfile, rA, rB domain.RatingProfile, limit int) []domain.RecommendationItem {
	out := []domain.RecommendationItem{}
	if r.Catalog == nil || limit <= 0 {
		return out
	}
	rnd := r.random()

	genres := TopGenreNames(Combine(gA, gB), TopGenres)
	if len(genres) == 0 {
		return out
	}
	rnd.Shuffle(len(genres), func(i, j int) { genres[i], genres[j] = genres[j], genres[i] })

	seen := newSeenIndex(r.Catalog, rA, rB)
	emitted := map[string]struct{}{} // 小写标题
	floor := r.floor()

	type scored struct {
		idx   int
		score float64
	}

	for _, genre := range genres {
		if len(out) >= limit {
			break
		}

		var cands []scored
		byTitle := map[string]int{} // 同名条目只保留得分最高的一条
		for i := 0; i < r.Catalog.Len(); i++ {
			if !r.Catalog.HasGenre(i, genre) {
				continue
			}
			e := r.Catalog.Entry(i)
			if e.RatingCount < floor {
				continue
			}
			title := r.Catalog.LowerTitle(i)
			if _, dup := emitted[title]; dup || seen.has(i) {
				continue
			}
			c := scored{
				idx:   i,
				score: e.MeanRating*meanWeight + rnd.Float64()*jitterWeight + math.Log(float64(e.RatingCount)+1)*popularityWeight,
			}
			if k, ok := byTitle[title]; ok {
				if c.score > cands[k].score {
					cands[k] = c
				}
				continue
			}
			byTitle[title] = len(cands)
			cands = append(cands, c)
		}
		if len(cands) == 0 {
			continue
		}

		sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
		winners := 1 + rnd.Intn(min(maxWinnersPerGenre, len(cands)))

		for _, c := range cands[:winners] {
			if len(out) >= limit {
				break
			}
			emitted[r.Catalog.LowerTitle(c.idx)] = struct{}{}
			out = append(out, item(r.Catalog.Entry(c.idx), genre))
		}
	}
	return out
}

// Staples 返回每个喜欢的 genre 中“评分最高、最热门”的 perGenre 部电影（确定性，不使用 Rand）。
// genre 按权重降序遍历；exclude 中已有的电影与看过的电影都会跳过。
func (r *Recommender) Staples(g domain.GenreProfile, seenBy domain.RatingProfile, exclude []domain.RecommendationItem, perGenre int) []domain.RecommendationItem {
	out := []domain.RecommendationItem{}
	if r.Catalog == nil || perGenre <= 0 {
		return out
	}

	taken := map[string]struct{}{}
	for _, it := range exclude {
		taken[strings.ToLower(it.Title)] = struct{}{}
	}
	seen := newSeenIndex(r.Catalog, seenBy, nil)
	floor := r.floor()

	for _, genre := range TopGenreNames(g, 0) {
		var idx []int
		for i := 0; i < r.Catalog.Len(); i++ {
			if !r.Catalog.HasGenre(i, genre) || seen.has(i) {
				continue
			}
			if r.Catalog.Entry(i).RatingCount < floor {
				continue
			}
			if _, ok := taken[r.Catalog.LowerTitle(i)]; ok {
				continue
			}
			idx = append(idx, i)
		}
		sort.SliceStable(idx, func(a, b int) bool {
			ea, eb := r.Catalog.Entry(idx[a]), r.Catalog.Entry(idx[b])
			if ea.MeanRating != eb.MeanRating {
				return ea.MeanRating > eb.MeanRating
			}
			return ea.RatingCount > eb.RatingCount
		})
		if len(idx) > perGenre {
			idx = idx[:perGenre]
		}
		for _, i := range idx {
			taken[r.Catalog.LowerTitle(i)] = struct{}{}
			out = append(out, item(r.Catalog.Entry(i), genre))
		}
	}
	return out
}

// Combine 合并两个偏好：两边都有的 genre 取平均，只有一边的乘 0.7。空白 genre 丢弃。
func Combine(a, b domain.GenreProfile) domain.GenreProfile {
	out := domain.GenreProfile{}
	for g, w := range a {
		if strings.TrimSpace(g) == "" {
			continue
		}
		if wb, ok := b[g]; ok {
			out[g] = (w + wb) / 2
		} else {
			out[g] = w * singleWeightFactor
		}
	}
	for g, w := range b {
		if strings.TrimSpace(g) == "" {
			continue
		}
		if _, ok := a[g]; !ok {
			out[g] = w * singleWeightFactor
		}
	}
	return out
}

// TopGenreNames 按权重降序（同权重按名称升序）返回前 n 个 genre；n<=0 表示全部。
func TopGenreNames(g domain.GenreProfile, n int) []string {
	names := make([]string, 0, len(g))
	for name := range g {
		if strings.TrimSpace(name) == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		wi, wj := g[names[i]], g[names[j]]
		if wi != wj {
			return wi > wj
		}
		return names[i] < names[j]
	})
	if n > 0 && len(names) > n {
		names = names[:n]
	}
	return names
}

func item(e domain.CatalogEntry, genre string) domain.RecommendationItem {
	return domain.RecommendationItem{
		Title:       e.Title,
		URL:         e.URL,
		Genre:       genre,
		MeanRating:  e.MeanRating,
		RatingCount: e.RatingCount,
		Reason:      fmt.Sprintf("Highly rated %s film (★%.1f)", genre, e.MeanRating),
	}
}

func (r *Recommender) floor() int {
	if r.PopularityFloor <= 0 {
		return DefaultPopularityFloor
	}
	return r.PopularityFloor
}

func (r *Recommender) random() Rand {
	if r.Rand != nil {
		return r.Rand
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

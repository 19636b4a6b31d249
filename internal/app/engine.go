// Package app 编排抓取、打分与推荐，对外提供 Compare/Analyze 两个用例。
package app

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/John-Robertt/boxdmatch/internal/catalog"
	"github.com/John-Robertt/boxdmatch/internal/compat"
	"github.com/John-Robertt/boxdmatch/internal/domain"
	"github.com/John-Robertt/boxdmatch/internal/metrics"
	"github.com/John-Robertt/boxdmatch/internal/prefs"
	"github.com/John-Robertt/boxdmatch/internal/recommend"
)

const (
	DefaultSoloCap      = 20
	DefaultPairCap      = 15
	DefaultPartnerPicks = recommend.DefaultPartnerPicks
	TopMoviesLimit      = 10
	staplesPerGenre     = 2
)

// Engine 是纯计算部分：给定两个（或一个）profile，产出结果。不做任何 IO。
//
// Engine 本身只读，可并发使用；每次调用通过 NewRand 取得独立随机源。
type Engine struct {
	Catalog *catalog.Store

	SoloCap         int
	PairCap         int
	PopularityFloor int
	PartnerPicks    int

	// NewRand 为 nil 时使用按时间播种的 math/rand。
	NewRand func() recommend.Rand
}

// Compare 对两个 profile 打分并生成三组推荐与双向的“对方高分片”。
func (e *Engine) Compare(a, b domain.RatingProfile) domain.CompareResult {
	score, overlap := compat.Score(a, b)

	gA := prefs.Build(a, e.Catalog)
	gB := prefs.Build(b, e.Catalog)
	rec := e.recommender()
	limit := orDefault(e.PairCap, DefaultPairCap)

	res := domain.CompareResult{
		Score:                 score,
		OverlapCount:          overlap,
		RecommendationsForA:   rec.Recommend(gA, nil, a, nil, limit),
		RecommendationsForB:   rec.Recommend(gB, nil, b, nil, limit),
		MutualRecommendations: rec.Recommend(gA, gB, a, b, limit),
		PartnerPicksForA:      recommend.PartnerPicks(b, a, e.PartnerPicks),
		PartnerPicksForB:      recommend.PartnerPicks(a, b, e.PartnerPicks),
	}

	metrics.Recommendations.WithLabelValues("single").Add(float64(len(res.RecommendationsForA) + len(res.RecommendationsForB)))
	metrics.Recommendations.WithLabelValues("mutual").Add(float64(len(res.MutualRecommendations)))
	return res
}

// AnalyzeSolo 统计单个 profile，并给出个人推荐（随机推荐 + 各 genre 的高分“必看”补齐到上限）。
func (e *Engine) AnalyzeSolo(p domain.RatingProfile) domain.SoloResult {
	g := prefs.Build(p, e.Catalog)
	rec := e.recommender()
	limit := orDefault(e.SoloCap, DefaultSoloCap)

	recs := rec.Recommend(g, nil, p, nil, limit)
	if len(recs) < limit {
		recs = append(recs, rec.Staples(g, p, recs, staplesPerGenre)...)
		if len(recs) > limit {
			recs = recs[:limit]
		}
	}
	metrics.Recommendations.WithLabelValues("solo").Add(float64(len(recs)))

	return domain.SoloResult{
		Stats:           Stats(p),
		TopMovies:       TopMovies(p, TopMoviesLimit),
		Recommendations: recs,
	}
}

func (e *Engine) recommender() *recommend.Recommender {
	var r recommend.Rand
	if e.NewRand != nil {
		r = e.NewRand()
	} else {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &recommend.Recommender{Catalog: e.Catalog, Rand: r, PopularityFloor: e.PopularityFloor}
}

// SeededRand 返回一个每次调用都用同一 seed 播种的 NewRand（用于可复现输出）。
func SeededRand(seed int64) func() recommend.Rand {
	return func() recommend.Rand { return rand.New(rand.NewSource(seed)) }
}

// Stats 计算评分分布。空 profile 返回零值。
func Stats(p domain.RatingProfile) domain.UserStats {
	if len(p) == 0 {
		return domain.UserStats{}
	}

	st := domain.UserStats{TotalMovies: len(p), LowestRated: math.Inf(1)}
	freq := map[float64]int{}
	var sum float64
	for _, e := range p {
		r := e.Rating
		sum += r
		freq[r]++
		st.HighestRated = math.Max(st.HighestRated, r)
		st.LowestRated = math.Min(st.LowestRated, r)

		switch {
		case r == 5.0:
			st.Distribution.FiveStars++
		case r == 4.5:
			st.Distribution.FourHalfStars++
		case r == 4.0:
			st.Distribution.FourStars++
		case r == 3.5:
			st.Distribution.ThreeHalfStars++
		case r == 3.0:
			st.Distribution.ThreeStars++
		default:
			st.Distribution.BelowThree++
		}
	}
	st.AverageRating = math.Round(sum/float64(len(p))*10) / 10

	// 众数；并列时取较小的评分
	best := -1
	for r, n := range freq {
		if n > best || (n == best && r < st.MostCommonRating) {
			best, st.MostCommonRating = n, r
		}
	}
	return st
}

// TopMovies 返回评分最高的 n 部（同分按标题升序）。
func TopMovies(p domain.RatingProfile, n int) []domain.RatingEntry {
	out := make([]domain.RatingEntry, 0, len(p))
	for _, e := range p {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Title < out[j].Title
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

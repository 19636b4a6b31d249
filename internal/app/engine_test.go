package app

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/John-Robertt/boxdmatch/internal/catalog"
	"github.com/John-Robertt/boxdmatch/internal/domain"
)

func testStore() *catalog.Store {
	var e []domain.CatalogEntry
	for _, g := range []string{"Action", "Drama", "Comedy", "Horror"} {
		for i := 1; i <= 8; i++ {
			e = append(e, domain.CatalogEntry{
				Title:       fmt.Sprintf("%s Film %d", g, i),
				Genres:      []string{g},
				MeanRating:  3.0 + float64(i)*0.1,
				RatingCount: 1000 * i,
			})
		}
	}
	e = append(e,
		domain.CatalogEntry{Title: "Heat", Genres: []string{"Action", "Crime"}, MeanRating: 4.1, RatingCount: 300000},
		domain.CatalogEntry{Title: "Paddington 2", Genres: []string{"Comedy"}, MeanRating: 4.3, RatingCount: 200000},
		domain.CatalogEntry{Title: "Alien", Genres: []string{"Horror"}, MeanRating: 4.2, RatingCount: 400000},
	)
	return catalog.New(e)
}

func rp(pairs ...any) domain.RatingProfile {
	p := domain.RatingProfile{}
	for i := 0; i+1 < len(pairs); i += 2 {
		p.Put(domain.RatingEntry{Title: pairs[i].(string), Rating: pairs[i+1].(float64)})
	}
	return p
}

func TestEngine_Compare(t *testing.T) {
	e := &Engine{Catalog: testStore(), NewRand: SeededRand(1)}
	a := rp("Heat", 5.0, "Alien", 4.0)
	b := rp("Heat", 4.0, "Alien", 3.0, "Paddington 2", 4.5)

	res := e.Compare(a, b)
	if res.Score != 80.0 || res.OverlapCount != 2 {
		t.Fatalf("Score=(%v,%d)，期望 (80,2)", res.Score, res.OverlapCount)
	}
	for name, recs := range map[string][]domain.RecommendationItem{
		"for_a":  res.RecommendationsForA,
		"for_b":  res.RecommendationsForB,
		"mutual": res.MutualRecommendations,
	} {
		if len(recs) == 0 || len(recs) > DefaultPairCap {
			t.Fatalf("%s 推荐数=%d", name, len(recs))
		}
	}
	for _, it := range res.MutualRecommendations {
		lt := strings.ToLower(it.Title)
		if lt == "heat" || lt == "alien" || lt == "paddington 2" {
			t.Fatalf("mutual 推荐了任意一方看过的 %q", it.Title)
		}
	}
	if len(res.PartnerPicksForA) != 1 || res.PartnerPicksForA[0].Title != "Paddington 2" {
		t.Fatalf("PartnerPicksForA=%v", res.PartnerPicksForA)
	}
	if len(res.PartnerPicksForB) != 0 {
		t.Fatalf("PartnerPicksForB 应为空：%v", res.PartnerPicksForB)
	}
}

func TestEngine_CompareEmptyProfiles(t *testing.T) {
	e := &Engine{Catalog: testStore(), NewRand: SeededRand(1)}
	res := e.Compare(domain.RatingProfile{}, domain.RatingProfile{})
	if res.Score != 0 || res.OverlapCount != 0 {
		t.Fatalf("空 profile 应为 0 分")
	}
	if res.RecommendationsForA == nil || len(res.MutualRecommendations) != 0 {
		t.Fatalf("空 profile 的推荐应为非 nil 空切片")
	}
}

func TestEngine_SeededIsReproducible(t *testing.T) {
	store := testStore()
	a := rp("Heat", 5.0, "Alien", 4.5, "Paddington 2", 4.0)
	b := rp("Alien", 4.0)

	r1 := (&Engine{Catalog: store, NewRand: SeededRand(99)}).Compare(a, b)
	r2 := (&Engine{Catalog: store, NewRand: SeededRand(99)}).Compare(a, b)
	if !reflect.DeepEqual(r1, r2) {
		t.Fatalf("相同 seed 结果不同")
	}
}

func TestEngine_AnalyzeSoloToppedUp(t *testing.T) {
	e := &Engine{Catalog: testStore(), NewRand: SeededRand(3), SoloCap: 12}
	p := rp("Heat", 5.0, "Alien", 4.5, "Paddington 2", 4.0, "Drama Film 8", 4.0, "Drama Film 1", 2.0)

	res := e.AnalyzeSolo(p)
	if len(res.Recommendations) != 12 {
		t.Fatalf("个人推荐应补齐到上限 12，实际 %d", len(res.Recommendations))
	}
	seen := map[string]bool{}
	for _, it := range res.Recommendations {
		if seen[it.Title] {
			t.Fatalf("重复推荐 %q", it.Title)
		}
		seen[it.Title] = true
		if it.Title == "Heat" || it.Title == "Drama Film 1" || it.Title == "Drama Film 8" {
			t.Fatalf("推荐了看过的电影 %q", it.Title)
		}
	}
	if res.Stats.TotalMovies != 5 || len(res.TopMovies) != 5 || res.TopMovies[0].Title != "Heat" {
		t.Fatalf("统计/Top 不符：%+v %v", res.Stats, res.TopMovies)
	}
}

func TestStats(t *testing.T) {
	p := rp("A", 5.0, "B", 4.5, "C", 4.0, "D", 4.0, "E", 3.5, "F", 3.0, "G", 1.0, "H", 3.0)
	st := Stats(p)

	want := domain.UserStats{
		TotalMovies:      8,
		AverageRating:    3.5,
		HighestRated:     5.0,
		LowestRated:      1.0,
		MostCommonRating: 3.0,
		Distribution: domain.RatingDistribution{
			FiveStars: 1, FourHalfStars: 1, FourStars: 2, ThreeHalfStars: 1, ThreeStars: 2, BelowThree: 1,
		},
	}
	if st != want {
		t.Fatalf("Stats=%+v\n期望 %+v", st, want)
	}
	if (Stats(nil) != domain.UserStats{}) {
		t.Fatalf("空 profile 应为零值")
	}
}

func TestTopMovies_Order(t *testing.T) {
	p := rp("B", 4.0, "A", 4.0, "C", 5.0, "D", 1.0)
	got := TopMovies(p, 3)
	var titles []string
	for _, e := range got {
		titles = append(titles, e.Title)
	}
	if want := []string{"C", "A", "B"}; !reflect.DeepEqual(titles, want) {
		t.Fatalf("TopMovies=%v，期望 %v", titles, want)
	}
}

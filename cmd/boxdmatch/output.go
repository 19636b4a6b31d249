package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/John-Robertt/boxdmatch/internal/domain"
)

// emitCompare：stdout 非 TTY 时必须且仅输出一个 JSON；TTY 时输出人类可读摘要。
func emitCompare(w io.Writer, tty bool, rep domain.CompareReport) {
	if !tty {
		_ = json.NewEncoder(w).Encode(rep)
		return
	}

	fmt.Fprintf(w, "%s × %s：相似度 %.2f（共同评分 %d 部；%s %d 部，%s %d 部）\n",
		rep.UserA, rep.UserB, rep.Score, rep.OverlapCount, rep.UserA, rep.EntriesA, rep.UserB, rep.EntriesB)

	writeRecs(w, "一起看", rep.MutualRecommendations)
	writeRecs(w, "推荐给 "+rep.UserA, rep.RecommendationsForA)
	writeRecs(w, "推荐给 "+rep.UserB, rep.RecommendationsForB)
	writePicks(w, rep.UserB+" 的高分片（"+rep.UserA+" 未看）", rep.PartnerPicksForA)
	writePicks(w, rep.UserA+" 的高分片（"+rep.UserB+" 未看）", rep.PartnerPicksForB)
}

func emitSolo(w io.Writer, tty bool, rep domain.SoloReport) {
	if !tty {
		_ = json.NewEncoder(w).Encode(rep)
		return
	}

	st := rep.Stats
	fmt.Fprintf(w, "%s：%d 部已评分，平均 %.1f，最高 %.1f，最低 %.1f，最常见 %.1f\n",
		rep.Username, st.TotalMovies, st.AverageRating, st.HighestRated, st.LowestRated, st.MostCommonRating)
	d := st.Distribution
	fmt.Fprintf(w, "分布：5★=%d 4.5★=%d 4★=%d 3.5★=%d 3★=%d <3★=%d\n",
		d.FiveStars, d.FourHalfStars, d.FourStars, d.ThreeHalfStars, d.ThreeStars, d.BelowThree)

	if len(rep.TopMovies) > 0 {
		fmt.Fprintln(w, "最爱：")
		for _, e := range rep.TopMovies {
			fmt.Fprintf(w, "  - %s ★%.1f\n", e.Title, e.Rating)
		}
	}
	writeRecs(w, "推荐", rep.Recommendations)
}

func writeRecs(w io.Writer, title string, recs []domain.RecommendationItem) {
	if len(recs) == 0 {
		fmt.Fprintf(w, "%s：（无）\n", title)
		return
	}
	fmt.Fprintf(w, "%s：\n", title)
	for _, it := range recs {
		fmt.Fprintf(w, "  - %s · %s\n", it.Title, it.Reason)
	}
}

func writePicks(w io.Writer, title string, picks []domain.PartnerPick) {
	if len(picks) == 0 {
		return
	}
	fmt.Fprintf(w, "%s：\n", title)
	for _, p := range picks {
		fmt.Fprintf(w, "  - %s ★%.1f\n", p.Title, p.Rating)
	}
}

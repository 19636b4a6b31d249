// Package prefs 把一个用户的评分折算成 genre 偏好权重。
package prefs

import (
	"strings"

	"github.com/John-Robertt/boxdmatch/internal/catalog"
	"github.com/John-Robertt/boxdmatch/internal/domain"
)

// LikedThreshold 以上（含）的评分才计入偏好。
const LikedThreshold = 3.5

// Build 对 profile 中每个“喜欢”的条目，找到目录里第一个标题包含它的电影，
// 把评分累加到该电影的每个 genre 上。
//
// 遍历顺序固定（标题字典序），因此浮点累加结果可复现。找不到匹配的条目不贡献权重。
func Build(profile domain.RatingProfile, store *catalog.Store) domain.GenreProfile {
	out := domain.GenreProfile{}
	if store == nil {
		return out
	}
	for _, title := range profile.Titles() {
		e := profile[title]
		if e.Rating < LikedThreshold {
			continue
		}
		i, ok := store.MatchTitle(title)
		if !ok {
			continue
		}
		for _, g := range store.Entry(i).Genres {
			if strings.TrimSpace(g) == "" {
				continue
			}
			out[g] += e.Rating
		}
	}
	return out
}

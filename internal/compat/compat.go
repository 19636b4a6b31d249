// Package compat 计算两个评分 profile 的口味相似度。
package compat

import (
	"math"

	"github.com/John-Robertt/boxdmatch/internal/domain"
)

// penaltyPerStar 是平均每差 1 星扣掉的分数。
const penaltyPerStar = 20

// Score 返回 [0,100] 的相似度（两位小数）与共同评分的电影数。
//
// 没有共同电影时返回 (0, 0)。函数对参数对称：共同标题按字典序累加，结果与 map 遍历顺序无关。
func Score(a, b domain.RatingProfile) (float64, int) {
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	var shared []string
	for _, title := range small.Titles() {
		if _, ok := large[title]; ok {
			shared = append(shared, title)
		}
	}
	if len(shared) == 0 {
		return 0, 0
	}

	var sum float64
	for _, title := range shared {
		sum += math.Abs(a[title].Rating - b[title].Rating)
	}
	meanDiff := sum / float64(len(shared))

	return round2(math.Max(0, 100-meanDiff*penaltyPerStar)), len(shared)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

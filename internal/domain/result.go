package domain

// RecommendationItem 是推荐结果中的一条。
type RecommendationItem struct {
	Title       string  `json:"title"`
	URL         string  `json:"url,omitempty"`
	Genre       string  `json:"genre"`
	MeanRating  float64 `json:"mean_rating"`
	RatingCount int     `json:"rating_count"`
	Reason      string  `json:"reason"`
}

// PartnerPick 是对方打了高分、而本人尚未评分的电影。
type PartnerPick struct {
	Title      string  `json:"title"`
	Rating     float64 `json:"rating"`
	ExternalID string  `json:"external_id,omitempty"`
	URL        string  `json:"url,omitempty"`
}

// CompareResult 是双人对比的完整输出。
type CompareResult struct {
	Score        float64 `json:"score"`
	OverlapCount int     `json:"overlap_count"`

	RecommendationsForA   []RecommendationItem `json:"recommendations_for_a"`
	RecommendationsForB   []RecommendationItem `json:"recommendations_for_b"`
	MutualRecommendations []RecommendationItem `json:"mutual_recommendations"`

	PartnerPicksForA []PartnerPick `json:"partner_picks_for_a"`
	PartnerPicksForB []PartnerPick `json:"partner_picks_for_b"`
}

// SoloResult 是单人分析的输出。
type SoloResult struct {
	Stats           UserStats            `json:"stats"`
	TopMovies       []RatingEntry        `json:"top_movies"`
	Recommendations []RecommendationItem `json:"recommendations"`
}

// UserStats 汇总一个 RatingProfile 的评分分布。空 profile 对应零值。
type UserStats struct {
	TotalMovies      int                `json:"total_movies"`
	AverageRating    float64            `json:"average_rating"`
	HighestRated     float64            `json:"highest_rated"`
	LowestRated      float64            `json:"lowest_rated"`
	MostCommonRating float64            `json:"most_common_rating"`
	Distribution     RatingDistribution `json:"rating_distribution"`
}

type RatingDistribution struct {
	FiveStars      int `json:"5_stars"`
	FourHalfStars  int `json:"4.5_stars"`
	FourStars      int `json:"4_stars"`
	ThreeHalfStars int `json:"3.5_stars"`
	ThreeStars     int `json:"3_stars"`
	BelowThree     int `json:"below_3"`
}

// CompareReport 是 CompareUsers 的输出：对比结果 + 双方抓取到的条目数。
type CompareReport struct {
	UserA    string `json:"user_a"`
	UserB    string `json:"user_b"`
	EntriesA int    `json:"entries_a"`
	EntriesB int    `json:"entries_b"`
	CompareResult
}

// Empty 表示至少一方没有抓到任何评分（用户不存在、主页私密或来源不可用）。
func (r CompareReport) Empty() bool { return r.EntriesA == 0 || r.EntriesB == 0 }

// SoloReport 是 AnalyzeUser 的输出。
type SoloReport struct {
	Username string `json:"username"`
	Entries  int    `json:"entries"`
	SoloResult
}

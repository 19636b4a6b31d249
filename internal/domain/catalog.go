package domain

// CatalogEntry 是静态数据集中的一部电影。
// Genres 按集合语义去重；进程生命周期内只读。
type CatalogEntry struct {
	Title       string   `json:"title"`
	Genres      []string `json:"genres"`
	MeanRating  float64  `json:"mean_rating"`
	RatingCount int      `json:"rating_count"`
	URL         string   `json:"url,omitempty"`
}

// GenreProfile 是 genre -> 累计偏好权重（喜欢的评分之和），权重非负。
type GenreProfile map[string]float64

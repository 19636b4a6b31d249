package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/John-Robertt/boxdmatch/internal/domain"
	"github.com/John-Robertt/boxdmatch/internal/logging"
)

// 列名别名（大小写不敏感）。title/genres 必须存在。
var columnAliases = map[string][]string{
	"title":  {"title", "name", "film_title"},
	"genres": {"genres", "genre"},
	"mean":   {"mean", "mean_rating", "average_rating", "rating"},
	"count":  {"count", "rating_count", "ratings", "num_ratings"},
	"url":    {"url", "film_url", "letterboxd_url"},
}

// LoadError 描述目录加载失败（启动期致命错误）。
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("加载电影目录失败：%v", e.Err)
	}
	return fmt.Sprintf("加载电影目录失败 %q：%v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Stats 记录一次加载的行统计（用于日志）。
type Stats struct {
	Rows    int
	Loaded  int
	Skipped int
}

// Load 从 CSV 文件加载目录。
func Load(path string) (*Store, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	s, st, err := Parse(f)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, st, le
		}
		return nil, st, &LoadError{Path: path, Err: err}
	}
	return s, st, nil
}

// Parse 从 CSV 读取目录。表头缺少 title/genres 视为失败；
// 单行数值字段无法解析时跳过该行（计入 Stats.Skipped）。
func Parse(r io.Reader) (*Store, Stats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, Stats{}, &LoadError{Err: errors.New("空文件（缺少表头）")}
		}
		return nil, Stats{}, &LoadError{Err: err}
	}
	cols := mapColumns(header)
	if _, ok := cols["title"]; !ok {
		return nil, Stats{}, &LoadError{Err: errors.New("表头缺少 title 列")}
	}
	if _, ok := cols["genres"]; !ok {
		return nil, Stats{}, &LoadError{Err: errors.New("表头缺少 genres 列")}
	}
	ev := logging.Debug()
	for key, i := range cols {
		ev = ev.Str(key, header[i])
	}
	ev.Msg("目录列映射")

	var (
		st      Stats
		entries = make([]domain.CatalogEntry, 0, 1024)
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, st, &LoadError{Err: err}
		}
		st.Rows++

		if e, ok := parseRow(row, cols); ok {
			entries = append(entries, e)
		}
	}

	s := New(entries)
	st.Loaded = s.Len()
	st.Skipped = st.Rows - st.Loaded
	return s, st, nil
}

func mapColumns(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		idx[h] = i
	}
	out := make(map[string]int, len(columnAliases))
	for key, aliases := range columnAliases {
		for _, a := range aliases {
			if i, ok := idx[a]; ok {
				out[key] = i
				break
			}
		}
	}
	return out
}

func parseRow(row []string, cols map[string]int) (domain.CatalogEntry, bool) {
	cell := func(key string) string {
		i, ok := cols[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	title := cell("title")
	if title == "" {
		return domain.CatalogEntry{}, false
	}

	mean := 0.0
	if v := cell("mean"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return domain.CatalogEntry{}, false
		}
		mean = f
	}

	count := 0
	if v := cell("count"); v != "" {
		// 部分数据集把计数写成 "1234.0"。
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return domain.CatalogEntry{}, false
		}
		count = int(f)
	}

	return domain.CatalogEntry{
		Title:       title,
		Genres:      ParseGenres(cell("genres")),
		MeanRating:  mean,
		RatingCount: count,
		URL:         cell("url"),
	}, true
}

// ParseGenres 解析 genre 单元格，支持：
//   - 竖线分隔：Drama|Comedy
//   - 列表形式：['Drama', 'Comedy'] / ["Drama","Comedy"]
//   - 逗号分隔：Drama, Comedy
func ParseGenres(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return nil
	}

	sep := ","
	if strings.Contains(s, "|") {
		sep = "|"
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `'"`)
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Package catalog 持有启动时一次性加载的电影目录（只读）。
package catalog

import (
	"strings"

	"github.com/John-Robertt/boxdmatch/internal/domain"
)

// Store 是不可变的电影目录。
//
// 约束：
// - 只能通过 New/Load/Parse 构造；构造完成后不再修改
// - 多个 goroutine 可以无锁并发读取
// - 条目顺序即数据集顺序（“首个匹配”依赖该顺序）
type Store struct {
	records []record
}

type record struct {
	entry      domain.CatalogEntry
	lowerTitle string
	genres     map[string]struct{} // 小写 genre 集合
}

// New 用给定条目构造 Store（会复制输入，调用方之后修改切片不影响 Store）。
//
// 只有大小写不同的 genre 统一为目录中首次出现的写法（"drama" 与 "Drama" 是同一个 genre）。
func New(entries []domain.CatalogEntry) *Store {
	recs := make([]record, 0, len(entries))
	canon := map[string]string{}
	for _, e := range entries {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			continue
		}
		genres := normGenres(e.Genres)
		set := make(map[string]struct{}, len(genres))
		for j, g := range genres {
			k := strings.ToLower(g)
			if c, ok := canon[k]; ok {
				genres[j] = c
			} else {
				canon[k] = g
			}
			set[k] = struct{}{}
		}
		e.Title = title
		e.Genres = genres
		recs = append(recs, record{
			entry:      e,
			lowerTitle: strings.ToLower(title),
			genres:     set,
		})
	}
	return &Store{records: recs}
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Entry 返回第 i 条的副本（Genres 也是副本）。
func (s *Store) Entry(i int) domain.CatalogEntry {
	e := s.records[i].entry
	e.Genres = append([]string(nil), e.Genres...)
	return e
}

// LowerTitle 返回第 i 条的小写标题。
func (s *Store) LowerTitle(i int) string { return s.records[i].lowerTitle }

// HasGenre 做大小写不敏感的 genre 集合判断。
func (s *Store) HasGenre(i int, genre string) bool {
	_, ok := s.records[i].genres[strings.ToLower(strings.TrimSpace(genre))]
	return ok
}

// MatchTitle 返回第一个（按目录顺序）小写标题包含 title 的条目下标。
//
// 这是近似 join：例如 "The Matrix" 也会命中 "The Matrix Reloaded"（若后者排在前面）。
// 空标题永不匹配。
func (s *Store) MatchTitle(title string) (int, bool) {
	needle := strings.ToLower(strings.TrimSpace(title))
	if needle == "" || s == nil {
		return 0, false
	}
	for i := range s.records {
		if strings.Contains(s.records[i].lowerTitle, needle) {
			return i, true
		}
	}
	return 0, false
}

func normGenres(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, g := range in {
		g = strings.Join(strings.Fields(g), " ")
		if g == "" {
			continue
		}
		k := strings.ToLower(g)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, g)
	}
	return out
}

package catalog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/John-Robertt/boxdmatch/internal/domain"
	"github.com/John-Robertt/boxdmatch/internal/logging"
)

func TestLoad_Fixture(t *testing.T) {
	s, st, err := Load(filepath.Join("testdata", "catalog.csv"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if s.Len() != 4 {
		t.Fatalf("期望加载 4 条，实际 %d", s.Len())
	}
	if st.Rows != 6 || st.Loaded != 4 || st.Skipped != 2 {
		t.Fatalf("统计不符合预期：%+v", st)
	}

	e := s.Entry(1)
	if e.Title != "The Matrix" || e.MeanRating != 4.2 || e.RatingCount != 500000 {
		t.Fatalf("第 2 条解析不正确：%+v", e)
	}
	if !reflect.DeepEqual(e.Genres, []string{"Action", "Science Fiction"}) {
		t.Fatalf("genres 解析不正确：%v", e.Genres)
	}
	if e.URL != "https://letterboxd.com/film/the-matrix/" {
		t.Fatalf("url 解析不正确：%q", e.URL)
	}
	if !s.HasGenre(2, "family") || !s.HasGenre(2, "Comedy") || s.HasGenre(2, "Drama") {
		t.Fatalf("HasGenre 不符合预期：%v", s.Entry(2).Genres)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("期望 *LoadError，实际 %T %v", err, err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("期望可 Unwrap 到 os.ErrNotExist：%v", err)
	}
}

func TestParse_MissingRequiredColumn(t *testing.T) {
	_, _, err := Parse(strings.NewReader("title,mean\nHeat,4.0\n"))
	if err == nil || !strings.Contains(err.Error(), "genres") {
		t.Fatalf("期望缺少 genres 列的错误，实际 %v", err)
	}

	_, _, err = Parse(strings.NewReader(""))
	if err == nil {
		t.Fatalf("空文件期望错误")
	}
}

func TestParseGenres_Encodings(t *testing.T) {
	cases := map[string][]string{
		"Drama|Comedy":          {"Drama", "Comedy"},
		"['Drama', 'Comedy']":   {"Drama", "Comedy"},
		`["Drama","Comedy"]`:    {"Drama", "Comedy"},
		"Drama, Comedy":         {"Drama", "Comedy"},
		"[]":                    nil,
		"":                      nil,
		" Science Fiction | ":   {"Science Fiction"},
	}
	for in, want := range cases {
		got := ParseGenres(in)
		if len(got) == 0 && len(want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("ParseGenres(%q)=%v，期望 %v", in, got, want)
		}
	}
}

func TestMatchTitle_FirstMatchInCatalogOrder(t *testing.T) {
	s := New([]domain.CatalogEntry{
		{Title: "The Matrix Reloaded", Genres: []string{"Action"}},
		{Title: "The Matrix", Genres: []string{"Action", "Science Fiction"}},
	})

	i, ok := s.MatchTitle("the matrix")
	if !ok || i != 0 {
		t.Fatalf("期望命中第 0 条（首个匹配），实际 i=%d ok=%v", i, ok)
	}
	if _, ok := s.MatchTitle("  "); ok {
		t.Fatalf("空标题不应匹配")
	}
	if _, ok := s.MatchTitle("Heat"); ok {
		t.Fatalf("不应匹配")
	}
}

func TestNew_CopiesInputAndEntryReturnsCopy(t *testing.T) {
	in := []domain.CatalogEntry{{Title: "Heat", Genres: []string{"Crime", "crime", " "}}}
	s := New(in)
	in[0].Title = "changed"

	e := s.Entry(0)
	if e.Title != "Heat" {
		t.Fatalf("Store 不应受输入修改影响：%q", e.Title)
	}
	if !reflect.DeepEqual(e.Genres, []string{"Crime"}) {
		t.Fatalf("genres 应去重并去空：%v", e.Genres)
	}
	e.Genres[0] = "mutated"
	if s.Entry(0).Genres[0] != "Crime" {
		t.Fatalf("Entry 应返回副本")
	}
}

func TestNew_GenreCasingUsesFirstSeen(t *testing.T) {
	s := New([]domain.CatalogEntry{
		{Title: "Heat", Genres: []string{"Drama", "Crime"}},
		{Title: "Alien", Genres: []string{"drama", "HORROR"}},
		{Title: "Aliens", Genres: []string{"Horror"}},
	})
	if got := s.Entry(1).Genres; !reflect.DeepEqual(got, []string{"Drama", "HORROR"}) {
		t.Fatalf("genre 应统一为首次出现的写法：%v", got)
	}
	if got := s.Entry(2).Genres; !reflect.DeepEqual(got, []string{"HORROR"}) {
		t.Fatalf("genre 应统一为首次出现的写法：%v", got)
	}
	if !s.HasGenre(2, "horror") {
		t.Fatalf("HasGenre 仍应大小写不敏感")
	}
}

func TestParse_LogsColumnMapping(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "debug", Output: &buf})
	defer logging.Init(logging.Config{})

	if _, _, err := Parse(strings.NewReader("Name,Genre\nHeat,Crime\n")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "目录列映射") || !strings.Contains(out, `"title":"Name"`) {
		t.Fatalf("缺少列映射日志：%s", out)
	}
}

package letterboxd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/boxdmatch/internal/domain"
	sourcex "github.com/John-Robertt/boxdmatch/internal/source"
)

const DefaultBaseURL = "https://letterboxd.com"

// maxBodyBytes 限制单页读取大小（列表页通常 < 1MB）。
const maxBodyBytes = 8 << 20

// Source 实现 Letterboxd 用户影片列表页的抓取与 HTML 解析。
//
// 约束：
// - Page 不做缓存/限速/并发控制（由 fetch 层统一控制）
// - ParsePage 必须是纯函数（只依赖输入 html + 页码 + baseURL）
type Source struct {
	// BaseURL 为空时使用 https://letterboxd.com（测试可指向 httptest.Server）。
	BaseURL string
	Client  *http.Client
}

var _ sourcex.Source = Source{}

func (Source) Name() string { return "letterboxd" }

func (s Source) baseURL() string {
	u := strings.TrimSpace(s.BaseURL)
	if u == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(u, "/")
}

// PageURL 返回第 n 页的地址：第 1 页为 /<user>/films/，其余为 /<user>/films/page/<n>/。
func (s Source) PageURL(user string, n int) string {
	base := s.baseURL() + "/" + url.PathEscape(user) + "/films/"
	if n <= 1 {
		return base
	}
	return base + "page/" + strconv.Itoa(n) + "/"
}

func (s Source) Page(ctx context.Context, user string, n int) (sourcex.Page, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return sourcex.Page{}, &sourcex.Error{Source: s.Name(), Page: n, Stage: sourcex.StageFetch, Err: errors.New("username 不能为空")}
	}
	if n < 1 {
		return sourcex.Page{}, &sourcex.Error{Source: s.Name(), User: user, Page: n, Stage: sourcex.StageFetch, Err: fmt.Errorf("非法页码：%d", n)}
	}
	if s.Client == nil {
		return sourcex.Page{}, &sourcex.Error{Source: s.Name(), User: user, Page: n, Stage: sourcex.StageFetch, Err: errors.New("http client 不能为空")}
	}

	pageURL := s.PageURL(user, n)
	b, err := fetchURL(ctx, s.Client, pageURL)
	if err != nil {
		return sourcex.Page{}, &sourcex.Error{Source: s.Name(), User: user, Page: n, Stage: sourcex.StageFetch, Err: err}
	}

	p, err := ParsePage(b, n, s.baseURL())
	if err != nil {
		return sourcex.Page{}, &sourcex.Error{Source: s.Name(), User: user, Page: n, Stage: sourcex.StageParse, Err: err}
	}
	return p, nil
}

var pageHrefRE = regexp.MustCompile(`/page/(\d+)/`)

// ParsePage 把列表页 HTML 解析为 Page。
//
// - 单条目缺少标题或 slug：跳过该条目，不影响整页
// - 没有 rated-N 评分 class 的条目保留为 HasRating=false（由 fetch 层丢弃）
// - 没有 div.pagination：TotalPages=1
func ParsePage(html []byte, n int, baseURL string) (sourcex.Page, error) {
	if len(html) == 0 {
		return sourcex.Page{}, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return sourcex.Page{}, err
	}

	// 先识别拦截页，避免把 challenge 页当成“0 条目的合法页”。
	title := strings.ToLower(normSpace(doc.Find("title").First().Text()))
	if strings.Contains(title, "just a moment") || doc.Find("#challenge-form, #cf-challenge-running").Length() > 0 {
		return sourcex.Page{}, &sourcex.BlockedError{Reason: "challenge"}
	}

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	entries := make([]sourcex.RawEntry, 0, 72)
	doc.Find("li.griditem, li.poster-container").Each(func(_ int, s *goquery.Selection) {
		if e, ok := parseItem(s, baseURL); ok {
			entries = append(entries, e)
		}
	})

	return sourcex.Page{
		Number:     n,
		TotalPages: pageCount(doc, n),
		Entries:    entries,
	}, nil
}

func parseItem(s *goquery.Selection, baseURL string) (sourcex.RawEntry, bool) {
	comp := s.Find("div.react-component, div.film-poster").First()
	if comp.Length() == 0 {
		return sourcex.RawEntry{}, false
	}

	title := firstAttr(comp, "data-item-name", "data-film-name")
	if title == "" {
		title, _ = comp.Find("img").First().Attr("alt")
	}
	title = domain.NormalizeTitle(title)
	slug := strings.Trim(firstAttr(comp, "data-item-slug", "data-film-slug"), "/ ")
	if title == "" || slug == "" {
		return sourcex.RawEntry{}, false
	}

	e := sourcex.RawEntry{
		Title: title,
		Slug:  slug,
		URL:   baseURL + "/film/" + url.PathEscape(slug) + "/",
	}

	ratingSel := s.Find("p.poster-viewingdata span.rating").First()
	if ratingSel.Length() > 0 {
		if cls, ok := ratingSel.Attr("class"); ok {
			e.Rating, e.HasRating = ratingFromClasses(strings.Fields(cls))
		}
	}
	return e, true
}

// ratingFromClasses 从 "rated-8" 这类 class 提取评分（8 => 4.0 星）。只接受 1..10。
func ratingFromClasses(classes []string) (float64, bool) {
	for _, c := range classes {
		if !strings.HasPrefix(c, "rated-") {
			continue
		}
		v, err := strconv.Atoi(strings.TrimPrefix(c, "rated-"))
		if err != nil || v < 1 || v > 10 {
			continue
		}
		return float64(v) / 2.0, true
	}
	return 0, false
}

func pageCount(doc *goquery.Document, current int) int {
	pagination := doc.Find("div.pagination")
	if pagination.Length() == 0 {
		return 1
	}
	max := 1
	pagination.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := pageHrefRE.FindStringSubmatch(href)
		if m == nil {
			return
		}
		if v, err := strconv.Atoi(m[1]); err == nil && v > max {
			max = v
		}
	})
	if current > max {
		max = current
	}
	return max
}

func fetchURL(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &sourcex.HTTPStatusError{URL: u, StatusCode: resp.StatusCode}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errors.New("empty response body")
	}
	return b, nil
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, n := range names {
		if v, ok := s.Attr(n); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

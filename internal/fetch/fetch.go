// Package fetch 实现“拉取一个用户的全部已评分电影”的流水线。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/John-Robertt/boxdmatch/internal/domain"
	"github.com/John-Robertt/boxdmatch/internal/logging"
	"github.com/John-Robertt/boxdmatch/internal/metrics"
	"github.com/John-Robertt/boxdmatch/internal/source"
)

const (
	DefaultConcurrency = 3
	DefaultInterval    = time.Second
	MaxConcurrency     = 8
)

// Options 控制抓取策略。零值字段使用默认（Interval 除外：0 表示不限速，仅用于测试）。
type Options struct {
	Concurrency int           // 同一时刻最多几个页面请求；默认 3
	Interval    time.Duration // 相邻两次请求的最小间隔，含第 1 页
	MaxPages    int           // >0 时截断总页数
	Observer    Observer
}

// Fetcher 从分页来源拉取用户评分。
//
// 限速器属于 Fetcher（而非单次 Fetch），因此同一个 Fetcher 上并发进行的两个用户抓取共享礼貌预算。
// Fetcher 可被多个 goroutine 并发使用。
type Fetcher struct {
	src      source.Source
	workers  int
	maxPages int
	limiter  *rate.Limiter
	obs      Observer
	log      zerolog.Logger
}

func New(src source.Source, opt Options) *Fetcher {
	workers := opt.Concurrency
	if workers <= 0 {
		workers = DefaultConcurrency
	}
	if workers > MaxConcurrency {
		workers = MaxConcurrency
	}

	limit := rate.Inf
	if opt.Interval > 0 {
		limit = rate.Every(opt.Interval)
	}

	maxPages := opt.MaxPages
	if maxPages < 0 {
		maxPages = 0
	}

	return &Fetcher{
		src:      src,
		workers:  workers,
		maxPages: maxPages,
		limiter:  rate.NewLimiter(limit, 1),
		obs:      opt.Observer,
		log:      logging.With("fetch"),
	}
}

// Fetch 拉取 user 的全部已评分电影。
//
// 该函数不返回错误：第 1 页失败得到空 profile；其他页失败只让该页贡献 0 条。
// 页面按页码顺序折叠，同名标题后页覆盖前页。
func (f *Fetcher) Fetch(ctx context.Context, user string) domain.RatingProfile {
	started := time.Now()
	user = strings.TrimSpace(user)
	profile := domain.RatingProfile{}

	if f.obs != nil {
		f.obs.OnUserStart(user)
	}
	defer func() {
		metrics.ProfileEntries.Observe(float64(len(profile)))
		if f.obs != nil {
			f.obs.OnUserDone(user, len(profile), time.Since(started))
		}
	}()

	if user == "" || f.src == nil {
		return profile
	}

	first, dur, err := f.page(ctx, user, 1)
	if err != nil {
		f.pageDone(user, 1, 0, first, err, dur)
		f.log.Warn().Err(err).Str("user", user).Msg("首页抓取失败，返回空 profile")
		return profile
	}

	total := first.TotalPages
	if total < 1 {
		total = 1
	}
	if f.maxPages > 0 && total > f.maxPages {
		total = f.maxPages
	}
	f.pageDone(user, 1, total, first, nil, dur)

	// pages[i] 只由负责第 i+1 页的 goroutine 写入，无需加锁。
	pages := make([][]source.RawEntry, total)
	pages[0] = first.Entries

	var g errgroup.Group
	g.SetLimit(f.workers)
	for n := 2; n <= total; n++ {
		n := n
		g.Go(func() error {
			p, d, err := f.page(ctx, user, n)
			f.pageDone(user, n, total, p, err, d)
			if err != nil {
				return nil
			}
			pages[n-1] = p.Entries
			return nil
		})
	}
	_ = g.Wait()

	for _, entries := range pages {
		for _, e := range entries {
			if !e.HasRating {
				continue
			}
			profile.Put(domain.RatingEntry{
				Title:      e.Title,
				Rating:     e.Rating,
				ExternalID: e.Slug,
				URL:        e.URL,
			})
		}
	}

	f.log.Debug().Str("user", user).Int("pages", total).Int("entries", len(profile)).Dur("took", time.Since(started)).Msg("抓取完成")
	return profile
}

// page 先等待限速器，再请求第 n 页。解析阶段的 panic 也按该页失败处理。
func (f *Fetcher) page(ctx context.Context, user string, n int) (p source.Page, dur time.Duration, err error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return source.Page{}, 0, &source.Error{Source: f.src.Name(), User: user, Page: n, Stage: source.StageFetch, Err: err}
	}

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p = source.Page{}
			err = &source.Error{Source: f.src.Name(), User: user, Page: n, Stage: source.StageParse, Err: fmt.Errorf("panic: %v", r)}
		}
		dur = time.Since(started)
	}()

	p, err = f.src.Page(ctx, user, n)
	return p, dur, err
}

func (f *Fetcher) pageDone(user string, n, total int, p source.Page, err error, dur time.Duration) {
	metrics.SourcePageDuration.Observe(dur.Seconds())
	switch {
	case err == nil:
		metrics.SourcePages.WithLabelValues(metrics.PageOK).Inc()
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.SourcePages.WithLabelValues(metrics.PageRejected).Inc()
	default:
		metrics.SourcePages.WithLabelValues(metrics.PageFailed).Inc()
	}

	if err != nil && n > 1 {
		ev := f.log.Warn().Err(err).Str("user", user).Int("page", n)
		var se *source.Error
		if errors.As(err, &se) {
			ev = ev.Str("stage", se.Stage)
		}
		ev.Msg("页面失败，已跳过")
	}

	if f.obs != nil {
		entries := 0
		if err == nil {
			entries = len(p.Entries)
		}
		f.obs.OnPageDone(user, n, total, entries, err, dur)
	}
}

package app

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/boxdmatch/internal/domain"
	"github.com/John-Robertt/boxdmatch/internal/logging"
)

// DefaultFetchTimeout 是一次 Compare/Analyze 中抓取阶段的总时限。
const DefaultFetchTimeout = 3 * time.Minute

// ProfileFetcher 由 *fetch.Fetcher 实现；测试中可替换为内存实现。
type ProfileFetcher interface {
	Fetch(ctx context.Context, user string) domain.RatingProfile
}

// Pipeline = 抓取 + Engine。
type Pipeline struct {
	Fetcher ProfileFetcher
	Engine  *Engine

	// FetchTimeout <=0 时使用 DefaultFetchTimeout。
	FetchTimeout time.Duration
}

// CompareUsers 并发抓取两位用户的评分，然后对比。
//
// 抓取失败不会变成错误：对应一方的 profile 为空，结果退化为 0 分与空推荐，
// 调用方可用 CompareReport.Empty 判断。
func (p *Pipeline) CompareUsers(ctx context.Context, userA, userB string) domain.CompareReport {
	userA, userB = strings.TrimSpace(userA), strings.TrimSpace(userB)

	fctx, cancel := p.fetchContext(ctx)
	defer cancel()

	var a, b domain.RatingProfile
	var g errgroup.Group
	g.Go(func() error {
		a = p.Fetcher.Fetch(fctx, userA)
		return nil
	})
	g.Go(func() error {
		b = p.Fetcher.Fetch(fctx, userB)
		return nil
	})
	_ = g.Wait()

	logging.Info().Str("user_a", userA).Int("entries_a", len(a)).Str("user_b", userB).Int("entries_b", len(b)).Msg("compare")

	return domain.CompareReport{
		UserA:         userA,
		UserB:         userB,
		EntriesA:      len(a),
		EntriesB:      len(b),
		CompareResult: p.Engine.Compare(a, b),
	}
}

// AnalyzeUser 抓取单个用户并生成个人分析。
func (p *Pipeline) AnalyzeUser(ctx context.Context, user string) domain.SoloReport {
	user = strings.TrimSpace(user)

	fctx, cancel := p.fetchContext(ctx)
	defer cancel()
	prof := p.Fetcher.Fetch(fctx, user)

	logging.Info().Str("user", user).Int("entries", len(prof)).Msg("analyze")

	return domain.SoloReport{
		Username:   user,
		Entries:    len(prof),
		SoloResult: p.Engine.AnalyzeSolo(prof),
	}
}

func (p *Pipeline) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := p.FetchTimeout
	if d <= 0 {
		d = DefaultFetchTimeout
	}
	return context.WithTimeout(ctx, d)
}

package source

import (
	"context"
	"errors"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/John-Robertt/boxdmatch/internal/logging"
	"github.com/John-Robertt/boxdmatch/internal/metrics"
)

// BreakerSettings 控制熔断器。Failures<=0 表示不启用熔断。
type BreakerSettings struct {
	Failures uint32        // 连续失败多少页后打开
	Cooldown time.Duration // 打开后多久进入 half-open
}

type breakerSource struct {
	src Source
	cb  *gobreaker.CircuitBreaker[Page]
}

// WithBreaker 用熔断器包装 src：来源持续失败时快速拒绝后续页面请求，避免继续冲击站点。
// 被拒绝的请求以 gobreaker.ErrOpenState / ErrTooManyRequests 返回，由 fetch 层按页吞掉。
func WithBreaker(src Source, s BreakerSettings) Source {
	if src == nil || s.Failures == 0 {
		return src
	}
	name := src.Name()
	metrics.BreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[Page](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.Failures
		},
		IsSuccessful: sourceHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("source", name).Str("from", from.String()).Str("to", to.String()).Msg("熔断器状态变化")
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return &breakerSource{src: src, cb: cb}
}

func (b *breakerSource) Name() string { return b.src.Name() }

func (b *breakerSource) Page(ctx context.Context, user string, n int) (Page, error) {
	return b.cb.Execute(func() (Page, error) {
		return b.src.Page(ctx, user, n)
	})
}

// sourceHealthy 判断一次页面请求是否应计为来源健康。
// 调用方取消与 404（用户不存在）都不是来源故障。
func sourceHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var hs *HTTPStatusError
	return errors.As(err, &hs) && hs.StatusCode == http.StatusNotFound
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

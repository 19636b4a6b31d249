package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	DefaultTimeout = 20 * time.Second
	DefaultBackoff = 500 * time.Millisecond

	defaultRetryMax = 2
	maxRetryAfter   = 10 * time.Second
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

// Transport 给评分页请求补齐浏览器风格请求头，并对可重放请求做有界重试。
//
// 重试条件：网络错误，或 429/502/503/504。第 n 次重试前等待 n*Backoff
// （429 带 Retry-After 时取两者较大值，上限 10s）。等待期间 ctx 取消立即返回。
// 限速与熔断不在这里做（由 fetch / source 层统一控制）。
type Transport struct {
	Base *http.Transport

	// UserAgents 轮流使用；为空时不设置 User-Agent。
	UserAgents []string

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	RetryMax int
	Backoff  time.Duration

	// DisableKeepAlives 决定是否对 Request 设置 Close=true。
	// 真正禁用 keep-alive 依赖 Base.DisableKeepAlives。
	DisableKeepAlives bool

	next atomic.Uint64
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。
	max := t.RetryMax
	if max < 0 || req.Body != nil || (req.Method != http.MethodGet && req.Method != http.MethodHead) {
		max = 0
	}

	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		resp, err := t.Base.RoundTrip(t.prepare(req))
		if attempt >= max || ctx.Err() != nil || !retryable(resp, err) {
			return resp, err
		}

		wait := time.Duration(attempt+1) * t.Backoff
		if resp != nil {
			if ra := retryAfter(resp); ra > wait {
				wait = ra
			}
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (t *Transport) prepare(req *http.Request) *http.Request {
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" && len(t.UserAgents) > 0 {
		n := t.next.Add(1) - 1
		r.Header.Set("User-Agent", t.UserAgents[n%uint64(len(t.UserAgents))])
	}
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}
	if r.Header.Get("Accept-Language") == "" {
		r.Header.Set("Accept-Language", "en-US,en;q=0.5")
	}
	if t.DisableKeepAlives {
		r.Close = true
	}
	return r
}

func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter 只识别秒数形式的 Retry-After。
func retryAfter(resp *http.Response) time.Duration {
	if resp.StatusCode != http.StatusTooManyRequests {
		return 0
	}
	sec, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After")))
	if err != nil || sec <= 0 {
		return 0
	}
	return min(time.Duration(sec)*time.Second, maxRetryAfter)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewSourceClient 构造用于评分来源页面抓取的 HTTP client。
//
// 规则：
// - proxyURL 非空：走代理，且禁用 keep-alive（每请求新连接）
// - 内置 UA 轮换
// - 有界重试 + 总超时（timeout<=0 时使用 DefaultTimeout）
func NewSourceClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	base := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		MaxIdleConnsPerHost:   4,
	}

	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy url 缺少 scheme 或 host")
		}
		base.Proxy = http.ProxyURL(u)
		// 代理池轮换依赖每请求新连接。
		base.DisableKeepAlives = true
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: &Transport{
			Base:              base,
			UserAgents:        defaultUserAgents,
			RetryMax:          defaultRetryMax,
			Backoff:           DefaultBackoff,
			DisableKeepAlives: base.DisableKeepAlives,
		},
		Timeout: timeout,
	}, nil
}

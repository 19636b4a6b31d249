package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/John-Robertt/boxdmatch/internal/fetch"
	"github.com/John-Robertt/boxdmatch/internal/source"
)

var _ fetch.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的抓取进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr，不污染 stdout 的 JSON/摘要输出
// - 事件驱动：fetch 层只发事件，CLI 决定如何展示
// - keepalive：长时间没有页面完成时也会定期输出一行，降低等待焦虑
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	users map[string]*userProgress

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

type userProgress struct {
	total  int
	done   int
	failed int
	active bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		users:              map[string]*userProgress{},
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnUserStart(user string) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.startedAt.IsZero() {
		p.startedAt = now
	}
	p.users[user] = &userProgress{active: true}
	fmt.Fprintf(p.w, "[%s] 抓取 %s 的评分…\n", now.Format("15:04:05"), user)
	p.lastPrinted = now

	if !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnPageDone(user string, page, total, entries int, err error, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	u := p.user(user)
	if total > 0 {
		u.total = total
	}
	u.done++

	if err != nil {
		u.failed++
		fmt.Fprintf(p.w, "  %s 第 %d 页 FAIL %s: %s (%s)\n",
			user, page, pageErrorKind(err), truncate(err.Error(), 160), formatShortDuration(dur))
	} else {
		fmt.Fprintf(p.w, "  %s 第 %d/%d 页 OK entries=%d (%s)\n",
			user, page, u.total, entries, formatShortDuration(dur))
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnUserDone(user string, entries int, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	u := p.user(user)
	u.active = false

	note := ""
	if u.failed > 0 {
		note = fmt.Sprintf(" failed_pages=%d", u.failed)
	}
	fmt.Fprintf(p.w, "完成 %s：entries=%d pages=%d%s (%s)\n", user, entries, u.done, note, formatShortDuration(dur))
	p.lastPrinted = time.Now()

	// 所有用户都完成：停止 ticker，避免在结果打印后又冒出 keepalive。
	if p.tickerStarted && p.activeLocked() == 0 {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) user(name string) *userProgress {
	u, ok := p.users[name]
	if !ok {
		u = &userProgress{active: true}
		p.users[name] = u
	}
	return u
}

func (p *progressUI) activeLocked() int {
	n := 0
	for _, u := range p.users {
		if u.active {
			n++
		}
	}
	return n
}

// progressLineLocked 汇总每个进行中用户的页面进度（按用户名排序，输出稳定）。
func (p *progressUI) progressLineLocked() string {
	names := make([]string, 0, len(p.users))
	for name, u := range p.users {
		if u.active {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		u := p.users[name]
		total := "?"
		if u.total > 0 {
			total = fmt.Sprintf("%d", u.total)
		}
		parts = append(parts, fmt.Sprintf("%s=%d/%s", name, u.done, total))
	}
	return fmt.Sprintf("进度: %s elapsed=%s", strings.Join(parts, " "), formatElapsed(time.Since(p.startedAt)))
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.activeLocked() == 0 {
					p.mu.Unlock()
					return
				}
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintln(p.w, p.progressLineLocked())
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

// pageErrorKind 给失败页一个短分类，便于在终端里扫一眼就知道原因。
func pageErrorKind(err error) string {
	var hs *source.HTTPStatusError
	var be *source.BlockedError
	var se *source.Error
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.As(err, &hs):
		return fmt.Sprintf("http_%d", hs.StatusCode)
	case errors.As(err, &be):
		return "blocked"
	case errors.As(err, &se):
		return se.Stage + "_failed"
	default:
		return "failed"
	}
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

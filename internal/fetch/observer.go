package fetch

import "time"

// Observer 用于把“抓取进度”从核心流程中解耦出来。
//
// 约束：
// - fetch 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）
// - 实现必须并发安全：事件来自多个 goroutine（两个用户、多个页面）
type Observer interface {
	OnUserStart(user string)
	// OnPageDone 在每页结束时调用；total 为截断后的总页数（首页失败时为 0）。
	OnPageDone(user string, page, total, entries int, err error, dur time.Duration)
	OnUserDone(user string, entries int, dur time.Duration)
}

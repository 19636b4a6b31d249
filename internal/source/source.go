package source

import (
	"context"
	"fmt"
)

// Source 把“站点变化”限制在 source 包内部；fetch 只依赖统一接口与稳定的 Page 结构。
//
// 约束：
// - Page 不做限速、不做并发控制（由 fetch 层统一实现）
// - 页码从 1 开始
// - 返回 error 时 Page 必须视为无效
type Source interface {
	Name() string
	Page(ctx context.Context, user string, n int) (Page, error)
}

// Page 是一个列表页的解析结果。
type Page struct {
	Number int
	// TotalPages 来自分页标记；没有分页元素时为 1。
	TotalPages int
	Entries    []RawEntry
}

// RawEntry 是列表页里的一条原始记录。HasRating=false 表示该条目没有可解析的评分。
type RawEntry struct {
	Title     string
	Slug      string
	URL       string
	Rating    float64
	HasRating bool
}

// Error 是 source 阶段的可追溯错误。
// fetch 层据此记录 fetch_failed / parse_failed，并按页吞掉。
type Error struct {
	Source string
	User   string
	Page   int
	Stage  string // "fetch" 或 "parse"
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source=%s user=%s page=%d stage=%s: %v", e.Source, e.User, e.Page, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const (
	StageFetch = "fetch"
	StageParse = "parse"
)

package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/John-Robertt/boxdmatch/internal/source"
)

func TestProgressUI_Lines(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	p.OnUserStart("alice")
	p.OnPageDone("alice", 1, 2, 72, nil, 300*time.Millisecond)
	p.OnPageDone("alice", 2, 2, 0, &source.Error{Source: "letterboxd", User: "alice", Page: 2, Stage: source.StageFetch,
		Err: &source.HTTPStatusError{URL: "https://letterboxd.com/alice/films/page/2/", StatusCode: 429}}, time.Second)
	p.OnUserDone("alice", 72, 2*time.Second)

	out := buf.String()
	for _, want := range []string{"抓取 alice", "第 1/2 页 OK entries=72", "第 2 页 FAIL http_429", "完成 alice：entries=72 pages=2 failed_pages=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
	if p.tickerStarted {
		t.Fatalf("所有用户完成后 ticker 应停止")
	}
}

func TestProgressUI_Keepalive(t *testing.T) {
	var buf syncBuffer
	p := newProgressUI(&buf)
	p.tickerInterval = 10 * time.Millisecond
	p.keepaliveThreshold = 20 * time.Millisecond

	p.OnUserStart("bob")
	p.OnPageDone("bob", 1, 5, 10, nil, 0)
	time.Sleep(80 * time.Millisecond)
	p.OnUserDone("bob", 10, 0)

	if !strings.Contains(buf.String(), "进度: bob=1/5") {
		t.Fatalf("期望 keepalive 进度行：\n%s", buf.String())
	}
}

func TestPageErrorKind(t *testing.T) {
	cases := map[string]error{
		"breaker_open": gobreaker.ErrOpenState,
		"http_404":     &source.Error{Stage: source.StageFetch, Err: &source.HTTPStatusError{StatusCode: 404}},
		"blocked":      &source.Error{Stage: source.StageParse, Err: &source.BlockedError{Reason: "challenge"}},
		"parse_failed": &source.Error{Stage: source.StageParse, Err: errors.New("bad")},
		"failed":       errors.New("x"),
	}
	for want, err := range cases {
		if got := pageErrorKind(err); got != want {
			t.Fatalf("pageErrorKind(%v)=%q，期望 %q", err, got, want)
		}
	}
}

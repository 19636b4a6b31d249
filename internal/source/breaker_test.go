package source

import (
	"context"
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

type stubSource struct {
	err   error
	calls int
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Page(ctx context.Context, user string, n int) (Page, error) {
	s.calls++
	if s.err != nil {
		return Page{}, s.err
	}
	return Page{Number: n, TotalPages: 1}, nil
}

func TestWithBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubSource{err: errors.New("boom")}
	src := WithBreaker(stub, BreakerSettings{Failures: 2, Cooldown: time.Minute})

	for i := 1; i <= 2; i++ {
		if _, err := src.Page(context.Background(), "alice", i); err == nil {
			t.Fatalf("第 %d 次期望错误", i)
		}
	}
	_, err := src.Page(context.Background(), "alice", 3)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("期望熔断打开，实际 %v", err)
	}
	if stub.calls != 2 {
		t.Fatalf("熔断后不应再调用底层 source，calls=%d", stub.calls)
	}
}

func TestWithBreaker_CancelDoesNotTrip(t *testing.T) {
	stub := &stubSource{err: &Error{Source: "stub", Stage: StageFetch, Err: context.Canceled}}
	src := WithBreaker(stub, BreakerSettings{Failures: 1, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		_, _ = src.Page(context.Background(), "alice", 1)
	}
	if stub.calls != 3 {
		t.Fatalf("取消错误不应触发熔断，calls=%d", stub.calls)
	}
}

func TestWithBreaker_NotFoundDoesNotTrip(t *testing.T) {
	stub := &stubSource{err: &Error{Source: "stub", Stage: StageFetch, Err: &HTTPStatusError{StatusCode: 404}}}
	src := WithBreaker(stub, BreakerSettings{Failures: 1, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		_, _ = src.Page(context.Background(), "ghost", 1)
	}
	if stub.calls != 3 {
		t.Fatalf("404 不应触发熔断，calls=%d", stub.calls)
	}
}

func TestWithBreaker_DisabledReturnsSource(t *testing.T) {
	stub := &stubSource{}
	if got := WithBreaker(stub, BreakerSettings{}); got != Source(stub) {
		t.Fatalf("Failures=0 时应原样返回 source")
	}
}

func TestError_UnwrapAndMessage(t *testing.T) {
	inner := &HTTPStatusError{URL: "u", StatusCode: 503}
	err := error(&Error{Source: "letterboxd", User: "alice", Page: 2, Stage: StageFetch, Err: inner})

	var he *HTTPStatusError
	if !errors.As(err, &he) || he.StatusCode != 503 {
		t.Fatalf("期望可 Unwrap 到 HTTPStatusError：%v", err)
	}
	if err.Error() != "source=letterboxd user=alice page=2 stage=fetch: HTTP 503" {
		t.Fatalf("错误信息不符合预期：%q", err.Error())
	}
}

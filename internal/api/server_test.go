package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/John-Robertt/boxdmatch/internal/domain"
)

type stubService struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubService) CompareUsers(ctx context.Context, a, b string) domain.CompareReport {
	s.mu.Lock()
	s.calls = append(s.calls, "compare:"+a+","+b)
	s.mu.Unlock()
	return domain.CompareReport{
		UserA: a, UserB: b, EntriesA: 2, EntriesB: 2,
		CompareResult: domain.CompareResult{
			Score:                 80,
			OverlapCount:          2,
			RecommendationsForA:   []domain.RecommendationItem{},
			RecommendationsForB:   []domain.RecommendationItem{},
			MutualRecommendations: []domain.RecommendationItem{{Title: "Heat", Genre: "Crime"}},
			PartnerPicksForA:      []domain.PartnerPick{},
			PartnerPicksForB:      []domain.PartnerPick{},
		},
	}
}

func (s *stubService) AnalyzeUser(ctx context.Context, user string) domain.SoloReport {
	s.mu.Lock()
	s.calls = append(s.calls, "analyze:"+user)
	s.mu.Unlock()
	return domain.SoloReport{Username: user, SoloResult: domain.SoloResult{
		TopMovies:       []domain.RatingEntry{},
		Recommendations: []domain.RecommendationItem{},
	}}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCompare_OK(t *testing.T) {
	svc := &stubService{}
	rec := do(t, NewRouter(svc), http.MethodPost, "/api/compare", `{"user_a":" alice ","user_b":"bob"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type=%q", ct)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("响应不是合法 JSON：%v", err)
	}
	// CompareResult 内嵌字段应被展开到顶层
	if got["score"] != 80.0 || got["user_a"] != "alice" {
		t.Fatalf("响应字段不符：%v", got)
	}
	if _, ok := got["mutual_recommendations"]; !ok {
		t.Fatalf("缺少 mutual_recommendations：%v", got)
	}
	if len(svc.calls) != 1 || svc.calls[0] != "compare:alice,bob" {
		t.Fatalf("service 调用不符：%v", svc.calls)
	}
}

func TestCompare_BadRequest(t *testing.T) {
	svc := &stubService{}
	h := NewRouter(svc)
	for name, body := range map[string]string{
		"非 JSON":  `nope`,
		"缺少 user_b": `{"user_a":"alice"}`,
		"非法字符":     `{"user_a":"alice","user_b":"../etc"}`,
	} {
		rec := do(t, h, http.MethodPost, "/api/compare", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s：status=%d，期望 400", name, rec.Code)
		}
		var er ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil || er.Error == "" {
			t.Fatalf("%s：错误响应体不符：%s", name, rec.Body.String())
		}
	}
	if len(svc.calls) != 0 {
		t.Fatalf("非法请求不应调用 service：%v", svc.calls)
	}
}

func TestAnalyze_OK(t *testing.T) {
	svc := &stubService{}
	rec := do(t, NewRouter(svc), http.MethodPost, "/api/analyze", `{"username":"carol"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var got domain.SoloReport
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || got.Username != "carol" {
		t.Fatalf("响应不符：%s err=%v", rec.Body.String(), err)
	}
}

func TestAnalyze_EmptyUsername(t *testing.T) {
	rec := do(t, NewRouter(&stubService{}), http.MethodPost, "/api/analyze", `{"username":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d，期望 400", rec.Code)
	}
}

func TestBodyTooLarge(t *testing.T) {
	big := `{"username":"` + strings.Repeat("a", maxBodyBytes+1) + `"}`
	rec := do(t, NewRouter(&stubService{}), http.MethodPost, "/api/analyze", big)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "过大") {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := NewRouter(&stubService{})

	rec := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("healthz：status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics：status=%d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(t, NewRouter(&stubService{}), http.MethodGet, "/api/compare", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d，期望 405", rec.Code)
	}
}

// Package api 把 Compare/Analyze 用例暴露为 JSON HTTP 接口（boxdmatch serve）。
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/John-Robertt/boxdmatch/internal/domain"
	"github.com/John-Robertt/boxdmatch/internal/logging"
)

// maxBodyBytes 限制请求体大小（请求只包含用户名）。
const maxBodyBytes = 64 << 10

// usernameRE 是 Letterboxd 用户名允许的字符集。
var usernameRE = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Service 由 *app.Pipeline 实现。
type Service interface {
	CompareUsers(ctx context.Context, userA, userB string) domain.CompareReport
	AnalyzeUser(ctx context.Context, user string) domain.SoloReport
}

type CompareRequest struct {
	UserA string `json:"user_a"`
	UserB string `json:"user_b"`
}

type AnalyzeRequest struct {
	Username string `json:"username"`
}

// ErrorResponse 是所有 4xx/5xx 的响应体。
type ErrorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	svc Service
}

// NewRouter 构造完整路由：业务接口、健康检查与 Prometheus 指标。
func NewRouter(svc Service) http.Handler {
	h := &handler{svc: svc}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(accessLog)

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/compare", h.compare)
		r.Post("/analyze", h.analyze)
	})
	return r
}

// NewServer 返回带保守超时的 http.Server。抓取本身可能持续数分钟，因此 WriteTimeout 不设上限，
// 由 Pipeline 的 fetch_timeout 兜底。
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, b := strings.TrimSpace(req.UserA), strings.TrimSpace(req.UserB)
	if err := validUsername("user_a", a); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validUsername("user_b", b); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.svc.CompareUsers(r.Context(), a, b))
}

func (h *handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u := strings.TrimSpace(req.Username)
	if err := validUsername("username", u); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.svc.AnalyzeUser(r.Context(), u))
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return fmt.Errorf("请求体过大（上限 %d 字节）", mbe.Limit)
		}
		return fmt.Errorf("请求体不是合法 JSON：%v", err)
	}
	return nil
}

func validUsername(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s 不能为空", field)
	}
	if !usernameRE.MatchString(v) {
		return fmt.Errorf("%s 含非法字符：%q", field, v)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("写出 JSON 响应失败")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// accessLog 以 zerolog 记录每个请求（含 chi 生成的 request id）。
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := logging.Info()
		if status >= 500 {
			ev = logging.Error()
		}
		ev.Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(started)).
			Msg("http")
	})
}

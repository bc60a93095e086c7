// Package server 暴露审计服务的 HTTP 接口
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/admi-n/nullshot-auditor/src/internal"
	"github.com/admi-n/nullshot-auditor/src/internal/download"
	"github.com/admi-n/nullshot-auditor/src/internal/handler"
	"github.com/admi-n/nullshot-auditor/src/internal/store"
	"github.com/admi-n/nullshot-auditor/src/internal/telemetry"
)

const maxBodyBytes = 1 << 20

// Config 服务器配置
type Config struct {
	Addr     string
	Provider string // 仅用于 /healthz
	Metrics  *telemetry.Metrics
}

// Server HTTP 服务器
type Server struct {
	svc *handler.Service
	cfg Config
}

// New 创建服务器
func New(svc *handler.Service, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	return &Server{svc: svc, cfg: cfg}
}

// Handler 返回注册好全部路由的 http.Handler。
// 每个路由同时挂在 /api 前缀下，兼容原有前端的路径
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	routes := []struct {
		method, path string
		h            http.HandlerFunc
	}{
		{http.MethodPost, "/audit", s.handleAudit},
		{http.MethodPost, "/fix", s.handleFix},
		{http.MethodPost, "/generate", s.handleGenerate},
		{http.MethodGet, "/reports", s.handleListReports},
		{http.MethodGet, "/reports/{id}", s.handleGetReport},
		{http.MethodPost, "/reports/{id}/feedback", s.handleFeedback},
	}
	for _, rt := range routes {
		for _, prefix := range []string{"", "/api"} {
			pattern := rt.method + " " + prefix + rt.path
			mux.Handle(pattern, s.wrap(pattern, rt.h))
		}
	}

	mux.Handle("GET /healthz", s.wrap("GET /healthz", s.handleHealth))
	if s.cfg.Metrics != nil {
		mux.Handle("GET /metrics", s.cfg.Metrics.Handler())
	}
	return mux
}

func (s *Server) wrap(pattern string, h http.HandlerFunc) http.Handler {
	var next http.Handler = recoverer(h)
	if s.cfg.Metrics != nil {
		next = s.cfg.Metrics.Middleware(pattern, next)
	}
	return next
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				telemetry.LogError("panic in handler", fmt.Errorf("%v", rec), "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Run 启动服务器，ctx 取消后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		telemetry.LogInfo("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		telemetry.LogInfo("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	}
}

type auditRequest struct {
	Code    string `json:"code"`
	Address string `json:"address"`
}

type auditResponse struct {
	*internal.AuditReport
	Verdict      internal.Verdict `json:"verdict"`
	HistoryID    string           `json:"historyId,omitempty"`
	Address      string           `json:"address,omitempty"`
	ContractName string           `json:"contractName,omitempty"`
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	var req auditRequest
	if !decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Code) == "" && strings.TrimSpace(req.Address) != "" {
		res, contract, err := s.svc.AuditAddress(r.Context(), req.Address)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, auditResponse{
			AuditReport:  res.Report,
			Verdict:      res.Verdict,
			HistoryID:    res.HistoryID,
			Address:      contract.Address,
			ContractName: contract.Name,
		})
		return
	}

	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "Code is required")
		return
	}
	res, err := s.svc.Audit(r.Context(), "http", req.Code)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auditResponse{AuditReport: res.Report, Verdict: res.Verdict, HistoryID: res.HistoryID})
}

type fixRequest struct {
	Code            string                    `json:"code"`
	Vulnerability   *internal.Vulnerability   `json:"vulnerability"`
	Vulnerabilities *[]internal.Vulnerability `json:"vulnerabilities"`
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	var req fixRequest
	if !decode(w, r, &req) {
		return
	}

	var target internal.FixTarget
	if req.Vulnerabilities != nil {
		if strings.TrimSpace(req.Code) == "" {
			writeError(w, http.StatusBadRequest, "Code is required")
			return
		}
		vs := *req.Vulnerabilities
		for i := range vs {
			vs[i].EnsureKind()
		}
		target.Vulnerabilities = vs
	} else {
		if strings.TrimSpace(req.Code) == "" || req.Vulnerability == nil {
			writeError(w, http.StatusBadRequest, "Code and vulnerability are required")
			return
		}
		req.Vulnerability.EnsureKind()
		target.Vulnerability = req.Vulnerability
	}

	fix, err := s.svc.Fix(r.Context(), req.Code, target)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fix)
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "Prompt is required")
		return
	}

	out, err := s.svc.Generate(r.Context(), req.Prompt)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	recs, err := s.svc.History(r.Context(), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type feedbackRequest struct {
	Accepted *bool  `json:"accepted"`
	Comment  string `json:"comment"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Accepted == nil {
		writeError(w, http.StatusBadRequest, "accepted is required")
		return
	}

	err := s.svc.Feedback(r.Context(), r.PathValue("id"), store.Feedback{Accepted: *req.Accepted, Comment: req.Comment})
	if err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "provider": s.cfg.Provider})
}

// decode 读取 JSON 请求体，失败时写入 400 并返回 false
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// statusFor 把错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, internal.ErrInvalidSubmission):
		return http.StatusBadRequest
	case errors.Is(err, download.ErrNotContract), errors.Is(err, download.ErrUnverified):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, handler.ErrHistoryDisabled), errors.Is(err, handler.ErrFetchDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, internal.ErrTimeout):
		return http.StatusGatewayTimeout
	case internal.IsRemoteFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	switch {
	case handler.IsClientError(err):
		telemetry.LogDebug("rejected request", "status", status, "error", err)
	case status >= http.StatusInternalServerError:
		telemetry.LogError("request failed", err, "status", status)
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		telemetry.LogError("failed to encode response", err)
	}
}

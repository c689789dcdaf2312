package httpadapter

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/kirillkom/pollen-vision/internal/config"
	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
	"github.com/kirillkom/pollen-vision/internal/observability/metrics"
)

const (
	serviceName          = "api"
	backpressureWait     = 100 * time.Millisecond
	multipartMemoryBytes = 8 << 20
	maxBatchFiles        = 100
)

// Services groups the inbound ports the API exposes.
type Services struct {
	Analyzer ports.ImageAnalyzer
	Batches  ports.BatchSubmitter
	History  ports.HistoryQuery
	Reports  ports.ReportService
	Accounts ports.AccountService
	Cases    ports.CaseBoard
	Backup   ports.HistoryBackup
}

type Router struct {
	cfg config.Config

	analyzer ports.ImageAnalyzer
	batches  ports.BatchSubmitter
	history  ports.HistoryQuery
	reports  ports.ReportService
	accounts ports.AccountService
	cases    ports.CaseBoard
	backup   ports.HistoryBackup

	sessions sessions.Store
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) { rt.metrics = m }
}

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func WithSessionStore(store sessions.Store) RouterOption {
	return func(rt *Router) {
		if store != nil {
			rt.sessions = store
		}
	}
}

func NewRouter(cfg config.Config, svc Services, opts ...RouterOption) *Router {
	rt := &Router{
		cfg:      cfg,
		analyzer: svc.Analyzer,
		batches:  svc.Batches,
		history:  svc.History,
		reports:  svc.Reports,
		accounts: svc.Accounts,
		cases:    svc.Cases,
		backup:   svc.Backup,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.sessions == nil {
		rt.sessions = NewSessionStore(cfg.SessionSecret, cfg.SessionMaxAge, false)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/auth/register", rt.register)
	mux.HandleFunc("POST /v1/auth/login", rt.login)
	mux.HandleFunc("POST /v1/auth/logout", rt.logout)
	mux.HandleFunc("GET /v1/auth/me", rt.me)

	mux.HandleFunc("POST /v1/analyses", requireRole(domain.RoleUser, rt.analyze))
	mux.HandleFunc("GET /v1/analyses/{id}", requireRole(domain.RoleUser, rt.getAnalysis))
	mux.HandleFunc("GET /v1/analyses/{id}/annotated", requireRole(domain.RoleUser, rt.getAnnotated))
	mux.HandleFunc("GET /v1/analyses/{id}/report", requireRole(domain.RoleProfessional, rt.getAnalysisReport))

	mux.HandleFunc("POST /v1/batches", requireRole(domain.RoleProfessional, rt.submitBatch))
	mux.HandleFunc("GET /v1/batches/{id}", requireRole(domain.RoleProfessional, rt.getBatch))
	mux.HandleFunc("GET /v1/batches/{id}/report", requireRole(domain.RoleProfessional, rt.getBatchReport))

	mux.HandleFunc("GET /v1/history", requireRole(domain.RoleUser, rt.getHistory))
	mux.HandleFunc("GET /v1/history/export", requireRole(domain.RoleProfessional, rt.exportHistory))
	mux.HandleFunc("GET /v1/trends", requireRole(domain.RoleProfessional, rt.getTrends))
	mux.HandleFunc("GET /v1/trends/compare", requireRole(domain.RoleProfessional, rt.compareGroups))
	mux.HandleFunc("POST /v1/backups", requireRole(domain.RoleProfessional, rt.createBackup))

	mux.HandleFunc("GET /v1/cases", requireRole(domain.RoleUser, rt.listCases))
	mux.HandleFunc("POST /v1/cases", requireRole(domain.RoleProfessional, rt.publishCase))
	mux.HandleFunc("POST /v1/cases/{id}/images", requireRole(domain.RoleProfessional, rt.attachCaseImage))
	mux.HandleFunc("POST /v1/cases/{id}/like", requireRole(domain.RoleUser, rt.likeCase))
	mux.HandleFunc("GET /v1/cases/{id}/comments", requireRole(domain.RoleUser, rt.listComments))
	mux.HandleFunc("POST /v1/cases/{id}/comments", requireRole(domain.RoleProfessional, rt.addComment))

	mux.HandleFunc("GET /v1/admin/users", requireRole(domain.RoleAdmin, rt.listUsers))
	mux.HandleFunc("POST /v1/admin/users/{username}/disable", requireRole(domain.RoleAdmin, rt.disableUser))
	mux.HandleFunc("POST /v1/admin/users/{username}/enable", requireRole(domain.RoleAdmin, rt.enableUser))
	mux.HandleFunc("DELETE /v1/admin/users/{username}", requireRole(domain.RoleAdmin, rt.deleteUser))

	var handler http.Handler = rt.sessionMiddleware(mux)
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst, rt.onRateLimited)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) onRateLimited() {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(serviceName, "rate_limit")
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

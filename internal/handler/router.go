package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/campaignhub/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder
	// TrustForwardedHeaders がtrueの場合のみX-Forwarded-For等から接続元を復元する。
	// 信頼できるリバースプロキシの背後でのみ有効にすること。
	TrustForwardedHeaders bool

	// ヘルスチェック
	HealthChecker HealthChecker

	// メトリクス（nilの場合は/metricsを公開しない）
	MetricsHandler http.Handler

	// 会員登録
	SignupService SignupServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP（TrustForwardedHeaders時のみ） → Logging → Recovery → SecurityHeaders → CORS → Metrics
//
// 会員登録ルートにのみクライアントIP単位のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if deps.TrustForwardedHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}

	signupHandler := NewSignupHandler(deps.SignupService, logger)

	// --- 運用系ルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker, logger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 会員登録 ---
	r.Route("/api/auth", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.With(deps.RateLimiter.Middleware()).Post("/signup", signupHandler.Signup)
			return
		}
		r.Post("/signup", signupHandler.Signup)
	})

	return r
}

// Package app はコマンドライン引数に応じてAPIサーバー、マイグレーション、ヘルスチェックを起動する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/campaignhub/internal/config"
	"github.com/hitoshi/campaignhub/internal/database"
	"github.com/hitoshi/campaignhub/internal/handler"
	"github.com/hitoshi/campaignhub/internal/identity"
	"github.com/hitoshi/campaignhub/internal/logger"
	"github.com/hitoshi/campaignhub/internal/metrics"
	"github.com/hitoshi/campaignhub/internal/middleware"
	"github.com/hitoshi/campaignhub/internal/repository"
	"github.com/hitoshi/campaignhub/internal/signup"
	"github.com/hitoshi/campaignhub/internal/telemetry"
	"github.com/hitoshi/campaignhub/internal/worker/orphanaudit"
)

const serviceName = "campaignhub"

// Version はビルド時に -ldflags で上書きされる。
var Version = "dev"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "info")

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("identity_provider", cfg.IdentityProvider),
		slog.String("version", Version),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. トレーシング（OTEL_ENDPOINT未設定時は何もしない）
	shutdownTracing, err := telemetry.Setup(ctx, serviceName, Version, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Error("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	// 2. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// DBを閉じる前にバックグラウンド処理を止める
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 3. 認証プロバイダーの選択
	provider, err := newIdentityProvider(cfg, db)
	if err != nil {
		return err
	}

	// 4. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 5. ローカル認証IDの孤立監査（認証IDが同じDBにある場合のみ）
	if cfg.IdentityProvider == config.IdentityProviderLocal && cfg.OrphanAuditInterval > 0 {
		audit := orphanaudit.NewJob(repository.NewPostgresAuthUserRepo(db), collector, slog.Default())
		go audit.Start(ctx, cfg.OrphanAuditInterval)
	}

	// 6. 会員登録サービス
	signupService := signup.NewService(signup.Dependencies{
		Provider: provider,
		Profiles: repository.NewPostgresProfileRepo(db),
		Terms:    repository.NewPostgresTermsAcceptanceRepo(db),
		Recorder: collector,
		Logger:   slog.Default(),
		Timeout:  cfg.SignupTimeout,
	})

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.SignupRateLimiterConfig(cfg.RateLimitSignup),
		slog.Default(),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:                slog.Default(),
		CORSAllowedOrigin:     cfg.CORSAllowedOrigin,
		RateLimiter:           rateLimiter,
		StatusRecorder:        collector,
		TrustForwardedHeaders: cfg.TrustForwardedHeaders,
		HealthChecker:         db,
		MetricsHandler:        metrics.Handler(reg),
		SignupService:         signupService,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.SignupTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newIdentityProvider は設定に応じた認証プロバイダーを生成する。
func newIdentityProvider(cfg *config.Config, db *sql.DB) (identity.Provider, error) {
	switch cfg.IdentityProvider {
	case config.IdentityProviderLocal:
		slog.Info("using local identity provider")
		return identity.NewLocalProvider(
			repository.NewPostgresAuthUserRepo(db), slog.Default(), cfg.BcryptCost,
		), nil
	default:
		client, err := identity.NewGoTrueClient(
			&http.Client{Timeout: cfg.IdentityTimeout},
			slog.Default(),
			cfg.GoTrueURL,
			cfg.GoTrueServiceKey,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create identity client: %w", err)
		}
		return client, nil
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jyllandteodosio/taskaru/internal/middleware"
)

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.HTTPStatusRecorder // nil可
	Logger            *slog.Logger

	// ヘルスチェック
	HealthChecker HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// リスト・タスク
	ListService ListServiceInterface
	TaskService TaskServiceInterface
	Broadcaster Broadcaster

	// ユーザー
	UserService UserServiceInterface

	// WebSocket接続の受け入れハンドラー
	WSHandler http.Handler

	// Prometheusスクレイプ用ハンドラー（nil可）
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
//	→（認証ルートのみ）Session → CSRF → RateLimit(General)
//
// 認証ルート（/auth/*）、/health、/api/csrf-tokenはセッション検証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	listHandler := NewListHandler(deps.ListService, deps.Broadcaster)
	taskHandler := NewTaskHandler(deps.TaskService, deps.Broadcaster)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// リスト管理
		r.Route("/api/lists", func(r chi.Router) {
			r.Get("/", listHandler.ListLists)
			r.Post("/", listHandler.CreateList)

			r.Route("/{listId}", func(r chi.Router) {
				r.Get("/", listHandler.GetList)
				r.Put("/", listHandler.UpdateList)
				r.Delete("/", listHandler.DeleteList)

				// 共有操作（共有専用レート制限を追加）
				r.Route("/share/{collaboratorId}", func(r chi.Router) {
					r.With(deps.RateLimiter.ShareMiddleware()).Post("/", listHandler.AddCollaborator)
					r.With(deps.RateLimiter.ShareMiddleware()).Delete("/", listHandler.RemoveCollaborator)
				})

				// タスク管理
				r.Route("/tasks", func(r chi.Router) {
					r.Get("/", taskHandler.ListTasks)
					r.Post("/", taskHandler.CreateTask)

					r.Route("/{taskId}", func(r chi.Router) {
						r.Get("/", taskHandler.GetTask)
						r.Put("/", taskHandler.UpdateTask)
						r.Delete("/", taskHandler.DeleteTask)
					})
				})
			})
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/search", userHandler.Search)
			r.Put("/me", userHandler.UpdateMe)
			r.Delete("/me", userHandler.Withdraw)
		})

		// WebSocket
		if deps.WSHandler != nil {
			r.Method(http.MethodGet, "/ws", deps.WSHandler)
		}
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		statusCode := http.StatusOK

		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				status = "unavailable"
				statusCode = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/rxnote/internal/middleware"
	"github.com/hitoshi/rxnote/internal/model"
)

// HealthChecker はヘルスチェックでのDB疎通確認に必要なインターフェース。
// *sql.DB がこのインターフェースを満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	ProfileFinder     middleware.ProfileFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 運用系（いずれもnil許容）
	HealthChecker   HealthChecker
	Logger          *slog.Logger
	MetricsRecorder middleware.HTTPMetricsRecorder
	MetricsHandler  http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// プロフィール
	ProfileStore ProfileStoreInterface

	// 処方箋
	PrescriptionService PrescriptionServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → CORS → SessionMiddleware → RateLimit(General) → ProfileMiddleware
//
// 認証ルート（/api/auth/*）はセッションミドルウェアの外に配置し、
// signup/loginには送信元IP単位のレート制限を適用する。
// プロフィールルートはプロフィール未作成のアカウントからも呼べる必要があるため、
// ProfileMiddlewareを通さない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// パニック回復を最上位に適用（全ルートに効く）
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.MetricsRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.MetricsRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// 運用用エンドポイント（認証・レート制限の対象外）
	r.Get("/health", newHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	profileHandler := NewProfileHandler(deps.ProfileStore)
	prescriptionHandler := NewPrescriptionHandler(deps.PrescriptionService)

	// --- 認証不要のルート ---

	r.Route("/api/auth", func(r chi.Router) {
		// 総当たり攻撃の対象となるエンドポイントにはIP単位のレート制限を適用する。
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/signup", authHandler.SignUp)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.SignIn)

		r.Post("/logout", authHandler.SignOut)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 全デバイス一括サインアウト（自アカウントの特定が必要なためセッション必須）
		r.Post("/api/auth/logout_all", authHandler.SignOutAll)

		// プロフィール管理（セッションブートストラップのget-or-createで
		// プロフィール作成前に呼ばれるため、ProfileMiddlewareの外）
		r.Route("/api/profiles", func(r chi.Router) {
			r.Post("/", profileHandler.CreateProfile)
			r.Get("/{id}", profileHandler.GetProfile)
		})

		// プロフィール解決済みのルート
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewProfileMiddleware(deps.ProfileFinder))

			// 処方箋管理
			r.Route("/api/prescriptions", func(r chi.Router) {
				r.Get("/", prescriptionHandler.ListPrescriptions)

				// 作成と状態変更は医師専用
				r.With(middleware.NewRequireRoleMiddleware(model.RoleDoctor)).
					Post("/", prescriptionHandler.CreatePrescription)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", prescriptionHandler.GetPrescription)
					r.With(middleware.NewRequireRoleMiddleware(model.RoleDoctor)).
						Patch("/status", prescriptionHandler.UpdatePrescriptionStatus)
				})
			})

			// 患者一覧は医師専用
			r.With(middleware.NewRequireRoleMiddleware(model.RoleDoctor)).
				Get("/api/patients", prescriptionHandler.ListPatients)
		})
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// Dockerのhealthcheckサブコマンドから呼ばれる。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

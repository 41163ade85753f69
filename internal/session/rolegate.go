package session

import "github.com/hitoshi/rxnote/internal/model"

// RouteDecision は解決済みの認証状態から導かれるルーティング判定。
type RouteDecision string

const (
	// GoToLogin はログイン画面への遷移を指示する。
	GoToLogin RouteDecision = "login"
	// GoToDoctorHome は医師ダッシュボードへの遷移を指示する。
	GoToDoctorHome RouteDecision = "doctor_home"
	// GoToPatientHome は患者ダッシュボードへの遷移を指示する。
	GoToPatientHome RouteDecision = "patient_home"
	// Stay は現在地に留まることを指示する（解決待ちまたは解決失敗時）。
	Stay RouteDecision = "stay"
)

// Decide は解決済みのIdentityとプロフィールからルーティング判定を返す純粋関数。
// 解決がLoading中に呼ぶと早すぎるリダイレクトを起こすため、
// 呼び出し側でLoading=falseを確認してから使用すること（Bootstrap.Routeはこれを保証する）。
func Decide(identity *model.Identity, profile *model.Profile) RouteDecision {
	if identity == nil {
		return GoToLogin
	}
	if profile == nil {
		// 解決中または解決失敗: ロールを推測せず現在地に留まる。
		return Stay
	}
	if profile.Role == model.RoleDoctor {
		return GoToDoctorHome
	}
	return GoToPatientHome
}

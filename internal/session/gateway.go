// Package session はセッションブートストラップを提供する。
// 起動時に認証済みIdentityとプロフィールを解決し、IDプロバイダーの
// 認証状態変更イベントに追随する、競合安全な状態機械を実装する。
package session

import (
	"context"

	"github.com/hitoshi/rxnote/internal/model"
)

// AuthEventType は認証状態変更イベントの種別を表す。
type AuthEventType string

const (
	// EventSignedIn はサインイン完了イベント。
	EventSignedIn AuthEventType = "SIGNED_IN"
	// EventSignedOut はサインアウト・セッション失効イベント。
	EventSignedOut AuthEventType = "SIGNED_OUT"
)

// AuthEvent はIDプロバイダーが発火する認証状態変更イベント。
// IdentityはSIGNED_OUTの場合nilとなる。
type AuthEvent struct {
	Type     AuthEventType
	Identity *model.Identity
}

// Subscription は認証状態変更イベントの購読を表す。
// Unsubscribeは冪等であること。
type Subscription interface {
	Unsubscribe()
}

// SignUpAttributes は登録時にプロフィールへ引き継ぐ属性。
type SignUpAttributes struct {
	FullName string
	Role     model.Role
}

// AuthResult は認証アクションの結果を表す。
// SignedInがfalseの場合は「アカウントは存在するがセッション未取得」であり、
// サインイン成功とは区別された正常な結果として扱う。
type AuthResult struct {
	Identity *model.Identity
	SignedIn bool
}

// IdentityProvider はIDプロバイダーゲートウェイのインターフェース。
// セッションの発行・破棄と認証状態変更イベントの購読を提供する。
type IdentityProvider interface {
	// GetSession は現在の有効なセッションのIdentityを返す。
	// セッションが存在しない場合は(nil, nil)を返す。
	GetSession(ctx context.Context) (*model.Identity, error)

	// OnAuthStateChange は認証状態変更イベントの購読を開始する。
	OnAuthStateChange(handler func(AuthEvent)) Subscription

	// SignUp はアカウントを作成する。
	// メールアドレスが登録済みの場合はALREADY_REGISTEREDのAPIErrorを返す。
	SignUp(ctx context.Context, email, password string, attrs SignUpAttributes) (*AuthResult, error)

	// SignInWithPassword はメールアドレスとパスワードでサインインする。
	// 認証情報が一致しない場合はINVALID_CREDENTIALSのAPIErrorを返す。
	SignInWithPassword(ctx context.Context, email, password string) (*AuthResult, error)

	// SignOut は現在のセッションを破棄する。
	SignOut(ctx context.Context) error
}

// ProfileStore はプロフィールストアゲートウェイのインターフェース。
// 所有者はストア側であり、ブートストラップはキャッシュ/消費者に過ぎない。
type ProfileStore interface {
	// GetByID は指定IdentityのIDのプロフィールを返す。
	// 見つからない場合は(nil, nil)を返す。
	GetByID(ctx context.Context, id string) (*model.Profile, error)

	// Insert はプロフィールを作成する。既存フィールドの上書きは行わない。
	// 既に存在する場合はPROFILE_ALREADY_EXISTSのAPIErrorを返す。
	Insert(ctx context.Context, profile *model.Profile) error
}

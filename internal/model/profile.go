package model

import "time"

// Role はユーザーの役割を表す。
type Role string

const (
	// RoleDoctor は医師ロール。処方箋の作成・管理が可能。
	RoleDoctor Role = "doctor"
	// RolePatient は患者ロール。自分宛の処方箋の閲覧のみ可能。
	RolePatient Role = "patient"
)

// IsValid はロールが定義済みの値かどうかを返す。
func (r Role) IsValid() bool {
	return r == RoleDoctor || r == RolePatient
}

// Profile はIdentityと1:1で対応するアプリケーションレベルのユーザー情報。
// 所有者はプロフィールストアであり、サインイン済みIdentityに対して
// 必ず1件存在する（初回観測時に遅延作成される）。
type Profile struct {
	ID        string
	Email     string
	FullName  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultProfile は初回サインイン時に合成されるデフォルトプロフィールを返す。
// ロールはプロフィールストアを正とし、未知の場合はpatientで初期化する。
func DefaultProfile(identityID, email string, now time.Time) *Profile {
	return &Profile{
		ID:        identityID,
		Email:     email,
		FullName:  "",
		Role:      RolePatient,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

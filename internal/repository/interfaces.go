// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/rxnote/internal/model"
)

// AccountRepository はアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Create はアカウントを作成する。
	// メールアドレスが重複している場合はALREADY_REGISTEREDのAPIErrorを返す。
	Create(ctx context.Context, account *model.Account) error
}

// ProfileRepository はプロフィールデータの永続化インターフェース。
// プロフィールストアの所有者であり、セッションブートストラップは消費者に過ぎない。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// Insert はプロフィールを作成する。既存フィールドの上書きは行わない。
	// 同一IDのプロフィールが既に存在する場合はPROFILE_ALREADY_EXISTSのAPIErrorを返す。
	Insert(ctx context.Context, profile *model.Profile) error

	// ListByRole は指定ロールのプロフィール一覧をfull_name昇順で返す。
	ListByRole(ctx context.Context, role model.Role) ([]*model.Profile, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByAccountID は指定アカウントの全セッションを削除する。
	DeleteByAccountID(ctx context.Context, accountID string) error
}

// PrescriptionRepository は処方箋データの永続化インターフェース。
type PrescriptionRepository interface {
	// FindByID は指定IDの処方箋を医薬品込みで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Prescription, error)

	// CreateWithMedications は処方箋と医薬品を同一トランザクションで作成する。
	CreateWithMedications(ctx context.Context, prescription *model.Prescription) error

	// ListByDoctorID は医師が作成した処方箋一覧を医薬品込みでcreated_at降順で返す。
	ListByDoctorID(ctx context.Context, doctorID string) ([]*model.Prescription, error)

	// ListByPatientID は患者宛の処方箋一覧を医薬品込みでcreated_at降順で返す。
	ListByPatientID(ctx context.Context, patientID string) ([]*model.Prescription, error)

	// UpdateStatus は処方箋の状態を更新する。
	// 処方箋が存在しない場合はPRESCRIPTION_NOT_FOUNDのAPIErrorを返す。
	UpdateStatus(ctx context.Context, id string, status model.PrescriptionStatus) error
}

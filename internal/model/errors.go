// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, prescription, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAlreadyRegistered    = "ALREADY_REGISTERED"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbiddenRole        = "FORBIDDEN_ROLE"
	ErrCodeInvalidRole          = "INVALID_ROLE"
	ErrCodeProfileNotFound      = "PROFILE_NOT_FOUND"
	ErrCodeProfileAlreadyExists = "PROFILE_ALREADY_EXISTS"
	ErrCodePatientNotFound      = "PATIENT_NOT_FOUND"
	ErrCodePrescriptionNotFound = "PRESCRIPTION_NOT_FOUND"
	ErrCodeInvalidStatus        = "INVALID_STATUS"
	ErrCodeInvalidPrescription  = "INVALID_PRESCRIPTION"
	ErrCodeInvalidMedication    = "INVALID_MEDICATION"
	ErrCodeAccountNotFound      = "ACCOUNT_NOT_FOUND"
)

// NewAlreadyRegisteredError はメールアドレス重複登録エラーを生成する。
func NewAlreadyRegisteredError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyRegistered,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "auth",
		Action:   "登録済みのパスワードでログインしてください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenRoleError はロール不足による操作拒否エラーを生成する。
func NewForbiddenRoleError(required Role) *APIError {
	return &APIError{
		Code:     ErrCodeForbiddenRole,
		Message:  fmt.Sprintf("この操作には %s ロールが必要です。", required),
		Category: "auth",
		Action:   "権限のあるアカウントでログインしてください。",
	}
}

// NewInvalidRoleError は未定義ロールエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("無効なロールです: %s", role),
		Category: "validation",
		Action:   "ロールには doctor または patient を指定してください。",
	}
}

// NewProfileNotFoundError はプロフィール未検出エラーを生成する。
func NewProfileNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("指定されたプロフィールが見つかりません: %s", id),
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewProfileAlreadyExistsError はプロフィール重複作成エラーを生成する。
// 並行する遅延作成同士の競合で発生し、呼び出し側は再取得で回復できる。
func NewProfileAlreadyExistsError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileAlreadyExists,
		Message:  fmt.Sprintf("プロフィールは既に存在します: %s", id),
		Category: "auth",
		Action:   "既存のプロフィールを再取得してください。",
	}
}

// NewPatientNotFoundError は患者未検出エラーを生成する。
func NewPatientNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodePatientNotFound,
		Message:  fmt.Sprintf("指定された患者が見つかりません: %s", id),
		Category: "prescription",
		Action:   "患者一覧から選択し直してください。",
	}
}

// NewPrescriptionNotFoundError は処方箋未検出エラーを生成する。
func NewPrescriptionNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodePrescriptionNotFound,
		Message:  fmt.Sprintf("指定された処方箋が見つかりません: %s", id),
		Category: "prescription",
		Action:   "処方箋IDを確認してください。",
	}
}

// NewInvalidStatusError は無効な処方箋状態エラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効な処方箋状態です: %s", status),
		Category: "validation",
		Action:   "状態には active、completed、cancelled のいずれかを指定してください。",
	}
}

// NewInvalidPrescriptionError は処方箋バリデーションエラーを生成する。
func NewInvalidPrescriptionError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPrescription,
		Message:  fmt.Sprintf("処方箋の内容が不正です: %s", reason),
		Category: "validation",
		Action:   "必須項目をすべて入力してください。",
	}
}

// NewInvalidMedicationError は医薬品バリデーションエラーを生成する。
func NewInvalidMedicationError(index int, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMedication,
		Message:  fmt.Sprintf("医薬品 %d 件目の内容が不正です: %s", index+1, reason),
		Category: "validation",
		Action:   "医薬品の名称・用量・頻度・期間をすべて入力してください。",
	}
}

// NewAccountNotFoundError はアカウント未検出エラーを生成する。
func NewAccountNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  "アカウントが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// IsAlreadyRegistered はエラーがメールアドレス重複を示すかどうかを返す。
// 冪等登録プロトコルのフォールバック判定に使用する。
func IsAlreadyRegistered(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == ErrCodeAlreadyRegistered
}

// IsProfileAlreadyExists はエラーがプロフィールの重複作成を示すかどうかを返す。
// get-or-create競合時の再取得判定に使用する。
func IsProfileAlreadyExists(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == ErrCodeProfileAlreadyExists
}

// IsInvalidCredentials はエラーが認証情報不一致を示すかどうかを返す。
func IsInvalidCredentials(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == ErrCodeInvalidCredentials
}

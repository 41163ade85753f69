// Package model はドメインモデルを定義する。
package model

import "time"

// Account はメール/パスワード認証のアカウントを表す。
// パスワードはbcryptハッシュのみを保持し、平文は一切保存しない。
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity は認証済みプリンシパルを表す。
// IDプロバイダーが発行する読み取り専用のビューであり、
// アプリケーション側からは観測のみで変更しない。
type Identity struct {
	ID        string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Package identity は認証ID（ログイン可能なアカウント）の作成を担う認証サービスのクライアントを提供する。
package identity

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmailExists は認証サービスが構造化されたエラーコードでメールアドレスの重複を報告した場合に返される。
var ErrEmailExists = errors.New("identity: email already registered")

// AccountParams は認証ID作成時の入力を表す。
type AccountParams struct {
	Email    string
	Password string
	// Metadata は認証IDに付随させる表示用情報（name, phone）。
	Metadata map[string]string
}

// Provider は確認済み状態の認証IDを作成する認証サービスのインターフェース。
type Provider interface {
	// CreateAccount は認証IDを作成し、払い出されたIDを返す。
	// 認証サービスが作成を拒否した場合は*ProviderErrorを返す。
	// 成功応答にIDが含まれない場合は空文字列とnilを返す。
	CreateAccount(ctx context.Context, params AccountParams) (string, error)
}

// ProviderError は認証サービスが作成を拒否したことを表す。
// 通信自体の失敗はProviderErrorにならない。
type ProviderError struct {
	StatusCode int    // 認証サービスのHTTPステータス（ローカルの場合は0）
	Code       string // 構造化エラーコード（例: email_exists）。無い場合は空
	Message    string // 認証サービスのメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity provider rejected account (status=%d, code=%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("identity provider rejected account (status=%d): %s", e.StatusCode, e.Message)
}

// Unwrap は重複を示す構造化エラーコードの場合にErrEmailExistsを返す。
func (e *ProviderError) Unwrap() error {
	if isEmailExistsCode(e.Code) {
		return ErrEmailExists
	}
	return nil
}

func isEmailExistsCode(code string) bool {
	switch code {
	case "email_exists", "user_already_exists":
		return true
	}
	return false
}

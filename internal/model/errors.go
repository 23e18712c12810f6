// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"net/http"
)

// APIError は統一エラーフォーマットを表す。
// Status はHTTPステータス相当の重大度で、同じコードでも原因により異なる場合がある。
type APIError struct {
	Status  int                 // HTTPステータスコード
	Code    string              // エラーコード
	Message string              // ユーザー向けメッセージ
	Details map[string][]string // 入力項目ごとの違反内容（検証エラーのみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeEmailAlreadyExists  = "EMAIL_ALREADY_EXISTS"
	ErrCodeAuthCreateFailed    = "AUTH_CREATE_FAILED"
	ErrCodeProfileCreateFailed = "PROFILE_CREATE_FAILED"
	ErrCodeTermsSaveFailed     = "TERMS_SAVE_FAILED"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewValidationError は入力検証エラーを生成する。
// detailsがnilの場合はレスポンスにdetailsを含めない。
func NewValidationError(details map[string][]string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    ErrCodeValidation,
		Message: "入力内容を確認してください。",
		Details: details,
	}
}

// NewEmailAlreadyExistsError は登録済みメールアドレスのエラーを生成する。
func NewEmailAlreadyExistsError() *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    ErrCodeEmailAlreadyExists,
		Message: "既に登録されているメールアドレスです。",
	}
}

// NewAuthCreateFailedError は認証サービスが作成を拒否した場合のエラーを生成する。
// メッセージが空の場合は汎用メッセージを使用する。
func NewAuthCreateFailedError(message string) *APIError {
	if message == "" {
		message = "アカウントの作成に失敗しました。"
	}
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    ErrCodeAuthCreateFailed,
		Message: message,
	}
}

// NewAuthUnidentifiableError はアカウント作成後にIDを確認できなかった場合のエラーを生成する。
func NewAuthUnidentifiableError() *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    ErrCodeAuthCreateFailed,
		Message: "アカウント作成後にユーザーIDを確認できませんでした。",
	}
}

// NewAuthUnavailableError は認証サービスへの呼び出し自体が失敗した場合のエラーを生成する。
func NewAuthUnavailableError() *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    ErrCodeAuthCreateFailed,
		Message: "認証サービスに接続できませんでした。",
	}
}

// NewProfileCreateFailedError はプロフィール保存失敗エラーを生成する。
func NewProfileCreateFailedError(message string) *APIError {
	if message == "" {
		message = "プロフィールの保存に失敗しました。"
	}
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    ErrCodeProfileCreateFailed,
		Message: message,
	}
}

// NewTermsSaveFailedError は規約同意履歴の保存失敗エラーを生成する。
func NewTermsSaveFailedError(message string) *APIError {
	if message == "" {
		message = "規約同意履歴の保存に失敗しました。"
	}
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    ErrCodeTermsSaveFailed,
		Message: message,
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Status:  http.StatusTooManyRequests,
		Code:    ErrCodeRateLimited,
		Message: "リクエストが多すぎます。しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    ErrCodeInternal,
		Message: "内部エラーが発生しました。",
	}
}

// Package model はドメインモデルを定義する。
package model

import "time"

// Role はサービス利用者の種別を表す。
type Role string

const (
	// RoleAdvertiser はキャンペーンを作成する広告主。
	RoleAdvertiser Role = "advertiser"
	// RoleInfluencer はキャンペーンに参加するインフルエンサー。
	RoleInfluencer Role = "influencer"
)

// Roles は定義済みの全ロールを返す。
// ロールを追加した場合はリダイレクト先の定義も必要になる（signup.RedirectFor のテストで検出される）。
func Roles() []Role {
	return []Role{RoleAdvertiser, RoleInfluencer}
}

// ParseRole は文字列をRoleに変換する。未定義の値の場合はfalseを返す。
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles() {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// 規約種別
const (
	TermsTypeService = "service"
	TermsTypePrivacy = "privacy"
)

// RequiredTermsTypes は会員登録時に必ず同意が必要な規約種別を返す。
func RequiredTermsTypes() []string {
	return []string{TermsTypeService, TermsTypePrivacy}
}

// SignupInput は検証済みの会員登録入力を表す。
// AcceptedTermsTypes は重複を除去済みで、必須規約をすべて含む。
type SignupInput struct {
	Name               string
	Phone              string
	Email              string
	Password           string
	Role               Role
	AcceptedTermsTypes []string
}

// Profile は認証IDに紐づくアプリケーション上の利用者プロフィールを表す。
type Profile struct {
	ID         string
	AuthUserID string
	Name       string
	Phone      string
	Email      string
	Role       Role
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TermsAcceptance はプロフィールが登録時に同意した規約の記録を表す。
type TermsAcceptance struct {
	ID         string
	ProfileID  string
	TermsType  string
	AcceptedAt time.Time
}

// SignupResult は会員登録成功時の結果を表す。
type SignupResult struct {
	RedirectTo string
	Role       Role
	ProfileID  string
	AuthUserID string
}

// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/campaignhub/internal/model"
)

// ErrDuplicateEmail は同じメールアドレスの認証IDが既に存在する場合に返される。
var ErrDuplicateEmail = errors.New("repository: duplicate email")

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// Create はプロフィールを1件作成し、採番されたIDを返す。
	Create(ctx context.Context, profile *model.Profile) (string, error)
}

// TermsAcceptanceRepository は規約同意履歴の永続化インターフェース。
type TermsAcceptanceRepository interface {
	// CreateBatch は規約種別ごとに1行ずつ、1回のINSERTでまとめて作成する。
	// 既に同意済みの規約種別は無視する。
	CreateBatch(ctx context.Context, profileID string, termsTypes []string) error
}

// AuthUserRepository はローカル認証IDの永続化インターフェース。
type AuthUserRepository interface {
	// Create は認証IDを作成し、採番されたIDを返す。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.AuthUser) (string, error)
}

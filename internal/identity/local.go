package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/campaignhub/internal/model"
	"github.com/hitoshi/campaignhub/internal/repository"
)

// LocalProvider はアプリケーションのデータベースに認証IDを保存するプロバイダー。
// 外部の認証サービスを使わずに動作させる場合に使用する。
type LocalProvider struct {
	repo       repository.AuthUserRepository
	logger     *slog.Logger
	bcryptCost int
	now        func() time.Time
}

// NewLocalProvider はLocalProviderを生成する。
func NewLocalProvider(repo repository.AuthUserRepository, logger *slog.Logger, bcryptCost int) *LocalProvider {
	return &LocalProvider{
		repo:       repo,
		logger:     logger,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// CreateAccount はパスワードをbcryptでハッシュ化し、確認済みの認証IDを作成する。
func (p *LocalProvider) CreateAccount(ctx context.Context, params AccountParams) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), p.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", &ProviderError{Message: "パスワードが長すぎます。"}
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	confirmedAt := p.now()
	id, err := p.repo.Create(ctx, &model.AuthUser{
		Email:            normalizeEmail(params.Email),
		PasswordHash:     string(hash),
		Metadata:         params.Metadata,
		EmailConfirmedAt: &confirmedAt,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return "", &ProviderError{
				Code:    "email_exists",
				Message: "A user with this email address has already been registered",
			}
		}
		return "", err
	}

	p.logger.Debug("ローカル認証IDを作成しました", slog.String("auth_user_id", id))
	return id, nil
}

// normalizeEmail は大文字小文字違いの同一アドレスを重複として扱うため小文字に揃える。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// compile-time interface check
var _ Provider = (*LocalProvider)(nil)

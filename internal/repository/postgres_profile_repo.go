package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/campaignhub/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// Create はプロフィールを1件作成し、採番されたIDを返す。
func (r *PostgresProfileRepo) Create(ctx context.Context, profile *model.Profile) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO profiles (auth_user_id, name, phone, email, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		profile.AuthUserID, profile.Name, profile.Phone, profile.Email, string(profile.Role),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert profile: %w", err)
	}

	return id, nil
}

// FindByAuthUserID は認証IDに紐づくプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByAuthUserID(ctx context.Context, authUserID string) (*model.Profile, error) {
	p := &model.Profile{}
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, auth_user_id, name, phone, email, role, created_at, updated_at
		 FROM profiles
		 WHERE auth_user_id = $1`,
		authUserID,
	).Scan(&p.ID, &p.AuthUserID, &p.Name, &p.Phone, &p.Email, &role, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by auth user ID: %w", err)
	}

	p.Role = model.Role(role)
	return p, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)

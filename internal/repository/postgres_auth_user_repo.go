package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/campaignhub/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// PostgresAuthUserRepo はPostgreSQLを使用した認証IDリポジトリ。
type PostgresAuthUserRepo struct {
	db *sql.DB
}

// NewPostgresAuthUserRepo はPostgresAuthUserRepoを生成する。
func NewPostgresAuthUserRepo(db *sql.DB) *PostgresAuthUserRepo {
	return &PostgresAuthUserRepo{db: db}
}

// Create は認証IDを作成し、採番されたIDを返す。
func (r *PostgresAuthUserRepo) Create(ctx context.Context, user *model.AuthUser) (string, error) {
	metadata := user.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode user metadata: %w", err)
	}

	var id string
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO auth_users (email, password_hash, user_metadata, email_confirmed_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		user.Email, user.PasswordHash, metadataJSON, user.EmailConfirmedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicateEmail
		}
		return "", fmt.Errorf("failed to insert auth user: %w", err)
	}

	return id, nil
}

// CountWithoutProfile は作成からolderThan以上経過してもプロフィールが存在しない認証IDの数を返す。
func (r *PostgresAuthUserRepo) CountWithoutProfile(ctx context.Context, olderThan time.Duration) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*)
		 FROM auth_users a
		 WHERE a.created_at < now() - make_interval(secs => $1)
		   AND NOT EXISTS (SELECT 1 FROM profiles p WHERE p.auth_user_id = a.id)`,
		olderThan.Seconds(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count auth users without profile: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// compile-time interface check
var _ AuthUserRepository = (*PostgresAuthUserRepo)(nil)

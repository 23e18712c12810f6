package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/campaignhub/internal/model"
)

// PostgresTermsAcceptanceRepo はPostgreSQLを使用した規約同意履歴リポジトリ。
type PostgresTermsAcceptanceRepo struct {
	db *sql.DB
}

// NewPostgresTermsAcceptanceRepo はPostgresTermsAcceptanceRepoを生成する。
func NewPostgresTermsAcceptanceRepo(db *sql.DB) *PostgresTermsAcceptanceRepo {
	return &PostgresTermsAcceptanceRepo{db: db}
}

// CreateBatch は規約種別の配列をunnestし、1回のINSERTで全行を作成する。
// 単一文のため、一部の行だけが保存されることはない。
func (r *PostgresTermsAcceptanceRepo) CreateBatch(ctx context.Context, profileID string, termsTypes []string) error {
	if len(termsTypes) == 0 {
		return fmt.Errorf("failed to insert terms acceptances: no terms types")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO terms_acceptances (profile_id, terms_type)
		 SELECT $1, t FROM unnest($2::text[]) AS t
		 ON CONFLICT (profile_id, terms_type) DO NOTHING`,
		profileID, pq.Array(termsTypes),
	)
	if err != nil {
		return fmt.Errorf("failed to insert terms acceptances: %w", err)
	}

	return nil
}

// ListByProfileID はプロフィールの規約同意履歴を同意日時順に返す。
func (r *PostgresTermsAcceptanceRepo) ListByProfileID(ctx context.Context, profileID string) ([]*model.TermsAcceptance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, profile_id, terms_type, accepted_at
		 FROM terms_acceptances
		 WHERE profile_id = $1
		 ORDER BY accepted_at, terms_type`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list terms acceptances: %w", err)
	}
	defer rows.Close()

	var result []*model.TermsAcceptance
	for rows.Next() {
		ta := &model.TermsAcceptance{}
		if err := rows.Scan(&ta.ID, &ta.ProfileID, &ta.TermsType, &ta.AcceptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan terms acceptance: %w", err)
		}
		result = append(result, ta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate terms acceptances: %w", err)
	}

	return result, nil
}

// compile-time interface check
var _ TermsAcceptanceRepository = (*PostgresTermsAcceptanceRepo)(nil)

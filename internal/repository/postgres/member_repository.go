package postgres

import (
	"context"
	"database/sql"
	"errors"

	apperrors "github.com/open-builders/exmatrikulator-bot/internal/common/errors"
	domain "github.com/open-builders/exmatrikulator-bot/internal/domain/member"
)

// MemberRepository stores verification records in the chatters table.
type MemberRepository struct {
	db *sql.DB
}

func NewMemberRepository(db *sql.DB) *MemberRepository { return &MemberRepository{db: db} }

var _ domain.Repository = (*MemberRepository)(nil)

// GetByID returns the member by Telegram ID, or nil if there is no record.
func (r *MemberRepository) GetByID(ctx context.Context, id int64) (*domain.Member, error) {
	const q = `
SELECT telegram_id, is_verified, is_global_admin, created_at, verified_at
FROM chatters
WHERE telegram_id = $1`
	row := r.db.QueryRowContext(ctx, q, id)
	var (
		m          domain.Member
		verifiedAt sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.Verified, &m.IsGlobalAdmin, &m.CreatedAt, &verifiedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseError("get member", err).WithDetail("user_id", id)
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		m.VerifiedAt = &t
	}
	return &m, nil
}

// MarkVerified upserts the member with is_verified=true in a single statement, so concurrent
// calls for the same ID cannot lose an update. verified_at keeps the first verification time.
func (r *MemberRepository) MarkVerified(ctx context.Context, id int64) error {
	const q = `
INSERT INTO chatters (telegram_id, is_verified, verified_at)
VALUES ($1, TRUE, now())
ON CONFLICT (telegram_id) DO UPDATE SET
	is_verified = TRUE,
	verified_at = COALESCE(chatters.verified_at, EXCLUDED.verified_at)`
	if _, err := r.db.ExecContext(ctx, q, id); err != nil {
		return apperrors.NewDatabaseError("mark verified", err).WithDetail("user_id", id)
	}
	return nil
}

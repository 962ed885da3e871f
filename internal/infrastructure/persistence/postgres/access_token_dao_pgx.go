package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/repository"
	"github.com/turtacn/authz/pkg/constants"
	"github.com/turtacn/authz/pkg/logger"
)

const slowQueryThreshold = 100 * time.Millisecond

// PgxAccessTokenDAO implements AccessTokenDAO with hand-written SQL over a pgx pool.
// Every state change is a single statement, so concurrent callers racing on the
// same JTI are serialized by PostgreSQL row locking.
type PgxAccessTokenDAO struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// NewPgxAccessTokenDAO creates the DAO.
//
// Parameters:
//   - pool: pgx pool from DBConnection.Pool
//   - log: Logger used for slow-query warnings
func NewPgxAccessTokenDAO(pool *pgxpool.Pool, log logger.Logger) *PgxAccessTokenDAO {
	return &PgxAccessTokenDAO{pool: pool, logger: log.WithComponent("PgxAccessTokenDAO")}
}

var _ repository.AccessTokenDAO = (*PgxAccessTokenDAO)(nil)

func (d *PgxAccessTokenDAO) observe(ctx context.Context, op, jti string, start time.Time) {
	if latency := time.Since(start); latency > slowQueryThreshold {
		d.logger.Warn(ctx, "Slow token info query detected",
			logger.String("operation", op),
			logger.String("jti", jti),
			logger.Int64("latency_ms", latency.Milliseconds()),
		)
	}
}

// Create inserts a tracking record.
//
// Returns:
//   - bool: false when the JTI already exists; the existing row is not modified
//   - error: database failure
func (d *PgxAccessTokenDAO) Create(ctx context.Context, info *models.AccessTokenInfo) (bool, error) {
	const query = `
		INSERT INTO access_token_infos (token_id, status, issued_at, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_id) DO NOTHING
	`
	defer d.observe(ctx, "create", info.TokenID, time.Now())

	tag, err := d.pool.Exec(ctx, query, info.TokenID, string(info.Status), info.IssuedAt, info.ExpiresAt, info.RevokedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert token info %s: %w", info.TokenID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// FindByJTI loads a record.
//
// Returns:
//   - *models.AccessTokenInfo: nil when the JTI is not tracked
//   - error: database failure
func (d *PgxAccessTokenDAO) FindByJTI(ctx context.Context, jti string) (*models.AccessTokenInfo, error) {
	const query = `
		SELECT token_id, status, issued_at, expires_at, revoked_at
		FROM access_token_infos
		WHERE token_id = $1
	`
	defer d.observe(ctx, "find", jti, time.Now())

	var (
		info   models.AccessTokenInfo
		status string
	)
	err := d.pool.QueryRow(ctx, query, jti).Scan(&info.TokenID, &status, &info.IssuedAt, &info.ExpiresAt, &info.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load token info %s: %w", jti, err)
	}
	info.Status = constants.TokenStatus(status)
	return &info, nil
}

// MarkRevoked moves an ACTIVE record to REVOKED.
//
// Returns:
//   - bool: true only for the caller whose UPDATE matched the ACTIVE row
//   - error: database failure
func (d *PgxAccessTokenDAO) MarkRevoked(ctx context.Context, jti string, revokedAt time.Time) (bool, error) {
	const query = `
		UPDATE access_token_infos
		SET status = $2, revoked_at = $3
		WHERE token_id = $1 AND status = $4
	`
	defer d.observe(ctx, "revoke", jti, time.Now())

	tag, err := d.pool.Exec(ctx, query, jti,
		string(constants.TokenStatusRevoked), revokedAt, string(constants.TokenStatusActive))
	if err != nil {
		return false, fmt.Errorf("failed to revoke token info %s: %w", jti, err)
	}
	return tag.RowsAffected() > 0, nil
}

// FindExpired lists the JTIs whose expiry precedes before, regardless of status.
func (d *PgxAccessTokenDAO) FindExpired(ctx context.Context, before time.Time) ([]string, error) {
	const query = `
		SELECT token_id FROM access_token_infos
		WHERE expires_at < $1
		ORDER BY expires_at
	`
	defer d.observe(ctx, "find_expired", "", time.Now())

	rows, err := d.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired token infos: %w", err)
	}
	jtis, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read expired token infos: %w", err)
	}
	return jtis, nil
}

// DeleteByJTI removes a record. Deleting an untracked JTI succeeds.
func (d *PgxAccessTokenDAO) DeleteByJTI(ctx context.Context, jti string) error {
	defer d.observe(ctx, "delete", jti, time.Now())

	if _, err := d.pool.Exec(ctx, `DELETE FROM access_token_infos WHERE token_id = $1`, jti); err != nil {
		return fmt.Errorf("failed to delete token info %s: %w", jti, err)
	}
	return nil
}

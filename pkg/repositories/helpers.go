package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trs-platform/person-search/pkg/apperrors"
	"github.com/trs-platform/person-search/pkg/database"
)

// txFromContext returns the caller's transaction. Every repository call runs
// inside one so that source records and the search index commit together.
func txFromContext(ctx context.Context) (pgx.Tx, error) {
	tx, ok := database.GetTx(ctx)
	if !ok {
		return nil, apperrors.ErrNoTransaction
	}
	return tx, nil
}

// nullableString returns nil for an empty string so it is stored as NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// derefString returns the value of a nullable column, or "".
func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isUniqueViolation reports a PostgreSQL unique constraint violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Lock order: the owning person first, then the dependent row. Person status
// changes lock the person and then every dependent, so writers of a previous
// name or employment must acquire the person before their own row.

// lockPersonForShare takes a share lock on a person row.
func lockPersonForShare(ctx context.Context, tx pgx.Tx, personID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT person_id FROM persons WHERE person_id = $1 FOR SHARE`, personID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to lock person: %w", err)
	}
	return nil
}

// lockOwnerForShare share-locks the person owning a dependent row without
// locking the row itself. table and idColumn are fixed identifiers.
func lockOwnerForShare(ctx context.Context, tx pgx.Tx, table, idColumn string, id uuid.UUID) error {
	query := `
		SELECT p.person_id FROM persons p
		WHERE p.person_id = (SELECT d.person_id FROM ` + table + ` d WHERE d.` + idColumn + ` = $1)
		FOR SHARE OF p`

	var personID uuid.UUID
	if err := tx.QueryRow(ctx, query, id).Scan(&personID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to lock owning person: %w", err)
	}
	return nil
}

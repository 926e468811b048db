package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/trs-platform/person-search/pkg/models"
)

// NameSynonymsRepository provides access to the name synonym table. The table
// is maintained out of band; edits do not refresh existing index rows.
type NameSynonymsRepository interface {
	// GetSynonyms returns the synonyms for name (case-insensitive exact match)
	// in stored order. A name with no entry returns nil and no error.
	GetSynonyms(ctx context.Context, name string) ([]string, error)

	// Upsert creates or replaces the synonym list for name.
	Upsert(ctx context.Context, name string, synonyms []string) error

	// List returns every entry ordered by name.
	List(ctx context.Context) ([]*models.NameSynonyms, error)
}

type nameSynonymsRepository struct{}

// NewNameSynonymsRepository creates a new NameSynonymsRepository.
func NewNameSynonymsRepository() NameSynonymsRepository {
	return &nameSynonymsRepository{}
}

var _ NameSynonymsRepository = (*nameSynonymsRepository)(nil)

func (r *nameSynonymsRepository) GetSynonyms(ctx context.Context, name string) ([]string, error) {
	tx, err := txFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var synonyms []string
	err = tx.QueryRow(ctx, `SELECT synonyms FROM name_synonyms WHERE name = $1`, name).Scan(&synonyms)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get synonyms: %w", err)
	}

	return synonyms, nil
}

func (r *nameSynonymsRepository) Upsert(ctx context.Context, name string, synonyms []string) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	if synonyms == nil {
		synonyms = []string{}
	}

	query := `
		INSERT INTO name_synonyms (name, synonyms)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET synonyms = EXCLUDED.synonyms`

	if _, err := tx.Exec(ctx, query, name, synonyms); err != nil {
		return fmt.Errorf("failed to upsert synonyms: %w", err)
	}

	return nil
}

func (r *nameSynonymsRepository) List(ctx context.Context) ([]*models.NameSynonyms, error) {
	tx, err := txFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT name_synonyms_id, name, synonyms
		FROM name_synonyms
		ORDER BY name, name_synonyms_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query synonyms: %w", err)
	}
	defer rows.Close()

	var entries []*models.NameSynonyms
	for rows.Next() {
		var e models.NameSynonyms
		if err := rows.Scan(&e.ID, &e.Name, &e.Synonyms); err != nil {
			return nil, fmt.Errorf("failed to scan synonyms: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating synonyms: %w", err)
	}

	return entries, nil
}

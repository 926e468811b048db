package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/trs-platform/person-search/pkg/models"
)

// SearchAttributeRepository is the derived person search index. Rows are
// grouped by (person, scope) and every write replaces or removes a whole group.
type SearchAttributeRepository interface {
	// ReplaceScope deletes every row for (personID, scope) and inserts attrs.
	// Each attribute must belong to personID and scope.
	ReplaceScope(ctx context.Context, personID uuid.UUID, scope models.IndexScope, attrs []models.SearchAttribute) error

	// RemoveScope deletes every row for (personID, scope) and returns how many
	// rows were removed.
	RemoveScope(ctx context.Context, personID uuid.UUID, scope models.IndexScope) (int64, error)

	// RemoveOtherScopes deletes the person's rows whose scope is not in keep.
	RemoveOtherScopes(ctx context.Context, personID uuid.UUID, keep []models.IndexScope) (int64, error)

	// Find returns the distinct ids of persons with a row of attrType whose
	// value equals value under case-insensitive comparison.
	Find(ctx context.Context, attrType models.SearchAttributeType, value string) ([]uuid.UUID, error)

	// FindWithProvenance returns the matching rows themselves.
	FindWithProvenance(ctx context.Context, attrType models.SearchAttributeType, value string) ([]models.SearchAttributeMatch, error)

	// ListByPerson returns every row for a person ordered by scope, type and value.
	ListByPerson(ctx context.Context, personID uuid.UUID) ([]models.SearchAttribute, error)
}

type searchAttributeRepository struct{}

// NewSearchAttributeRepository creates a new SearchAttributeRepository.
func NewSearchAttributeRepository() SearchAttributeRepository {
	return &searchAttributeRepository{}
}

var _ SearchAttributeRepository = (*searchAttributeRepository)(nil)

// ============================================================================
// Writes
// ============================================================================

func (r *searchAttributeRepository) ReplaceScope(ctx context.Context, personID uuid.UUID, scope models.IndexScope, attrs []models.SearchAttribute) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	key := scope.Key()
	for i := range attrs {
		if attrs[i].PersonID != personID || attrs[i].ScopeKey() != key {
			return fmt.Errorf("attribute %d does not belong to person %s scope %s", i, personID, key)
		}
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM person_search_attributes
		WHERE person_id = $1 AND attribute_key = $2`,
		personID, key,
	); err != nil {
		return fmt.Errorf("failed to delete search attributes: %w", err)
	}

	if len(attrs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO person_search_attributes (
			person_id, attribute_type, attribute_value, tags, attribute_key
		) VALUES ($1, $2, $3, $4, $5)`

	for _, attr := range attrs {
		tags := attr.Tags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(query, personID, string(attr.Type), attr.Value, tags, key)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := range attrs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert search attribute %d: %w", i, err)
		}
	}

	return results.Close()
}

func (r *searchAttributeRepository) RemoveScope(ctx context.Context, personID uuid.UUID, scope models.IndexScope) (int64, error) {
	tx, err := txFromContext(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM person_search_attributes
		WHERE person_id = $1 AND attribute_key = $2`,
		personID, scope.Key(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to remove search attributes: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *searchAttributeRepository) RemoveOtherScopes(ctx context.Context, personID uuid.UUID, keep []models.IndexScope) (int64, error) {
	tx, err := txFromContext(ctx)
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(keep))
	for _, scope := range keep {
		keys = append(keys, scope.Key())
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM person_search_attributes
		WHERE person_id = $1 AND NOT (attribute_key = ANY($2))`,
		personID, keys,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to remove stale search attributes: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ============================================================================
// Reads
// ============================================================================

func (r *searchAttributeRepository) Find(ctx context.Context, attrType models.SearchAttributeType, value string) ([]uuid.UUID, error) {
	tx, err := txFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT DISTINCT person_id
		FROM person_search_attributes
		WHERE attribute_type = $1 AND attribute_value = $2
		ORDER BY person_id`,
		string(attrType), value,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find search attributes: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan person ids: %w", err)
	}

	return ids, nil
}

func (r *searchAttributeRepository) FindWithProvenance(ctx context.Context, attrType models.SearchAttributeType, value string) ([]models.SearchAttributeMatch, error) {
	tx, err := txFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT person_id, attribute_key, attribute_type, attribute_value, tags
		FROM person_search_attributes
		WHERE attribute_type = $1 AND attribute_value = $2
		ORDER BY person_id, attribute_key, person_search_attribute_id`,
		string(attrType), value,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find search attributes: %w", err)
	}
	defer rows.Close()

	var matches []models.SearchAttributeMatch
	for rows.Next() {
		var m models.SearchAttributeMatch
		var attrTypeText string
		if err := rows.Scan(&m.PersonID, &m.ScopeKey, &attrTypeText, &m.Value, &m.Tags); err != nil {
			return nil, fmt.Errorf("failed to scan search attribute: %w", err)
		}
		m.Type = models.SearchAttributeType(attrTypeText)
		if m.Scope, err = models.ParseIndexScope(m.ScopeKey); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search attributes: %w", err)
	}

	return matches, nil
}

func (r *searchAttributeRepository) ListByPerson(ctx context.Context, personID uuid.UUID) ([]models.SearchAttribute, error) {
	tx, err := txFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT attribute_key, attribute_type, attribute_value, tags
		FROM person_search_attributes
		WHERE person_id = $1
		ORDER BY attribute_key COLLATE "C", attribute_type, attribute_value COLLATE "C", person_search_attribute_id`,
		personID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list search attributes: %w", err)
	}
	defer rows.Close()

	var attrs []models.SearchAttribute
	for rows.Next() {
		var key, attrTypeText string
		attr := models.SearchAttribute{PersonID: personID}
		if err := rows.Scan(&key, &attrTypeText, &attr.Value, &attr.Tags); err != nil {
			return nil, fmt.Errorf("failed to scan search attribute: %w", err)
		}
		attr.Type = models.SearchAttributeType(attrTypeText)
		if attr.Scope, err = models.ParseIndexScope(key); err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search attributes: %w", err)
	}

	return attrs, nil
}

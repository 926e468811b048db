package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/trs-platform/person-search/pkg/apperrors"
	"github.com/trs-platform/person-search/pkg/models"
)

// PreviousNameRepository provides data access for previous-name records.
// Mutations notify registered PreviousNameHooks inside the caller's transaction.
type PreviousNameRepository interface {
	Create(ctx context.Context, name *models.PreviousName) error
	Update(ctx context.Context, name *models.PreviousName) error
	Delete(ctx context.Context, previousNameID uuid.UUID) error
	HardDelete(ctx context.Context, previousNameID uuid.UUID) error
	GetByID(ctx context.Context, previousNameID uuid.UUID) (*models.PreviousName, error)
	ListByPerson(ctx context.Context, personID uuid.UUID) ([]*models.PreviousName, error)
	AddHook(hook PreviousNameHook)
}

type previousNameRepository struct {
	hooks []PreviousNameHook
}

// NewPreviousNameRepository creates a new PreviousNameRepository.
func NewPreviousNameRepository() PreviousNameRepository {
	return &previousNameRepository{}
}

var _ PreviousNameRepository = (*previousNameRepository)(nil)

const previousNameColumns = `
	previous_name_id, person_id, first_name, middle_name, last_name,
	created_on, updated_on, deleted_on`

func (r *previousNameRepository) AddHook(hook PreviousNameHook) {
	r.hooks = append(r.hooks, hook)
}

func (r *previousNameRepository) Create(ctx context.Context, name *models.PreviousName) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	if err := lockPersonForShare(ctx, tx, name.PersonID); err != nil {
		return err
	}

	if name.PreviousNameID == uuid.Nil {
		name.PreviousNameID = uuid.New()
	}

	query := `
		INSERT INTO previous_names (
			previous_name_id, person_id, first_name, middle_name, last_name
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING created_on, updated_on`

	err = tx.QueryRow(ctx, query,
		name.PreviousNameID,
		name.PersonID,
		name.FirstName,
		name.MiddleName,
		name.LastName,
	).Scan(&name.CreatedOn, &name.UpdatedOn)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create previous name: %w", err)
	}

	return r.notify(ctx, PreviousNameChange{After: name})
}

// Update writes the name fields. Deleted previous names cannot be updated.
func (r *previousNameRepository) Update(ctx context.Context, name *models.PreviousName) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	if err := lockOwnerForShare(ctx, tx, "previous_names", "previous_name_id", name.PreviousNameID); err != nil {
		return err
	}

	before, err := r.getPreviousName(ctx, tx, name.PreviousNameID, "FOR UPDATE")
	if err != nil {
		return err
	}
	if before.IsDeleted() {
		return apperrors.ErrNotFound
	}

	query := `
		UPDATE previous_names
		SET first_name = $2, middle_name = $3, last_name = $4, updated_on = now()
		WHERE previous_name_id = $1
		RETURNING person_id, created_on, updated_on, deleted_on`

	err = tx.QueryRow(ctx, query,
		name.PreviousNameID,
		name.FirstName,
		name.MiddleName,
		name.LastName,
	).Scan(&name.PersonID, &name.CreatedOn, &name.UpdatedOn, &name.DeletedOn)
	if err != nil {
		return fmt.Errorf("failed to update previous name: %w", err)
	}

	return r.notify(ctx, PreviousNameChange{Before: before, After: name})
}

// Delete soft-deletes a previous name. Deleting twice is a no-op.
func (r *previousNameRepository) Delete(ctx context.Context, previousNameID uuid.UUID) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	if err := lockOwnerForShare(ctx, tx, "previous_names", "previous_name_id", previousNameID); err != nil {
		return err
	}

	before, err := r.getPreviousName(ctx, tx, previousNameID, "FOR UPDATE")
	if err != nil {
		return err
	}
	if before.IsDeleted() {
		return nil
	}

	after := *before
	err = tx.QueryRow(ctx, `
		UPDATE previous_names SET deleted_on = now(), updated_on = now()
		WHERE previous_name_id = $1
		RETURNING updated_on, deleted_on`,
		previousNameID,
	).Scan(&after.UpdatedOn, &after.DeletedOn)
	if err != nil {
		return fmt.Errorf("failed to delete previous name: %w", err)
	}

	return r.notify(ctx, PreviousNameChange{Before: before, After: &after})
}

// HardDelete removes the previous-name row permanently.
func (r *previousNameRepository) HardDelete(ctx context.Context, previousNameID uuid.UUID) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	if err := lockOwnerForShare(ctx, tx, "previous_names", "previous_name_id", previousNameID); err != nil {
		return err
	}

	before, err := r.getPreviousName(ctx, tx, previousNameID, "FOR UPDATE")
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM previous_names WHERE previous_name_id = $1`, previousNameID); err != nil {
		return fmt.Errorf("failed to hard delete previous name: %w", err)
	}

	return r.notify(ctx, PreviousNameChange{Before: before})
}

func (r *previousNameRepository) notify(ctx context.Context, change PreviousNameChange) error {
	for _, hook := range r.hooks {
		if err := hook.OnPreviousNameChanged(ctx, change); err != nil {
			return fmt.Errorf("previous name change hook failed: %w", err)
		}
	}
	return nil
}

func (r *previousNameRepository) GetByID(ctx context.Context, previousNameID uuid.UUID) (*models.PreviousName, error) {
	tx, err := txFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return r.getPreviousName(ctx, tx, previousNameID, "")
}

// ListByPerson returns the person's live (not deleted) previous names, oldest
// first. The rows stay locked FOR UPDATE until the transaction ends so that a
// refresh of their scopes cannot interleave with an edit.
func (r *previousNameRepository) ListByPerson(ctx context.Context, personID uuid.UUID) ([]*models.PreviousName, error) {
	tx, err := txFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + previousNameColumns + `
		FROM previous_names
		WHERE person_id = $1 AND deleted_on IS NULL
		ORDER BY created_on, previous_name_id
		FOR UPDATE`

	rows, err := tx.Query(ctx, query, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to query previous names: %w", err)
	}
	defer rows.Close()

	var names []*models.PreviousName
	for rows.Next() {
		name, err := scanPreviousName(rows)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating previous names: %w", err)
	}

	return names, nil
}

func (r *previousNameRepository) getPreviousName(ctx context.Context, tx pgx.Tx, previousNameID uuid.UUID, lock string) (*models.PreviousName, error) {
	query := `SELECT ` + previousNameColumns + ` FROM previous_names WHERE previous_name_id = $1 ` + lock

	name, err := scanPreviousName(tx.QueryRow(ctx, query, previousNameID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return name, nil
}

func scanPreviousName(row pgx.Row) (*models.PreviousName, error) {
	var n models.PreviousName
	err := row.Scan(
		&n.PreviousNameID,
		&n.PersonID,
		&n.FirstName,
		&n.MiddleName,
		&n.LastName,
		&n.CreatedOn,
		&n.UpdatedOn,
		&n.DeletedOn,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan previous name: %w", err)
	}
	return &n, nil
}

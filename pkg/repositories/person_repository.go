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

// PersonRepository provides data access for person records.
// Mutations notify registered PersonHooks inside the caller's transaction.
type PersonRepository interface {
	Create(ctx context.Context, person *models.Person) error
	Update(ctx context.Context, person *models.Person) error
	Deactivate(ctx context.Context, personID uuid.UUID) error
	Reactivate(ctx context.Context, personID uuid.UUID) error
	Delete(ctx context.Context, personID uuid.UUID) error
	GetByID(ctx context.Context, personID uuid.UUID) (*models.Person, error)
	GetForShare(ctx context.Context, personID uuid.UUID) (*models.Person, error)
	GetForUpdate(ctx context.Context, personID uuid.UUID) (*models.Person, error)
	ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	AddHook(hook PersonHook)
}

type personRepository struct {
	hooks []PersonHook
}

// NewPersonRepository creates a new PersonRepository.
func NewPersonRepository() PersonRepository {
	return &personRepository{}
}

var _ PersonRepository = (*personRepository)(nil)

const personColumns = `
	person_id, trn, first_name, middle_name, last_name, date_of_birth,
	national_insurance_number, email_address, status, created_on, updated_on`

// AddHook registers a hook. Registration happens during wiring, before use.
func (r *personRepository) AddHook(hook PersonHook) {
	r.hooks = append(r.hooks, hook)
}

// ============================================================================
// Mutations
// ============================================================================

func (r *personRepository) Create(ctx context.Context, person *models.Person) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	if person.PersonID == uuid.Nil {
		person.PersonID = uuid.New()
	}
	if person.Status == "" {
		person.Status = models.PersonStatusActive
	}

	query := `
		INSERT INTO persons (
			person_id, trn, first_name, middle_name, last_name, date_of_birth,
			national_insurance_number, email_address, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_on, updated_on`

	err = tx.QueryRow(ctx, query,
		person.PersonID,
		nullableString(person.Trn),
		person.FirstName,
		person.MiddleName,
		person.LastName,
		person.DateOfBirth,
		nullableString(person.NationalInsuranceNumber),
		nullableString(person.EmailAddress),
		person.Status,
	).Scan(&person.CreatedOn, &person.UpdatedOn)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create person: %w", err)
	}

	return r.notify(ctx, PersonChange{After: person})
}

// Update writes the identity fields of person. Status is not changed here;
// use Deactivate and Reactivate.
func (r *personRepository) Update(ctx context.Context, person *models.Person) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	before, err := r.getPerson(ctx, tx, person.PersonID, "FOR UPDATE")
	if err != nil {
		return err
	}

	query := `
		UPDATE persons
		SET trn = $2, first_name = $3, middle_name = $4, last_name = $5,
		    date_of_birth = $6, national_insurance_number = $7, email_address = $8,
		    updated_on = now()
		WHERE person_id = $1
		RETURNING status, created_on, updated_on`

	err = tx.QueryRow(ctx, query,
		person.PersonID,
		nullableString(person.Trn),
		person.FirstName,
		person.MiddleName,
		person.LastName,
		person.DateOfBirth,
		nullableString(person.NationalInsuranceNumber),
		nullableString(person.EmailAddress),
	).Scan(&person.Status, &person.CreatedOn, &person.UpdatedOn)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to update person: %w", err)
	}

	return r.notify(ctx, PersonChange{Before: before, After: person})
}

// Deactivate soft-deletes a person. Deactivating an already deactivated
// person is a no-op.
func (r *personRepository) Deactivate(ctx context.Context, personID uuid.UUID) error {
	return r.setStatus(ctx, personID, models.PersonStatusDeactivated)
}

// Reactivate restores a deactivated person. Reactivating an active person is
// a no-op.
func (r *personRepository) Reactivate(ctx context.Context, personID uuid.UUID) error {
	return r.setStatus(ctx, personID, models.PersonStatusActive)
}

func (r *personRepository) setStatus(ctx context.Context, personID uuid.UUID, status models.PersonStatus) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	before, err := r.getPerson(ctx, tx, personID, "FOR UPDATE")
	if err != nil {
		return err
	}
	if before.Status == status {
		return nil
	}

	after := *before
	err = tx.QueryRow(ctx, `
		UPDATE persons SET status = $2, updated_on = now()
		WHERE person_id = $1
		RETURNING status, updated_on`,
		personID, status,
	).Scan(&after.Status, &after.UpdatedOn)
	if err != nil {
		return fmt.Errorf("failed to set person status: %w", err)
	}

	return r.notify(ctx, PersonChange{Before: before, After: &after})
}

// Delete removes a person permanently. Dependent previous names, employments
// and search attributes are removed by foreign key cascade.
func (r *personRepository) Delete(ctx context.Context, personID uuid.UUID) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	before, err := r.getPerson(ctx, tx, personID, "FOR UPDATE")
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM persons WHERE person_id = $1`, personID); err != nil {
		return fmt.Errorf("failed to delete person: %w", err)
	}

	return r.notify(ctx, PersonChange{Before: before})
}

func (r *personRepository) notify(ctx context.Context, change PersonChange) error {
	for _, hook := range r.hooks {
		if err := hook.OnPersonChanged(ctx, change); err != nil {
			return fmt.Errorf("person change hook failed: %w", err)
		}
	}
	return nil
}

// ============================================================================
// Queries
// ============================================================================

func (r *personRepository) GetByID(ctx context.Context, personID uuid.UUID) (*models.Person, error) {
	tx, err := txFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return r.getPerson(ctx, tx, personID, "")
}

// GetForShare reads a person and holds a share lock on the row until the
// transaction ends, so a concurrent status change waits for the caller.
func (r *personRepository) GetForShare(ctx context.Context, personID uuid.UUID) (*models.Person, error) {
	tx, err := txFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return r.getPerson(ctx, tx, personID, "FOR SHARE")
}

// GetForUpdate reads a person and locks the row against concurrent writers.
func (r *personRepository) GetForUpdate(ctx context.Context, personID uuid.UUID) (*models.Person, error) {
	tx, err := txFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return r.getPerson(ctx, tx, personID, "FOR UPDATE")
}

// ListIDs returns up to limit person ids greater than after, in id order.
// Pass uuid.Nil to start from the beginning.
func (r *personRepository) ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	tx, err := txFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT person_id FROM persons
		WHERE person_id > $1
		ORDER BY person_id
		LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list person ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan person ids: %w", err)
	}
	return ids, nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func (r *personRepository) getPerson(ctx context.Context, tx pgx.Tx, personID uuid.UUID, lock string) (*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE person_id = $1 ` + lock

	person, err := scanPerson(tx.QueryRow(ctx, query, personID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return person, nil
}

func scanPerson(row pgx.Row) (*models.Person, error) {
	var p models.Person
	var trn, nino, email *string

	err := row.Scan(
		&p.PersonID,
		&trn,
		&p.FirstName,
		&p.MiddleName,
		&p.LastName,
		&p.DateOfBirth,
		&nino,
		&email,
		&p.Status,
		&p.CreatedOn,
		&p.UpdatedOn,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan person: %w", err)
	}

	p.Trn = derefString(trn)
	p.NationalInsuranceNumber = derefString(nino)
	p.EmailAddress = derefString(email)

	return &p, nil
}

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

// TpsEmploymentRepository provides data access for pension-scheme employment
// records. Mutations notify registered TpsEmploymentHooks inside the caller's
// transaction.
type TpsEmploymentRepository interface {
	Create(ctx context.Context, employment *models.TpsEmployment) error
	Update(ctx context.Context, employment *models.TpsEmployment) error
	Delete(ctx context.Context, tpsEmploymentID uuid.UUID) error
	GetByID(ctx context.Context, tpsEmploymentID uuid.UUID) (*models.TpsEmployment, error)
	ListByPerson(ctx context.Context, personID uuid.UUID) ([]*models.TpsEmployment, error)
	AddHook(hook TpsEmploymentHook)
}

type tpsEmploymentRepository struct {
	hooks []TpsEmploymentHook
}

// NewTpsEmploymentRepository creates a new TpsEmploymentRepository.
func NewTpsEmploymentRepository() TpsEmploymentRepository {
	return &tpsEmploymentRepository{}
}

var _ TpsEmploymentRepository = (*tpsEmploymentRepository)(nil)

const tpsEmploymentColumns = `
	tps_employment_id, person_id, establishment_urn, start_date, end_date,
	employment_type, national_insurance_number, person_postcode,
	person_email_address, created_on, updated_on, deleted_on`

func (r *tpsEmploymentRepository) AddHook(hook TpsEmploymentHook) {
	r.hooks = append(r.hooks, hook)
}

func (r *tpsEmploymentRepository) Create(ctx context.Context, employment *models.TpsEmployment) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	if err := lockPersonForShare(ctx, tx, employment.PersonID); err != nil {
		return err
	}

	if employment.TpsEmploymentID == uuid.Nil {
		employment.TpsEmploymentID = uuid.New()
	}

	query := `
		INSERT INTO tps_employments (
			tps_employment_id, person_id, establishment_urn, start_date, end_date,
			employment_type, national_insurance_number, person_postcode, person_email_address
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_on, updated_on`

	err = tx.QueryRow(ctx, query,
		employment.TpsEmploymentID,
		employment.PersonID,
		employment.EstablishmentUrn,
		employment.StartDate,
		employment.EndDate,
		employment.EmploymentType,
		nullableString(employment.NationalInsuranceNumber),
		nullableString(employment.PersonPostcode),
		nullableString(employment.PersonEmailAddress),
	).Scan(&employment.CreatedOn, &employment.UpdatedOn)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create tps employment: %w", err)
	}

	return r.notify(ctx, TpsEmploymentChange{After: employment})
}

// Update writes every mutable employment field. Deleted employments cannot be
// updated.
func (r *tpsEmploymentRepository) Update(ctx context.Context, employment *models.TpsEmployment) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	if err := lockOwnerForShare(ctx, tx, "tps_employments", "tps_employment_id", employment.TpsEmploymentID); err != nil {
		return err
	}

	before, err := r.getEmployment(ctx, tx, employment.TpsEmploymentID, "FOR UPDATE")
	if err != nil {
		return err
	}
	if before.IsDeleted() {
		return apperrors.ErrNotFound
	}

	query := `
		UPDATE tps_employments
		SET establishment_urn = $2, start_date = $3, end_date = $4, employment_type = $5,
		    national_insurance_number = $6, person_postcode = $7, person_email_address = $8,
		    updated_on = now()
		WHERE tps_employment_id = $1
		RETURNING person_id, created_on, updated_on, deleted_on`

	err = tx.QueryRow(ctx, query,
		employment.TpsEmploymentID,
		employment.EstablishmentUrn,
		employment.StartDate,
		employment.EndDate,
		employment.EmploymentType,
		nullableString(employment.NationalInsuranceNumber),
		nullableString(employment.PersonPostcode),
		nullableString(employment.PersonEmailAddress),
	).Scan(&employment.PersonID, &employment.CreatedOn, &employment.UpdatedOn, &employment.DeletedOn)
	if err != nil {
		return fmt.Errorf("failed to update tps employment: %w", err)
	}

	return r.notify(ctx, TpsEmploymentChange{Before: before, After: employment})
}

// Delete soft-deletes an employment. Deleting twice is a no-op.
func (r *tpsEmploymentRepository) Delete(ctx context.Context, tpsEmploymentID uuid.UUID) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	if err := lockOwnerForShare(ctx, tx, "tps_employments", "tps_employment_id", tpsEmploymentID); err != nil {
		return err
	}

	before, err := r.getEmployment(ctx, tx, tpsEmploymentID, "FOR UPDATE")
	if err != nil {
		return err
	}
	if before.IsDeleted() {
		return nil
	}

	after := *before
	err = tx.QueryRow(ctx, `
		UPDATE tps_employments SET deleted_on = now(), updated_on = now()
		WHERE tps_employment_id = $1
		RETURNING updated_on, deleted_on`,
		tpsEmploymentID,
	).Scan(&after.UpdatedOn, &after.DeletedOn)
	if err != nil {
		return fmt.Errorf("failed to delete tps employment: %w", err)
	}

	return r.notify(ctx, TpsEmploymentChange{Before: before, After: &after})
}

func (r *tpsEmploymentRepository) notify(ctx context.Context, change TpsEmploymentChange) error {
	for _, hook := range r.hooks {
		if err := hook.OnTpsEmploymentChanged(ctx, change); err != nil {
			return fmt.Errorf("tps employment change hook failed: %w", err)
		}
	}
	return nil
}

func (r *tpsEmploymentRepository) GetByID(ctx context.Context, tpsEmploymentID uuid.UUID) (*models.TpsEmployment, error) {
	tx, err := txFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return r.getEmployment(ctx, tx, tpsEmploymentID, "")
}

// ListByPerson returns the person's live employments, locked FOR UPDATE until
// the transaction ends.
func (r *tpsEmploymentRepository) ListByPerson(ctx context.Context, personID uuid.UUID) ([]*models.TpsEmployment, error) {
	tx, err := txFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + tpsEmploymentColumns + `
		FROM tps_employments
		WHERE person_id = $1 AND deleted_on IS NULL
		ORDER BY start_date, tps_employment_id
		FOR UPDATE`

	rows, err := tx.Query(ctx, query, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tps employments: %w", err)
	}
	defer rows.Close()

	var employments []*models.TpsEmployment
	for rows.Next() {
		employment, err := scanTpsEmployment(rows)
		if err != nil {
			return nil, err
		}
		employments = append(employments, employment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tps employments: %w", err)
	}

	return employments, nil
}

func (r *tpsEmploymentRepository) getEmployment(ctx context.Context, tx pgx.Tx, tpsEmploymentID uuid.UUID, lock string) (*models.TpsEmployment, error) {
	query := `SELECT ` + tpsEmploymentColumns + ` FROM tps_employments WHERE tps_employment_id = $1 ` + lock

	employment, err := scanTpsEmployment(tx.QueryRow(ctx, query, tpsEmploymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return employment, nil
}

func scanTpsEmployment(row pgx.Row) (*models.TpsEmployment, error) {
	var e models.TpsEmployment
	var nino, postcode, email *string

	err := row.Scan(
		&e.TpsEmploymentID,
		&e.PersonID,
		&e.EstablishmentUrn,
		&e.StartDate,
		&e.EndDate,
		&e.EmploymentType,
		&nino,
		&postcode,
		&email,
		&e.CreatedOn,
		&e.UpdatedOn,
		&e.DeletedOn,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan tps employment: %w", err)
	}

	e.NationalInsuranceNumber = derefString(nino)
	e.PersonPostcode = derefString(postcode)
	e.PersonEmailAddress = derefString(email)

	return &e, nil
}
